package errors

// Error codes returned in the "error" field of every error response.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map these codes to copy.

const (
	// ==================== Authentication (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // login required
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // wrong email or password
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN"
	AuthzStaffOnly = "AUTHZ_STAFF_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID     = "VALIDATION_INVALID_ID"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationInvalidRange  = "VALIDATION_INVALID_RANGE"
	ValidationTooShort      = "VALIDATION_TOO_SHORT"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Catalog (LISTING_) ====================
	ListingNotFound      = "LISTING_NOT_FOUND"
	ListingOutOfStock    = "LISTING_OUT_OF_STOCK"
	ListingInsufficient  = "LISTING_INSUFFICIENT_STOCK"
	ListingImageNotFound = "LISTING_IMAGE_NOT_FOUND"

	// ==================== Basket and checkout (BASKET_, CHECKOUT_) ====================
	BasketEmpty            = "BASKET_EMPTY"
	BasketSessionMissing   = "BASKET_SESSION_MISSING"
	CheckoutFailed         = "CHECKOUT_FAILED"
	CheckoutWebhookInvalid = "CHECKOUT_WEBHOOK_INVALID"
	OrderNotFound          = "ORDER_NOT_FOUND"

	// ==================== Messaging (MESSAGE_) ====================
	MessageNotFound      = "MESSAGE_NOT_FOUND"
	MessageAccessDenied  = "MESSAGE_ACCESS_DENIED"
	MessageGuestClaimed  = "MESSAGE_GUEST_LINK_CLAIMED"
	MessageTooManyImages = "MESSAGE_TOO_MANY_IMAGES"

	// ==================== Uploads (UPLOAD_) ====================
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadFileTooLarge    = "UPLOAD_FILE_TOO_LARGE"
	UploadFailed          = "UPLOAD_FAILED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API" // Discogs or Stripe unavailable
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"
)
