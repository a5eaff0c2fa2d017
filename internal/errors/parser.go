package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo pairs an error code with a message safe to show users
type ErrorInfo struct {
	Code    string // see codes.go
	Message string
}

// ParseError maps database and transport errors onto a code and a user-facing message.
// Driver details never reach the message.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "Something went wrong",
		}
	}

	errStrLower := strings.ToLower(err.Error())

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: getNotFoundMessage(context),
		}
	}

	// postgres 23505 and the sqlite equivalent
	if strings.Contains(errStrLower, "duplicate key") || strings.Contains(errStrLower, "unique constraint") {
		return parseDuplicateKeyError(errStrLower)
	}

	// postgres 23503
	if strings.Contains(errStrLower, "foreign key constraint") {
		return parseForeignKeyError(errStrLower, context)
	}

	// postgres 23502
	if strings.Contains(errStrLower, "violates not-null constraint") || strings.Contains(errStrLower, "not null constraint") {
		return ErrorInfo{
			Code:    ValidationRequired,
			Message: "A required field is missing",
		}
	}

	if strings.Contains(errStrLower, "check constraint") {
		return ErrorInfo{
			Code:    ValidationInvalidInput,
			Message: "Some values are not valid",
		}
	}

	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "An upstream service is unavailable. Please try again shortly",
		}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
	}
}

func parseDuplicateKeyError(errLower string) ErrorInfo {
	switch {
	case strings.Contains(errLower, "email"):
		return ErrorInfo{Code: AuthEmailAlreadyExists, Message: "That email is already registered"}
	case strings.Contains(errLower, "stripe_session_id") || strings.Contains(errLower, "payment_events"):
		return ErrorInfo{Code: ResourceAlreadyExists, Message: "This payment has already been processed"}
	case strings.Contains(errLower, "basket_listing"):
		return ErrorInfo{Code: ResourceConflict, Message: "That record is already in the basket"}
	}
	return ErrorInfo{Code: ResourceAlreadyExists, Message: "That already exists"}
}

func parseForeignKeyError(errLower string, context string) ErrorInfo {
	if strings.Contains(errLower, "still referenced") {
		return ErrorInfo{Code: ResourceConflict, Message: "It is still in use and cannot be deleted"}
	}
	if strings.Contains(errLower, "listing_id") {
		return ErrorInfo{Code: ListingNotFound, Message: "That listing does not exist"}
	}
	if strings.Contains(errLower, "user_id") {
		return ErrorInfo{Code: ResourceNotFound, Message: "That user does not exist"}
	}
	return ErrorInfo{Code: ResourceNotFound, Message: getNotFoundMessage(context)}
}

func getNotFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "listing"):
		return "Listing not found"
	case strings.Contains(contextLower, "order"):
		return "Order not found"
	case strings.Contains(contextLower, "message") || strings.Contains(contextLower, "thread"):
		return "Message not found"
	case strings.Contains(contextLower, "user"):
		return "User not found"
	}
	return "Not found"
}

func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "create"):
		return "Could not create it. Please try again shortly"
	case strings.Contains(contextLower, "update"):
		return "Could not save changes. Please try again shortly"
	case strings.Contains(contextLower, "delete"):
		return "Could not delete it. Please try again shortly"
	}
	return "Something went wrong. Please try again shortly"
}

// ParseAndRespond parses err and writes it as an ErrorResponse
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	errorInfo := ParseError(err, context)
	c.JSON(statusCode, ErrorResponse{
		Error:   errorInfo.Code,
		Message: errorInfo.Message,
	})
}
