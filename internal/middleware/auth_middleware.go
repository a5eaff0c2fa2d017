package middleware

import (
	"net/http"
	"strings"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	apperrors "github.com/alansalbums/alans-albums-backend/internal/errors"
	redisclient "github.com/alansalbums/alans-albums-backend/pkg/redis"
	"github.com/alansalbums/alans-albums-backend/pkg/util"
	"github.com/gin-gonic/gin"
)

// Context keys for user information
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
	TokenKey     = "access_token"
)

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// bearerToken extracts the token from "Bearer <token>"; ok is false for a malformed header
func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// verify validates an access token and checks it has not been logged out
func (m *AuthMiddleware) verify(c *gin.Context, token string) (*util.Claims, string, error) {
	claims, err := util.ValidateToken(token, m.jwtSecret)
	if err != nil {
		if err == util.ErrExpiredToken {
			return nil, apperrors.AuthTokenExpired, err
		}
		return nil, apperrors.AuthTokenInvalid, err
	}
	if claims.TokenType != util.TokenTypeAccess {
		return nil, apperrors.AuthTokenInvalid, util.ErrInvalidToken
	}

	revoked, err := redisclient.IsTokenRevoked(c.Request.Context(), token)
	if err != nil {
		// revocation store unavailable: the signature check stands
		GetLoggerFromContext(c).Warn("Token revocation check skipped", map[string]interface{}{
			"error": err.Error(),
		})
	} else if revoked {
		return nil, apperrors.AuthTokenRevoked, util.ErrInvalidToken
	}
	return claims, "", nil
}

func setClaims(c *gin.Context, claims *util.Claims, token string) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UserEmailKey, claims.Email)
	c.Set(UserRoleKey, model.UserRole(claims.Role))
	c.Set(TokenKey, token)
}

// Authenticate validates JWT token (required)
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		var token string

		// Try to get token from Authorization header first
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			var ok bool
			token, ok = bearerToken(authHeader)
			if !ok {
				log.Warn("Invalid authorization header format", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Malformed authorization header")
				c.Abort()
				return
			}
		} else {
			// Browsers cannot set headers on a WebSocket handshake
			token = c.Query("token")
			if token == "" {
				log.Warn("Missing authorization header", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				apperrors.Unauthorized(c, "Login required")
				c.Abort()
				return
			}
			log.Debug("Using token from query parameter", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
		}

		claims, code, err := m.verify(c, token)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"code":  code,
				"error": err.Error(),
			})

			switch code {
			case apperrors.AuthTokenExpired:
				apperrors.RespondWithError(c, http.StatusUnauthorized, code, "Session expired, please log in again")
			case apperrors.AuthTokenRevoked:
				apperrors.RespondWithError(c, http.StatusUnauthorized, code, "Token has been revoked")
			default:
				apperrors.RespondWithError(c, http.StatusUnauthorized, code, "Invalid authentication token")
			}
			c.Abort()
			return
		}

		setClaims(c, claims, token)

		log.Debug("User authenticated successfully", map[string]interface{}{
			"user_id": claims.UserID,
			"email":   claims.Email,
			"role":    claims.Role,
		})

		c.Next()
	}
}

// OptionalAuthenticate validates JWT token if present (optional)
// - If token is present and valid: sets user info in context
// - If token is missing or invalid: continues as guest
func (m *AuthMiddleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Debug("No authorization header - continuing as guest", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			c.Next()
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			log.Debug("Invalid authorization header format - continuing as guest", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			c.Next()
			return
		}

		claims, _, err := m.verify(c, token)
		if err != nil {
			log.Debug("Token validation failed - continuing as guest", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Next()
			return
		}

		setClaims(c, claims, token)

		log.Debug("User authenticated successfully (optional)", map[string]interface{}{
			"user_id": claims.UserID,
			"email":   claims.Email,
			"role":    claims.Role,
		})

		c.Next()
	}
}

// RequireRole checks if user has required role
func (m *AuthMiddleware) RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		role, exists := GetUserRole(c)
		if !exists {
			log.Warn("Role information not found in context", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.Forbidden(c, "Access denied")
			c.Abort()
			return
		}

		userID, _ := GetUserID(c)
		for _, r := range roles {
			if role == r {
				log.Debug("Role check passed", map[string]interface{}{
					"user_id":       userID,
					"user_role":     role,
					"required_role": r,
				})
				c.Next()
				return
			}
		}

		log.Warn("Insufficient permissions", map[string]interface{}{
			"user_id":        userID,
			"user_role":      role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthzStaffOnly, "Staff access required")
		c.Abort()
	}
}

// RequireStaff admits staff accounts only
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return m.RequireRole(model.RoleStaff)
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(UserEmailKey)
	if !exists {
		return "", false
	}
	s, ok := email.(string)
	return s, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *gin.Context) (model.UserRole, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	r, ok := role.(model.UserRole)
	return r, ok
}

// IsStaff reports whether the authenticated caller is staff
func IsStaff(c *gin.Context) bool {
	role, ok := GetUserRole(c)
	return ok && role == model.RoleStaff
}

// GetAccessToken returns the bearer token the request was authenticated with
func GetAccessToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
