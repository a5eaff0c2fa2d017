package middleware

import (
	"net/http"

	"github.com/alansalbums/alans-albums-backend/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionIDKey    = "session_id"
	SessionIDHeader = "X-Session-ID"
)

// Session gives every visitor a stable anonymous id for the session basket.
// The id travels in a cookie, or in X-Session-ID for clients without cookies,
// and is echoed back in the response header.
func Session(cfg config.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID, _ = c.Cookie(cfg.CookieName)
		}
		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = uuid.NewString()
			GetLoggerFromContext(c).Debug("Issued new basket session", map[string]interface{}{
				"session_id": sessionID,
			})
		}

		c.Set(SessionIDKey, sessionID)
		c.Header(SessionIDHeader, sessionID)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, sessionID, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)

		c.Next()
	}
}

// GetSessionID returns the anonymous session id set by Session
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
