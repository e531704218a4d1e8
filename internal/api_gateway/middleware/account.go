package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// AccountIDHeader carries the caller's account, set by the upstream authenticator
	AccountIDHeader = "X-Account-ID"

	// AccountIDKey is the key used to store the caller's account id in the context
	AccountIDKey = "account_id"
)

// AccountIdentity requires a valid X-Account-ID header. Authentication itself
// happens upstream; this only turns the asserted identity into a typed id.
func AccountIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, err := uuid.Parse(c.GetHeader(AccountIDHeader))
		if err != nil {
			response := gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "missing or invalid " + AccountIDHeader + " header",
				},
			}
			if correlationID := GetCorrelationID(c); correlationID != "" {
				response["correlation_id"] = correlationID
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response)
			return
		}

		c.Set(AccountIDKey, accountID)
		c.Next()
	}
}

// GetAccountID returns the caller's account id set by AccountIdentity
func GetAccountID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(AccountIDKey); exists {
		id, ok := v.(uuid.UUID)
		return id, ok
	}
	return uuid.Nil, false
}
