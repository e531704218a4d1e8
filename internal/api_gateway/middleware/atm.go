package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

const (
	// ATMIDHeader names the cash machine, set by the upstream machine authenticator
	ATMIDHeader = "X-ATM-ID"

	// ATMIDKey is the key used to store the machine id in the context
	ATMIDKey = "atm_id"
)

var atmIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ATMIdentity requires an X-ATM-ID header on cash machine routes. Machine
// authentication happens upstream; requests without an asserted machine are
// rejected before any token is minted or redeemed.
func ATMIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		atmID := c.GetHeader(ATMIDHeader)
		if !atmIDPattern.MatchString(atmID) {
			response := gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "missing or invalid " + ATMIDHeader + " header",
				},
			}
			if correlationID := GetCorrelationID(c); correlationID != "" {
				response["correlation_id"] = correlationID
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response)
			return
		}

		c.Set(ATMIDKey, atmID)
		c.Next()
	}
}

// GetATMID returns the machine id set by ATMIdentity
func GetATMID(c *gin.Context) (string, bool) {
	if v, exists := c.Get(ATMIDKey); exists {
		id, ok := v.(string)
		return id, ok
	}
	return "", false
}
