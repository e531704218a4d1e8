package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestATMIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(captured *string) *gin.Engine {
		router := gin.New()
		router.Use(CorrelationID(), ATMIdentity())
		router.POST("/atm/deposits", func(c *gin.Context) {
			id, ok := GetATMID(c)
			assert.True(t, ok)
			*captured = id
			c.Status(http.StatusCreated)
		})
		return router
	}

	t.Run("SetsATMID", func(t *testing.T) {
		var captured string
		req, _ := http.NewRequest(http.MethodPost, "/atm/deposits", nil)
		req.Header.Set(ATMIDHeader, "atm-blr-042")
		rr := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "atm-blr-042", captured)
	})

	for _, header := range []string{"", "-leading-dash", "atm 42", strings.Repeat("a", 65)} {
		t.Run("Rejects "+header, func(t *testing.T) {
			var captured string
			req, _ := http.NewRequest(http.MethodPost, "/atm/deposits", nil)
			req.Header.Set(ATMIDHeader, header)
			req.Header.Set(CorrelationIDHeader, "corr-atm")
			rr := httptest.NewRecorder()
			newRouter(&captured).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Empty(t, captured)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "corr-atm", body["correlation_id"])
			assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]interface{})["code"])
		})
	}
}
