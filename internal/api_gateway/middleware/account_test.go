package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(captured *uuid.UUID) *gin.Engine {
		router := gin.New()
		router.Use(CorrelationID(), AccountIdentity())
		router.GET("/me", func(c *gin.Context) {
			id, ok := GetAccountID(c)
			assert.True(t, ok)
			*captured = id
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("SetsAccountID", func(t *testing.T) {
		var captured uuid.UUID
		accountID := uuid.New()

		req, _ := http.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(AccountIDHeader, accountID.String())
		rr := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, accountID, captured)
	})

	for _, header := range []string{"", "not-a-uuid"} {
		t.Run("Rejects "+header, func(t *testing.T) {
			var captured uuid.UUID
			req, _ := http.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set(AccountIDHeader, header)
			req.Header.Set(CorrelationIDHeader, "corr-1")
			rr := httptest.NewRecorder()
			newRouter(&captured).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, uuid.Nil, captured)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "corr-1", body["correlation_id"])
			assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]interface{})["code"])
		})
	}
}

func TestGetAccountID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetAccountID(c)
	assert.False(t, ok)
}
