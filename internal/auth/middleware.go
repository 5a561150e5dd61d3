// Package auth gates the HTTP API behind optional API keys.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderName is the request header carrying the API key.
const HeaderName = "X-API-Key"

// NewMiddleware creates an API key middleware. With no keys configured
// every request passes through.
func NewMiddleware(apiKeys []string) gin.HandlerFunc {
	if len(apiKeys) == 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderName)
		if key == "" || !isValidKey(key, apiKeys) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func isValidKey(key string, apiKeys []string) bool {
	for _, validKey := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			return true
		}
	}
	return false
}
