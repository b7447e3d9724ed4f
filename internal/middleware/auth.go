package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaultpilot/vaultpilot/internal/config"
)

const (
	HeaderAPIKey  = "X-Api-Key"
	ContextAPIKey = "api_key"
)

// AuthMiddleware checks the caller's API key against the configured set.
// When require_api_key is off, anonymous callers pass with an empty key.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	keys := make(map[string]bool, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		keys[k] = true
	}

	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			if !cfg.Auth.RequireAPIKey {
				c.Set(ContextAPIKey, "")
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		if cfg.Auth.RequireAPIKey && !keys[apiKey] {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set(ContextAPIKey, apiKey)
		c.Next()
	}
}
