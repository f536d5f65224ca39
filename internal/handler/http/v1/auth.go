package v1

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/accident_alert_system/internal/config"
	"github.com/sirupsen/logrus"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuthMiddleware - middleware для аутентификации producer-сервисов по API-ключу
func APIKeyAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		keys = append(keys, []byte(key))
	}

	return func(c *gin.Context) {
		apiKey := extractAPIKey(c)
		if apiKey == "" {
			log.WithField("path", c.FullPath()).Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		if !validAPIKey(keys, []byte(apiKey)) {
			log.WithField("path", c.FullPath()).Warn("Invalid API key provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Next()
	}
}

// extractAPIKey читает ключ из X-API-Key или Authorization: Bearer
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader(apiKeyHeader); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func validAPIKey(keys [][]byte, candidate []byte) bool {
	valid := false
	for _, key := range keys {
		if subtle.ConstantTimeCompare(key, candidate) == 1 {
			valid = true
		}
	}
	return valid
}
