package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagequery/models"
)

// ClientKeyContextKey is where Auth stores the authenticated key for
// downstream middleware (rate limiting keys off it).
const ClientKeyContextKey = "client_key"

// Auth returns API-key middleware accepting either
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no configured keys the middleware is a no-op and the API is open.
// Key comparison is constant-time.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		presented := clientKey(c)
		if presented == "" {
			reject(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}

		pb := []byte(presented)
		valid := false
		for _, k := range keys {
			if subtle.ConstantTimeCompare(pb, k) == 1 {
				valid = true
			}
		}
		if !valid {
			reject(c, "invalid API key")
			return
		}

		c.Set(ClientKeyContextKey, presented)
		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if after, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

func reject(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.QueryResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}
