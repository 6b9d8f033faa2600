package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

// HeaderAPIKey is the header carrying the static API key.
const HeaderAPIKey = "X-API-Key"

// APIKeyAuth rejects requests that do not present one of the configured
// keys, either as X-API-Key or as a bearer token. An empty key set disables
// the check, for deployments that authenticate at the gateway instead.
// Comparison is constant-time per key so the check does not leak prefix
// matches.
func APIKeyAuth(keys []string, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		presented := c.GetHeader(HeaderAPIKey)
		if presented == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if !keyMatches(presented, keys) {
			resp := common.NewErrorResponse(
				errors.ErrCodeUnauthorized.String(),
				"missing or invalid API key",
			)
			resp.RequestID = RequestIDFromContext(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp)
			return
		}

		c.Next()
	}
}

func keyMatches(presented string, keys []string) bool {
	if presented == "" {
		return false
	}
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(k)) == 1 {
			return true
		}
	}
	return false
}
