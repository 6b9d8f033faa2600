package middleware

import (
	stdliberrors "errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

// Recovery converts handler panics into 500 responses with the standard
// error envelope. When the client already hung up the response is skipped,
// since writing to a broken connection would only panic again.
func Recovery(log logging.Logger) gin.HandlerFunc {
	if log == nil {
		log = logging.NewNopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			log.Error("panic recovered",
				logging.String("request_id", RequestIDFromContext(c)),
				logging.String("method", c.Request.Method),
				logging.String("path", c.Request.URL.Path),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)

			if isBrokenPipe(r) {
				c.Abort()
				return
			}

			resp := common.NewErrorResponse(
				errors.ErrCodeInternal.String(),
				errors.DefaultMessageForCode(errors.ErrCodeInternal),
			)
			resp.RequestID = RequestIDFromContext(c)
			c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
		}()

		c.Next()
	}
}

func isBrokenPipe(r interface{}) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !stdliberrors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !stdliberrors.As(opErr.Err, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
