// Package handlers contains the gin handlers for the HTTP API. Handlers
// translate between the wire shapes and the application services; every
// response, success or failure, rides the common.APIResponse envelope.
package handlers

import (
	stdliberrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/interfaces/http/middleware"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// respond writes a success envelope carrying data.
func respond(c *gin.Context, status int, data interface{}) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.RequestIDFromContext(c)
	c.JSON(status, resp)
}

// respondPage writes a success envelope with pagination metadata.
func respondPage(c *gin.Context, status int, data interface{}, p common.Pagination) {
	resp := common.NewPaginatedResponse(data, p)
	resp.RequestID = middleware.RequestIDFromContext(c)
	c.JSON(status, resp)
}

// respondError maps err onto the envelope. AppError codes pick the HTTP
// status; anything else is treated as internal, and internal failures never
// leak their underlying message to the caller.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	message := errors.DefaultMessageForCode(errors.ErrCodeInternal)
	var appErr *errors.AppError
	if stdliberrors.As(err, &appErr) && status < http.StatusInternalServerError {
		message = appErr.Message
	}

	resp := common.NewErrorResponse(code.String(), message)
	resp.RequestID = middleware.RequestIDFromContext(c)
	c.JSON(status, resp)
}

// bindJSON decodes the request body into dest. A false return means the
// 400 response has already been written.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, errors.Wrap(err, errors.CodeInvalidParam, "malformed request body"))
		return false
	}
	return true
}

// parsePagination reads the page and size query parameters, clamping size
// to the service maximum.
func parsePagination(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
