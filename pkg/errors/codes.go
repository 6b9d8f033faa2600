package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Document Module Error Codes
const (
	ErrCodeDocumentNotFound        ErrorCode = "DOC_001"
	ErrCodeDocumentAlreadyExists   ErrorCode = "DOC_002"
	ErrCodeDocumentEmptyText       ErrorCode = "DOC_003"
	ErrCodeDocumentTooLarge        ErrorCode = "DOC_004"
	ErrCodeDocumentClassifyFailed  ErrorCode = "DOC_005"
	ErrCodeDocumentExtractFailed   ErrorCode = "DOC_006"
	ErrCodeDocumentMappingFailed   ErrorCode = "DOC_007"
	ErrCodeDocumentStoreFailed     ErrorCode = "DOC_008"
	ErrCodeDocumentIndexFailed     ErrorCode = "DOC_009"
	ErrCodeDocumentInvalidEncoding ErrorCode = "DOC_010"
)

// Case Module Error Codes
const (
	ErrCodeCaseNotFound         ErrorCode = "CASE_001"
	ErrCodeCaseRebuildFailed    ErrorCode = "CASE_002"
	ErrCodeCaseNoDocuments      ErrorCode = "CASE_003"
	ErrCodeCaseRebuildLocked    ErrorCode = "CASE_004"
	ErrCodeCaseInvalidateFailed ErrorCode = "CASE_005"
)

// Assist Module Error Codes
const (
	ErrCodeAssistDisabled       ErrorCode = "AST_001"
	ErrCodeAssistUnavailable    ErrorCode = "AST_002"
	ErrCodeAssistInvalidPayload ErrorCode = "AST_003"
	ErrCodeAssistTimeout        ErrorCode = "AST_004"
)

// Search Module Error Codes
const (
	ErrCodeSearchUnavailable  ErrorCode = "SRCH_001"
	ErrCodeSearchQueryInvalid ErrorCode = "SRCH_002"
	ErrCodeSearchIndexFailed  ErrorCode = "SRCH_003"
)

// Storage Module Error Codes
const (
	ErrCodeStorageUnavailable    ErrorCode = "STOR_001"
	ErrCodeStorageObjectNotFound ErrorCode = "STOR_002"
	ErrCodeStorageUploadFailed   ErrorCode = "STOR_003"
	ErrCodeStorageDownloadFailed ErrorCode = "STOR_004"
)

// Aliases used by generic layers that do not care about the module prefix.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")

	CodeDocumentNotFound = ErrCodeDocumentNotFound
	CodeCaseNotFound     = ErrCodeCaseNotFound
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeDocumentNotFound:        http.StatusNotFound,
	ErrCodeDocumentAlreadyExists:   http.StatusConflict,
	ErrCodeDocumentEmptyText:       http.StatusBadRequest,
	ErrCodeDocumentTooLarge:        http.StatusRequestEntityTooLarge,
	ErrCodeDocumentClassifyFailed:  http.StatusInternalServerError,
	ErrCodeDocumentExtractFailed:   http.StatusInternalServerError,
	ErrCodeDocumentMappingFailed:   http.StatusInternalServerError,
	ErrCodeDocumentStoreFailed:     http.StatusInternalServerError,
	ErrCodeDocumentIndexFailed:     http.StatusInternalServerError,
	ErrCodeDocumentInvalidEncoding: http.StatusBadRequest,

	ErrCodeCaseNotFound:         http.StatusNotFound,
	ErrCodeCaseRebuildFailed:    http.StatusInternalServerError,
	ErrCodeCaseNoDocuments:      http.StatusNotFound,
	ErrCodeCaseRebuildLocked:    http.StatusConflict,
	ErrCodeCaseInvalidateFailed: http.StatusInternalServerError,

	ErrCodeAssistDisabled:       http.StatusForbidden,
	ErrCodeAssistUnavailable:    http.StatusServiceUnavailable,
	ErrCodeAssistInvalidPayload: http.StatusBadGateway,
	ErrCodeAssistTimeout:        http.StatusGatewayTimeout,

	ErrCodeSearchUnavailable:  http.StatusServiceUnavailable,
	ErrCodeSearchQueryInvalid: http.StatusBadRequest,
	ErrCodeSearchIndexFailed:  http.StatusInternalServerError,

	ErrCodeStorageUnavailable:    http.StatusServiceUnavailable,
	ErrCodeStorageObjectNotFound: http.StatusNotFound,
	ErrCodeStorageUploadFailed:   http.StatusInternalServerError,
	ErrCodeStorageDownloadFailed: http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeDocumentNotFound:        "document not found",
	ErrCodeDocumentAlreadyExists:   "document already exists",
	ErrCodeDocumentEmptyText:       "document text is empty",
	ErrCodeDocumentTooLarge:        "document exceeds maximum size",
	ErrCodeDocumentClassifyFailed:  "document classification failed",
	ErrCodeDocumentExtractFailed:   "entity extraction failed",
	ErrCodeDocumentMappingFailed:   "field mapping failed",
	ErrCodeDocumentStoreFailed:     "failed to store document",
	ErrCodeDocumentIndexFailed:     "failed to index document",
	ErrCodeDocumentInvalidEncoding: "document text is not valid UTF-8",

	ErrCodeCaseNotFound:         "case not found",
	ErrCodeCaseRebuildFailed:    "case rebuild failed",
	ErrCodeCaseNoDocuments:      "case has no processed documents",
	ErrCodeCaseRebuildLocked:    "case rebuild already in progress",
	ErrCodeCaseInvalidateFailed: "failed to invalidate case cache",

	ErrCodeAssistDisabled:       "assist analysis disabled",
	ErrCodeAssistUnavailable:    "assist provider unavailable",
	ErrCodeAssistInvalidPayload: "assist provider returned an unusable payload",
	ErrCodeAssistTimeout:        "assist provider timed out",

	ErrCodeSearchUnavailable:  "search backend unavailable",
	ErrCodeSearchQueryInvalid: "invalid search query",
	ErrCodeSearchIndexFailed:  "search indexing failed",

	ErrCodeStorageUnavailable:    "object storage unavailable",
	ErrCodeStorageObjectNotFound: "stored object not found",
	ErrCodeStorageUploadFailed:   "failed to upload object",
	ErrCodeStorageDownloadFailed: "failed to download object",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
