// Package httpx holds the HTTP-layer conventions shared by every service
// binary: mapping the closed apperror taxonomy onto status codes, and a
// couple of small envelope helpers, so cmd/ doesn't re-derive this per
// service.
package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iaros/commerce-core/internal/apperror"
)

// codeStatus overrides the default kind->status mapping for error codes
// that need a specific status (e.g. quota/ownership failures are 403, not
// the default 400 for client input).
var codeStatus = map[string]int{
	"QuotaExceeded":            http.StatusForbidden,
	"OwnerMismatch":            http.StatusForbidden,
	"MerchantPermissionDenied": http.StatusForbidden,
	"NotExist":                 http.StatusNotFound,
	"RefundRequestNotFound":    http.StatusNotFound,
	"ChargeIdDecode":           http.StatusBadRequest,
	"OrderAlreadySyncing":      http.StatusUnprocessableEntity,
	"ChargeStatus":             http.StatusUnprocessableEntity,
}

func statusFor(err *apperror.Error) int {
	if status, ok := codeStatus[err.Code]; ok {
		return status
	}
	switch err.Kind {
	case apperror.KindClientInput:
		return http.StatusBadRequest
	case apperror.KindDomainState:
		return http.StatusUnprocessableEntity
	case apperror.KindDataCorruption:
		return http.StatusInternalServerError
	case apperror.KindTransientInfra:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as a JSON error envelope with the status code the
// error taxonomy implies, aborting the gin context.
func WriteError(c *gin.Context, err error) {
	appErr, ok := apperror.AsError(err)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "Unknown", "message": err.Error()}})
		return
	}
	body := gin.H{"code": appErr.Code, "message": appErr.Msg}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	c.AbortWithStatusJSON(statusFor(appErr), gin.H{"error": body})
}
