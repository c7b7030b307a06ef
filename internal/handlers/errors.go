package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
)

// errorStatus maps coordinator errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	var gerr *lifecycle.GatewayError
	switch {
	case errors.Is(err, lifecycle.ErrDuplicateProduct):
		return http.StatusConflict, "duplicate_product"
	case errors.Is(err, lifecycle.ErrDuplicateUpload):
		return http.StatusConflict, "duplicate_upload"
	case errors.Is(err, lifecycle.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, lifecycle.ErrSubmissionInFlight):
		return http.StatusConflict, "submission_in_flight"
	case errors.Is(err, lifecycle.ErrUnknownIdentity):
		return http.StatusNotFound, "unknown_identity"
	case errors.As(err, &gerr):
		return http.StatusBadGateway, "gateway_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, gin.H{"error": code, "detail": err.Error()})
}
