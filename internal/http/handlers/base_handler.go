// README: Base handler utilities (JSON helpers, caller lookup, error mapping).
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/http/middleware"
	"cabdispatch/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

var errBadID = apperr.Invalid("id", "id must be a positive integer")

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// statusFor maps a domain error kind onto an HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidTransition, apperr.KindResourceUnavailable, apperr.KindDuplicateKey:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError hides non-domain errors behind a generic 500 and records
// them on the context for the access log.
func writeDomainError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, statusFor(ae.Kind), errorResponse{Error: ae.Msg, Kind: string(ae.Kind), Field: ae.Field})
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error(), Kind: string(apperr.KindValidation)})
		return false
	}
	return true
}

// bindOptionalJSON binds a body that may be absent. Chunked bodies have an
// unknown length, so emptiness is only known after reading.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error(), Kind: string(apperr.KindValidation)})
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	id, ok := types.ParseID(c.Param(name))
	if !ok {
		writeDomainError(c, errBadID)
		return 0, false
	}
	return id, true
}

// queryID reads an optional id query parameter; absent means zero.
func queryID(c *gin.Context, name string) (types.ID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, ok := types.ParseID(raw)
	if !ok {
		writeDomainError(c, apperr.Invalid(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func caller(c *gin.Context) types.Caller {
	cl, _ := middleware.Caller(c)
	return cl
}
