package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/conventions/httpx"
	"github.com/diewo77/conventions/internal/lifecycle"
	"github.com/diewo77/conventions/internal/services"
	"github.com/diewo77/conventions/validation"
	"github.com/rs/zerolog"
)

// errorStatus maps domain errors to HTTP status codes. Order matters: the first
// sentinel matched by errors.Is wins.
var errorStatus = []struct {
	err    error
	status int
}{
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrInvalidInput, http.StatusUnprocessableEntity},
	{lifecycle.ErrInvalidDateRange, http.StatusUnprocessableEntity},
	{lifecycle.ErrMissingScheduleInput, http.StatusUnprocessableEntity},
	{services.ErrDuplicateReference, http.StatusConflict},
	{services.ErrAlreadyArchived, http.StatusConflict},
	{services.ErrNotArchived, http.StatusConflict},
	{services.ErrArchivedConvention, http.StatusConflict},
	{services.ErrAlreadyPaid, http.StatusConflict},
	{services.ErrUnpaidInvoices, http.StatusConflict},
}

// writeError answers with the status matching err. Unknown errors are logged and
// reported as 500 without their message.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var v validation.Violations
	if errors.As(err, &v) {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}
	for _, m := range errorStatus {
		if !errors.Is(err, m.err) {
			continue
		}
		var details any
		var unpaid *services.UnpaidInvoicesError
		if errors.As(err, &unpaid) {
			details = map[string]any{"invoices": unpaid.Numbers}
		} else if m.status == http.StatusUnprocessableEntity {
			details = err.Error()
		}
		httpx.JSONError(w, m.status, m.err.Error(), details)
		return
	}
	log.Error().Err(err).Msg("request failed")
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}

// pathID parses the {id} wildcard. It writes a 400 and returns false when invalid.
func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}
