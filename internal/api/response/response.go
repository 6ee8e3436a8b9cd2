// Package response provides utilities for sending consistent HTTP responses.
// It includes helpers for JSON responses and standardized error responses.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/phuslu/log"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
)

// ErrorResponse represents a structured error response returned by the API.
// The Details field is optional and can contain additional context about the error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// InsufficientLotsDetails is the details payload of a 422 response.
type InsufficientLotsDetails struct {
	Ticker    string  `json:"ticker"`
	Date      string  `json:"date"`
	Requested float64 `json:"requested"`
	Available float64 `json:"available"`
}

// RespondJSON sends a JSON response with the given status code.
// Sets the Content-Type header to application/json and writes the status code.
// If data is nil, only the status code is sent (useful for 204 No Content).
// Logs encoding errors but does not fail the response.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// RespondError sends a structured error response with the given status code.
// The message should be a user-friendly error description.
// The details parameter can be an error string, additional context, or nil.
//
// Example:
//
//	response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
//	response.RespondError(w, http.StatusNotFound, "resource not found", "")
func RespondError(w http.ResponseWriter, status int, message string, details any) {
	response := ErrorResponse{
		Error:   message,
		Details: details,
	}
	RespondJSON(w, status, response)
}

// RespondServiceError maps an error returned by a service onto the HTTP
// status of its kind:
//
//   - *apperrors.ValidationError and invalid cursors: 400, with the field map
//   - anything wrapping apperrors.ErrNotFound: 404
//   - *apperrors.InsufficientLotsError: 422, with ticker, date and quantities
//   - everything else: 500 with fallback as the message
func RespondServiceError(w http.ResponseWriter, fallback string, err error) {
	var verr *apperrors.ValidationError
	var lotsErr *apperrors.InsufficientLotsError

	switch {
	case errors.As(err, &verr):
		RespondError(w, http.StatusBadRequest, apperrors.ErrValidation.Error(), verr.Fields)
	case errors.Is(err, apperrors.ErrInvalidCursor):
		RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidCursor.Error(), err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		RespondError(w, http.StatusNotFound, rootMessage(err), err.Error())
	case errors.As(err, &lotsErr):
		RespondError(w, http.StatusUnprocessableEntity, apperrors.ErrInsufficientLots.Error(), InsufficientLotsDetails{
			Ticker:    lotsErr.Ticker,
			Date:      lotsErr.Date.Format("2006-01-02"),
			Requested: lotsErr.Requested,
			Available: lotsErr.Available,
		})
	default:
		log.Error().Err(err).Msg(fallback)
		RespondError(w, http.StatusInternalServerError, fallback, err.Error())
	}
}

// rootMessage names the specific not-found sentinel when err wraps one.
func rootMessage(err error) string {
	for _, target := range []error{
		apperrors.ErrPortfolioNotFound,
		apperrors.ErrTransactionNotFound,
		apperrors.ErrSnapshotNotFound,
		apperrors.ErrPriceNotFound,
		apperrors.ErrSymbolNotFound,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return apperrors.ErrNotFound.Error()
}
