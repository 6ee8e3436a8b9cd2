package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/request"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/response"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/service"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/validation"
)

// PriceHandler handles the daily close table.
type PriceHandler struct {
	priceService *service.PriceService
}

// NewPriceHandler creates a new PriceHandler
func NewPriceHandler(priceService *service.PriceService) *PriceHandler {
	return &PriceHandler{priceService: priceService}
}

// StoredPricesResponse reports a manual upload.
type StoredPricesResponse struct {
	Stored int `json:"stored"`
}

// Prices handles GET requests for a ticker's stored closes.
//
// Endpoint: GET /api/price/{ticker}?start=YYYY-MM-DD&end=YYYY-MM-DD
// Default range is the year ending today.
// Response: 200 OK with array of PricePoint, oldest first
// Error: 400 Bad Request if a date is malformed or start is after end
func (h *PriceHandler) Prices(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	if ticker == "" {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidTicker.Error(), "")
		return
	}

	now := time.Now()
	q := validation.NewQuery(r.URL.Query())
	end := q.Date("end", now)
	start := q.Date("start", end.AddDate(-1, 0, 0))
	if err := q.Err(); err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrievePrices.Error(), err)
		return
	}
	if start.After(end) {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDateRange.Error(), "start must not be after end")
		return
	}

	prices, err := h.priceService.GetPrices(r.Context(), ticker, start, end)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrievePrices.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, prices)
}

// StorePrices handles POST requests uploading closes by hand, for tickers the
// provider does not cover. Existing closes for the same day are replaced.
//
// Endpoint: POST /api/price
// Request Body: StorePricesRequest
// Response: 201 Created with StoredPricesResponse
// Error: 400 Bad Request with per-entry field errors
func (h *PriceHandler) StorePrices(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.StorePricesRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	points, err := validation.ValidateStorePrices(req)
	if err != nil {
		response.RespondServiceError(w, "failed to store prices", err)
		return
	}

	n, err := h.priceService.StorePrices(r.Context(), points)
	if err != nil {
		response.RespondServiceError(w, "failed to store prices", err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, StoredPricesResponse{Stored: n})
}

// RefreshPrices handles POST requests fetching missing closes from the
// market data provider. Per-ticker failures are reported in the result and
// do not fail the request.
//
// Endpoint: POST /api/price/refresh
// Request Body: optional RefreshPricesRequest; no tickers means every traded ticker
// Response: 200 OK with PriceRefreshResult
// Error: 500 Internal Server Error if no provider is configured
func (h *PriceHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	req, err := parseOptionalJSON[request.RefreshPricesRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.priceService.RefreshPrices(r.Context(), req.Tickers)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRefreshPrices.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
