package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/response"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/service"
)

// PerformanceHandler serves growth indices.
type PerformanceHandler struct {
	performanceService *service.PerformanceService
}

// NewPerformanceHandler creates a new PerformanceHandler
func NewPerformanceHandler(performanceService *service.PerformanceService) *PerformanceHandler {
	return &PerformanceHandler{performanceService: performanceService}
}

// Performance handles GET requests for a portfolio's growth index, optionally
// alongside a benchmark normalized to the same starting value.
//
// Endpoint: GET /api/portfolio/{uuid}/performance?period=1y&benchmark=SPY (period defaults to 1y)
// Response: 200 OK with PerformanceSeries
// Error: 400 Bad Request if period is unknown
// Error: 404 Not Found if the portfolio does not exist
func (h *PerformanceHandler) Performance(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	series, err := h.performanceService.GetPerformanceSeries(r.Context(), chi.URLParam(r, "uuid"), query.Get("period"), query.Get("benchmark"))
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToGetPerformance.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, series)
}
