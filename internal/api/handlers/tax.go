package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/response"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/service"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/validation"
)

// TaxHandler serves realized-gain summaries and sale previews.
type TaxHandler struct {
	taxService *service.TaxService
}

// NewTaxHandler creates a new TaxHandler
func NewTaxHandler(taxService *service.TaxService) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

// Rates handles GET requests for the configured rate schedule.
//
// Endpoint: GET /api/tax/rates
// Response: 200 OK with TaxRates
func (h *TaxHandler) Rates(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, h.taxService.Rates())
}

// Summary handles GET requests for a calendar year's realized gains,
// dividend income and estimated tax.
//
// Endpoint: GET /api/portfolio/{uuid}/tax?year=2024 (default current year)
// Response: 200 OK with TaxSummary
// Error: 400 Bad Request if year is malformed
// Error: 404 Not Found if the portfolio does not exist
// Error: 422 Unprocessable Entity if the ledger oversells a ticker
func (h *TaxHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := validation.NewQuery(r.URL.Query())
	year := q.Int("year", 0, 1900, 9999)
	if err := q.Err(); err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToGetTaxSummary.Error(), err)
		return
	}

	summary, err := h.taxService.GetTaxSummary(r.Context(), chi.URLParam(r, "uuid"), year)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToGetTaxSummary.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, summary)
}

// Impact handles GET requests previewing the tax of a sale today. Nothing is
// written.
//
// Endpoint: GET /api/portfolio/{uuid}/tax/impact?ticker=AAPL&shares=10&price=190.5
// Response: 200 OK with TaxImpact
// Error: 400 Bad Request if ticker or shares is missing, or no price is known
// Error: 404 Not Found if the portfolio does not exist
// Error: 422 Unprocessable Entity if the position holds fewer shares
func (h *TaxHandler) Impact(w http.ResponseWriter, r *http.Request) {
	q := validation.NewQuery(r.URL.Query())
	ticker := q.String("ticker")
	shares := q.RequiredFloat("shares")
	price := q.Float("price")
	if err := q.Err(); err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToEstimateTaxHit.Error(), err)
		return
	}

	impact, err := h.taxService.EstimateTaxImpact(r.Context(), chi.URLParam(r, "uuid"), ticker, shares, price)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToEstimateTaxHit.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, impact)
}
