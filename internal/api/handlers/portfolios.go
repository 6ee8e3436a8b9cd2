package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/request"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/response"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/service"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/validation"
)

// PortfolioHandler handles portfolio-related HTTP requests: metadata CRUD,
// the derived aggregates and the valuation and lot views computed from them.
type PortfolioHandler struct {
	portfolioService *service.PortfolioService
	snapshotService  *service.SnapshotService
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(portfolioService *service.PortfolioService, snapshotService *service.SnapshotService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		snapshotService:  snapshotService,
	}
}

func portfolioInput(req request.PortfolioRequest) service.PortfolioInput {
	return service.PortfolioInput{
		Name:        req.Name,
		Description: req.Description,
		AccountType: req.AccountType,
		IsArchived:  req.IsArchived,
		Metadata:    req.Metadata,
	}
}

// Portfolios handles GET requests listing portfolios.
//
// Endpoint: GET /api/portfolio?include_archived=true
// Response: 200 OK with array of Portfolio
// Error: 500 Internal Server Error if retrieval fails
func (h *PortfolioHandler) Portfolios(w http.ResponseWriter, r *http.Request) {
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))

	portfolios, err := h.portfolioService.GetPortfolios(r.Context(), model.PortfolioFilter{IncludeArchived: includeArchived})
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePortfolios.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, portfolios)
}

// Portfolio handles GET requests for a single portfolio.
//
// Endpoint: GET /api/portfolio/{uuid}
// Response: 200 OK with Portfolio
// Error: 404 Not Found if the portfolio does not exist
func (h *PortfolioHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.portfolioService.GetPortfolio(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrievePortfolios.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, p)
}

// CreatePortfolio handles POST requests creating an empty portfolio.
//
// Endpoint: POST /api/portfolio
// Request Body: PortfolioRequest (name required, accountType taxable|ira)
// Response: 201 Created with Portfolio
// Error: 400 Bad Request if the body is malformed or validation fails
func (h *PortfolioHandler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.PortfolioRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	p, err := h.portfolioService.CreatePortfolio(r.Context(), portfolioInput(req))
	if err != nil {
		response.RespondServiceError(w, "failed to create portfolio", err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, p)
}

// UpdatePortfolio handles PUT requests replacing a portfolio's descriptive fields.
//
// Endpoint: PUT /api/portfolio/{uuid}
// Request Body: PortfolioRequest
// Response: 200 OK with the updated Portfolio
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if the portfolio does not exist
func (h *PortfolioHandler) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.PortfolioRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	p, err := h.portfolioService.UpdatePortfolio(r.Context(), chi.URLParam(r, "uuid"), portfolioInput(req))
	if err != nil {
		response.RespondServiceError(w, "failed to update portfolio", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, p)
}

// DeletePortfolio handles DELETE requests removing a portfolio and its ledger.
//
// Endpoint: DELETE /api/portfolio/{uuid}
// Response: 204 No Content
// Error: 404 Not Found if the portfolio does not exist
func (h *PortfolioHandler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := h.portfolioService.DeletePortfolio(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		response.RespondServiceError(w, "failed to delete portfolio", err)
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}

// Recompute handles POST requests replaying the ledger into holdings and cash.
//
// Endpoint: POST /api/portfolio/{uuid}/recompute
// Response: 200 OK with Aggregate
// Error: 404 Not Found if the portfolio does not exist
// Error: 422 Unprocessable Entity if a sell exceeds its open lots
func (h *PortfolioHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	agg, err := h.portfolioService.RecomputeAggregates(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRecompute.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, agg)
}

// Holdings handles GET requests for the stored per-ticker aggregates.
//
// Endpoint: GET /api/portfolio/{uuid}/holdings
// Response: 200 OK with array of Holding
func (h *PortfolioHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.portfolioService.GetHoldings(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrievePortfolios.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, holdings)
}

// Value handles GET requests valuing a portfolio on a date.
//
// Endpoint: GET /api/portfolio/{uuid}/value?date=YYYY-MM-DD (default today)
// Response: 200 OK with PortfolioValue; missing prices appear as warnings
// Error: 400 Bad Request if date is malformed
// Error: 404 Not Found if the portfolio does not exist
func (h *PortfolioHandler) Value(w http.ResponseWriter, r *http.Request) {
	q := validation.NewQuery(r.URL.Query())
	date := q.Date("date", time.Now())
	if err := q.Err(); err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToGetPortfolioValue.Error(), err)
		return
	}

	value, err := h.portfolioService.GetPortfolioValue(r.Context(), chi.URLParam(r, "uuid"), date)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToGetPortfolioValue.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, value)
}

// Lots handles GET requests for the open FIFO lots of a portfolio.
//
// Endpoint: GET /api/portfolio/{uuid}/lots?ticker=AAPL (ticker optional)
// Response: 200 OK with array of Lot, oldest first
// Error: 404 Not Found if the portfolio does not exist
// Error: 422 Unprocessable Entity if the ledger oversells a ticker
func (h *PortfolioHandler) Lots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.portfolioService.GetOpenLots(r.Context(), chi.URLParam(r, "uuid"), r.URL.Query().Get("ticker"))
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveLots.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, lots)
}

// MaterializeResponse reports a snapshot rebuild.
type MaterializeResponse struct {
	PortfolioID string `json:"portfolioId"`
	Snapshots   int    `json:"snapshots"`
}

// Materialize handles POST requests rebuilding the stored daily snapshots.
//
// Endpoint: POST /api/portfolio/{uuid}/snapshots
// Response: 200 OK with MaterializeResponse
// Error: 404 Not Found if the portfolio does not exist
func (h *PortfolioHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	n, err := h.snapshotService.Materialize(r.Context(), id)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToMaterialize.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, MaterializeResponse{PortfolioID: id, Snapshots: n})
}
