package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/request"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/response"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/service"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/validation"
)

// TransactionHandler handles HTTP requests for transaction endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// ledger writes and reads to the transactionService.
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler with the provided service dependency.
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// TransactionPerPortfolio handles GET requests listing a portfolio's ledger
// in date order, one page at a time.
//
// Endpoint: GET /api/transaction/portfolio/{uuid}?ticker=&type=&from=&to=&cursor=&limit=
// Response: 200 OK with TransactionPage; nextCursor is empty on the last page
// Error: 400 Bad Request if a filter or the cursor is malformed
// Error: 404 Not Found if the portfolio does not exist
func (h *TransactionHandler) TransactionPerPortfolio(w http.ResponseWriter, r *http.Request) {
	q, err := validation.ValidateTransactionListQuery(r.URL.Query())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveTransactions.Error(), err)
		return
	}

	page, err := h.transactionService.ListTransactions(r.Context(), chi.URLParam(r, "uuid"), q.Filter, q.Cursor, q.Limit)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveTransactions.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, page)
}

// GetTransaction handles GET requests for a single transaction.
//
// Endpoint: GET /api/transaction/{uuid}
// Response: 200 OK with Transaction
// Error: 404 Not Found if the transaction does not exist
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactionService.GetTransaction(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveTransaction.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, tx)
}

// CreateTransaction handles POST requests appending one transaction to a
// portfolio's ledger. Holdings, cash and snapshots are updated in the same
// write.
//
// Endpoint: POST /api/transaction/portfolio/{uuid}
// Request Body: TransactionRequest
// Response: 201 Created with Transaction
// Error: 400 Bad Request if the body is malformed or violates the sign rules
// Error: 404 Not Found if the portfolio does not exist
// Error: 422 Unprocessable Entity if a sell exceeds the open lots
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.TransactionRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := h.transactionService.CreateTransaction(r.Context(), chi.URLParam(r, "uuid"), req.Input())
	if err != nil {
		response.RespondServiceError(w, "failed to create transaction", err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, tx)
}

// ImportTransactions handles POST requests appending a batch of transactions.
// The batch is stored completely or not at all.
//
// Endpoint: POST /api/transaction/portfolio/{uuid}/import
// Request Body: ImportTransactionsRequest
// Response: 201 Created with ImportResult
// Error: 400 Bad Request with per-entry field errors
// Error: 422 Unprocessable Entity if the batch oversells a ticker
func (h *TransactionHandler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ImportTransactionsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.transactionService.ImportTransactions(r.Context(), chi.URLParam(r, "uuid"), req.Inputs())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToImportTransactions.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, result)
}

// UpdateTransaction handles PUT requests replacing a transaction.
//
// Endpoint: PUT /api/transaction/{uuid}
// Request Body: TransactionRequest
// Response: 200 OK with the updated Transaction
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if the transaction does not exist
// Error: 422 Unprocessable Entity if the edited ledger oversells a ticker
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.TransactionRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := h.transactionService.UpdateTransaction(r.Context(), chi.URLParam(r, "uuid"), req.Input())
	if err != nil {
		response.RespondServiceError(w, "failed to update transaction", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE requests removing a transaction.
//
// Endpoint: DELETE /api/transaction/{uuid}
// Response: 204 No Content
// Error: 404 Not Found if the transaction does not exist
// Error: 422 Unprocessable Entity if a later sell would lose its lots
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.transactionService.DeleteTransaction(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		response.RespondServiceError(w, "failed to delete transaction", err)
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}
