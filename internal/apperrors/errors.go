package apperrors

import "errors"

// Domain entity errors represent missing entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrNotFound is the category every missing-entity error wraps.
	ErrNotFound = errors.New("not found")

	// ErrPortfolioNotFound indicates that a portfolio with the given ID does not exist.
	ErrPortfolioNotFound = wrapNotFound("portfolio not found")

	// ErrTransactionNotFound indicates that a transaction with the given ID does not exist.
	ErrTransactionNotFound = wrapNotFound("transaction not found")

	// ErrSnapshotNotFound indicates that no snapshot exists on or before the requested date.
	ErrSnapshotNotFound = wrapNotFound("snapshot not found")

	// ErrPriceNotFound indicates no stored price for a ticker and date combination.
	ErrPriceNotFound = wrapNotFound("price not found")

	// ErrSymbolNotFound indicates that a symbol lookup returned no results
	ErrSymbolNotFound = wrapNotFound("symbol not found")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrValidation is the category every *ValidationError matches through errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientLots indicates a sell for more shares than the open lots hold.
	// *InsufficientLotsError matches it through errors.Is.
	ErrInsufficientLots = errors.New("insufficient lots for sale")

	// ErrNoPriceData indicates a ticker has no price at or before a required date.
	// *NoPriceDataError matches it through errors.Is.
	ErrNoPriceData = errors.New("no price data")

	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrInvalidCursor indicates a pagination cursor that failed verification or expired.
	ErrInvalidCursor = errors.New("invalid cursor")

	// Validation errors for required fields
	ErrInvalidPortfolioID = errors.New("portfolio ID is required")
	ErrInvalidTicker      = errors.New("ticker is required")
	ErrInvalidDate        = errors.New("date parameter is required")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
// These errors indicate that an operation failed, but not due to missing entities or validation issues.
var (
	// Portfolio operation errors
	ErrFailedToRetrievePortfolios = errors.New("failed to retrieve portfolios")
	ErrFailedToRecompute          = errors.New("failed to recompute portfolio aggregates")
	ErrFailedToGetPortfolioValue  = errors.New("failed to get portfolio value")
	ErrFailedToGetPerformance     = errors.New("failed to get portfolio performance")
	ErrFailedToRetrieveLots       = errors.New("failed to retrieve open lots")
	ErrFailedToMaterialize        = errors.New("failed to materialize snapshots")

	// Transaction operation errors
	ErrFailedToRetrieveTransactions = errors.New("failed to retrieve transactions")
	ErrFailedToRetrieveTransaction  = errors.New("failed to retrieve transaction")
	ErrFailedToImportTransactions   = errors.New("failed to import transactions")

	// Tax operation errors
	ErrFailedToGetTaxSummary   = errors.New("failed to get tax summary")
	ErrFailedToEstimateTaxHit  = errors.New("failed to estimate tax impact")
	ErrFailedToRefreshPrices   = errors.New("failed to refresh prices")
	ErrFailedToRetrievePrices  = errors.New("failed to retrieve prices")
	ErrFailedToGetVersionInfo  = errors.New("failed to get version information")
	ErrFailedToGetHealthStatus = errors.New("failed to get health status")
)

// Data integrity errors represent inconsistencies or corruption in the data.
var (
	// ErrDataInconsistency indicates that the data is in an inconsistent state
	// (e.g., a stored snapshot that cannot be decoded).
	ErrDataInconsistency = errors.New("data inconsistency detected")
)

type notFoundError struct {
	msg string
}

func wrapNotFound(msg string) error {
	return &notFoundError{msg: msg}
}

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Unwrap() error { return ErrNotFound }
