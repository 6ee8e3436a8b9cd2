package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/handlers"
	custommiddleware "github.com/ndewijer/Investment-Ledger-Backend/internal/api/middleware"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/config"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/service"
)

// Services are the services the router dispatches to.
type Services struct {
	System      *service.SystemService
	Portfolio   *service.PortfolioService
	Transaction *service.TransactionService
	Snapshot    *service.SnapshotService
	Price       *service.PriceService
	Performance *service.PerformanceService
	Tax         *service.TaxService
}

// NewRouter creates and configures the HTTP router
func NewRouter(svcs Services, logger *log.Logger, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	systemHandler := handlers.NewSystemHandler(svcs.System)
	portfolioHandler := handlers.NewPortfolioHandler(svcs.Portfolio, svcs.Snapshot)
	transactionHandler := handlers.NewTransactionHandler(svcs.Transaction)
	priceHandler := handlers.NewPriceHandler(svcs.Price)
	performanceHandler := handlers.NewPerformanceHandler(svcs.Performance)
	taxHandler := handlers.NewTaxHandler(svcs.Tax)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", portfolioHandler.Portfolios)
			r.Post("/", portfolioHandler.CreatePortfolio)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", portfolioHandler.Portfolio)
				r.Put("/", portfolioHandler.UpdatePortfolio)
				r.Delete("/", portfolioHandler.DeletePortfolio)
				r.Post("/recompute", portfolioHandler.Recompute)
				r.Get("/holdings", portfolioHandler.Holdings)
				r.Get("/value", portfolioHandler.Value)
				r.Get("/lots", portfolioHandler.Lots)
				r.Post("/snapshots", portfolioHandler.Materialize)
				r.Get("/performance", performanceHandler.Performance)
				r.Get("/tax", taxHandler.Summary)
				r.Get("/tax/impact", taxHandler.Impact)
			})
		})

		r.Route("/transaction", func(r chi.Router) {
			r.Route("/portfolio/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", transactionHandler.TransactionPerPortfolio)
				r.Post("/", transactionHandler.CreateTransaction)
				r.Post("/import", transactionHandler.ImportTransactions)
			})

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", transactionHandler.GetTransaction)
				r.Put("/", transactionHandler.UpdateTransaction)
				r.Delete("/", transactionHandler.DeleteTransaction)
			})
		})

		r.Route("/price", func(r chi.Router) {
			r.Post("/", priceHandler.StorePrices)
			r.Post("/refresh", priceHandler.RefreshPrices)
			r.Get("/{ticker}", priceHandler.Prices)
		})

		r.Get("/tax/rates", taxHandler.Rates)
	})

	return r
}
