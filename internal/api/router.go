// Package api assembles the HTTP surface of the service.
package api

import (
	"net/http"

	"github.com/dvloznov/gastos/internal/api/handlers"
	"github.com/dvloznov/gastos/internal/api/middleware"
	"github.com/dvloznov/gastos/internal/identity"
	"github.com/rs/zerolog"
)

// RouterConfig holds the handlers and credentials the router needs.
type RouterConfig struct {
	Expenses *handlers.ExpensesHandler
	Link     *handlers.LinkHandler
	Webhook  *handlers.WebhookHandler
	Jobs     *handlers.JobsHandler
	Messages *handlers.MessagesHandler

	// APIKey guards the expense and job endpoints.
	APIKey string
	// Verifier checks the ID tokens sent to the link endpoints.
	Verifier identity.Verifier

	Logger zerolog.Logger
}

// NewRouter registers every endpoint and wraps the mux in the standard
// middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	apiKey := middleware.APIKey(cfg.APIKey)
	auth := middleware.Auth(cfg.Verifier, log)

	mux := http.NewServeMux()

	// Expenses endpoints
	mux.Handle("POST /expenses", apiKey(http.HandlerFunc(cfg.Expenses.CreateExpense)))
	mux.Handle("GET /expenses", apiKey(http.HandlerFunc(cfg.Expenses.ListExpenses)))
	mux.Handle("PUT /expenses", apiKey(http.HandlerFunc(cfg.Expenses.UpdateExpense)))
	mux.Handle("DELETE /expenses", apiKey(http.HandlerFunc(cfg.Expenses.DeleteExpense)))

	// Account linking
	mux.Handle("POST /auth", auth(http.HandlerFunc(cfg.Link.RedeemToken)))
	mux.Handle("POST /verify-telegram-code", auth(http.HandlerFunc(cfg.Link.VerifyCode)))

	// Telegram webhook
	mux.HandleFunc("POST /webhooks/telegram", cfg.Webhook.HandleUpdate)

	// Web chat
	mux.Handle("POST /api/messages", apiKey(http.HandlerFunc(cfg.Messages.PostMessage)))

	// Jobs endpoints
	mux.Handle("GET /api/jobs", apiKey(http.HandlerFunc(cfg.Jobs.ListJobs)))
	mux.Handle("GET /api/jobs/{id}", apiKey(http.HandlerFunc(cfg.Jobs.GetJob)))

	mux.HandleFunc("GET /health", handlers.Health)

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)
}
