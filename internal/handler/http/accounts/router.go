package accounts_http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ledger/internal/app/accounts"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

func RegisterRoutes(r chi.Router, s accounts.Service, auth *Authenticator, health HealthChecker, l *zap.Logger) {
	handler := NewAccountHandler(s, l.With(zap.String("component", "AccountHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := health.Ping(ctx); err != nil {
			l.Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/accounts", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/", handler.CreateAccountHandler)
		r.Get("/", handler.ListAccountsHandler)
		r.Post("/transfer", handler.TransferHandler)
		r.Get("/{id}", handler.GetAccountHandler)
		r.Delete("/{id}", handler.DeleteAccountHandler)
		r.Put("/{id}/deposit", handler.DepositHandler)
		r.Put("/{id}/withdraw", handler.WithdrawHandler)
		r.Get("/{id}/transactions", handler.ListTransactionsHandler)
	})
}
