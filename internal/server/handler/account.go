package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/server/middleware"
)

// AccountService defines the methods that the account handler requires.
type AccountService interface {
	GetOrCreate(ctx context.Context, wallet string) (domain.Account, error)
	Summary(ctx context.Context, wallet string) (domain.AccountSummary, error)
	Archive(ctx context.Context, wallet string) error
}

// AccountHandler serves account-related HTTP endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and logger.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// GetAccount returns the caller's account summary, creating the account with
// the starting balance on first contact.
// GET /api/account
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())

	if _, err := h.accounts.GetOrCreate(r.Context(), wallet); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get or create account failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to load account")
		return
	}

	summary, err := h.accounts.Summary(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: account summary failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ArchiveAccount retires the caller's account. Open positions survive until
// settled but no new positions can be opened.
// DELETE /api/account
func (h *AccountHandler) ArchiveAccount(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())

	if err := h.accounts.Archive(r.Context(), wallet); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive account failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to archive account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "archived",
		"wallet": wallet,
	})
}
