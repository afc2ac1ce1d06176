// Package handlers implements the HTTP endpoints of the Gastos API.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/gastos/internal/api/middleware"
	"github.com/dvloznov/gastos/internal/dispatcher"
	"github.com/dvloznov/gastos/internal/domain"
)

// AccountResolver maps a chat identity to its linked account.
type AccountResolver interface {
	Resolve(ctx context.Context, chatID string) (string, error)
}

// LinkRedeemer redeems link codes and tokens for a signed-in account.
type LinkRedeemer interface {
	Redeem(ctx context.Context, token, accountID string) (*domain.AccountLink, error)
}

// ExpenseArchiver hands stored expenses to background archival.
type ExpenseArchiver interface {
	ArchiveExpense(ctx context.Context, e *domain.Expense) error
}

// EventHandler handles one inbound chat event.
type EventHandler interface {
	Handle(ctx context.Context, ev dispatcher.Event) error
}

type validationResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields"`
}

// writeValidationError writes 400 with the failing fields, or a plain 400
// when err carries none.
func writeValidationError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "Validation failed",
			Fields: verr.Fields,
		})
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, err.Error())
}
