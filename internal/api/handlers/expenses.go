package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/gastos/internal/api/middleware"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/validation"
	"github.com/rs/zerolog"
)

// ExpensesHandler handles the /expenses endpoints. Callers name the chat
// identity in telegramUserId; every operation is scoped to its linked account.
type ExpensesHandler struct {
	store    domain.ExpenseStore
	accounts AccountResolver
	archiver ExpenseArchiver
	now      func() time.Time
	log      zerolog.Logger
}

// NewExpensesHandler creates a new expenses handler. archiver may be nil.
func NewExpensesHandler(store domain.ExpenseStore, accounts AccountResolver, archiver ExpenseArchiver, log zerolog.Logger) *ExpensesHandler {
	return &ExpensesHandler{
		store:    store,
		accounts: accounts,
		archiver: archiver,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// CreateExpense handles POST /expenses
func (h *ExpensesHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidate, err := validation.DecodeCandidate(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in, err := validation.ValidateExpense(candidate)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	accountID, ok := h.resolveOwner(ctx, w, stringField(candidate, validation.FieldTelegramUserID))
	if !ok {
		return
	}

	e, err := h.store.Create(ctx, in.NewExpense(accountID, h.now()))
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to create expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create expense")
		return
	}

	if h.archiver != nil {
		if err := h.archiver.ArchiveExpense(ctx, e); err != nil {
			h.log.Warn().Err(err).Str("expense_id", e.ID).Msg("Failed to enqueue expense archive")
		}
	}

	h.log.Info().Str("expense_id", e.ID).Str("account_id", accountID).Msg("Expense created")
	middleware.WriteJSON(w, http.StatusCreated, e)
}

// ListExpenses handles GET /expenses
func (h *ExpensesHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	verr := &domain.ValidationError{}
	var start, end *time.Time
	if s := query.Get(validation.FieldStartDate); s != "" {
		t, err := validation.ParseDate(s)
		if err != nil {
			verr.Add(validation.FieldStartDate, "must be a date (YYYY-MM-DD)")
		} else {
			start = &t
		}
	}
	if s := query.Get(validation.FieldEndDate); s != "" {
		t, err := validation.ParseDate(s)
		if err != nil {
			verr.Add(validation.FieldEndDate, "must be a date (YYYY-MM-DD)")
		} else {
			end = &t
		}
	}

	category := domain.CategoryAll
	if s := query.Get(validation.FieldCategory); s != "" {
		c, ok := domain.ParseQueryCategory(s)
		if !ok {
			verr.Add(validation.FieldCategory, "%q is not a known category", s)
		}
		category = c
	}
	if err := verr.OrNil(); err != nil {
		writeValidationError(w, err)
		return
	}

	accountID, ok := h.resolveOwner(ctx, w, query.Get(validation.FieldTelegramUserID))
	if !ok {
		return
	}

	expenses, err := h.store.List(ctx, domain.NewFilter(accountID, start, end, category))
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to list expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list expenses")
		return
	}

	// Return array directly for frontend compatibility
	if expenses == nil {
		expenses = []*domain.Expense{}
	}
	middleware.WriteJSON(w, http.StatusOK, expenses)
}

// UpdateExpense handles PUT /expenses
func (h *ExpensesHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidate, err := validation.DecodeCandidate(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := stringField(candidate, "id")
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}

	patch, err := validation.ValidatePatch(candidate)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	if _, ok := h.ownedExpense(ctx, w, id, stringField(candidate, validation.FieldTelegramUserID)); !ok {
		return
	}

	e, err := h.store.Update(ctx, id, patch)
	if errors.Is(err, domain.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("expense_id", id).Msg("Failed to update expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update expense")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, e)
}

// DeleteExpense handles DELETE /expenses
func (h *ExpensesHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidate, err := validation.DecodeCandidate(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := stringField(candidate, "id")
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}

	if _, ok := h.ownedExpense(ctx, w, id, stringField(candidate, validation.FieldTelegramUserID)); !ok {
		return
	}

	err = h.store.Delete(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("expense_id", id).Msg("Failed to delete expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete expense")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Expense deleted successfully",
	})
}

// resolveOwner maps the chat identity to its account, writing the error
// response when that is not possible.
func (h *ExpensesHandler) resolveOwner(ctx context.Context, w http.ResponseWriter, chatID string) (string, bool) {
	if chatID == "" {
		writeValidationError(w, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: validation.FieldTelegramUserID, Message: "is required"},
		}})
		return "", false
	}

	accountID, err := h.accounts.Resolve(ctx, chatID)
	if errors.Is(err, domain.ErrNotLinked) {
		middleware.WriteError(w, http.StatusNotFound, "User not linked")
		return "", false
	}
	if err != nil {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to resolve account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to resolve account")
		return "", false
	}
	return accountID, true
}

// ownedExpense loads id and checks it belongs to the caller. Records of other
// accounts are reported as not found.
func (h *ExpensesHandler) ownedExpense(ctx context.Context, w http.ResponseWriter, id, chatID string) (*domain.Expense, bool) {
	accountID, ok := h.resolveOwner(ctx, w, chatID)
	if !ok {
		return nil, false
	}

	e, err := h.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Expense not found")
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("expense_id", id).Msg("Failed to load expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load expense")
		return nil, false
	}
	if e.OwnerID != accountID {
		h.log.Warn().Str("expense_id", id).Str("account_id", accountID).Msg("Access to foreign expense refused")
		middleware.WriteError(w, http.StatusNotFound, "Expense not found")
		return nil, false
	}
	return e, true
}

// stringField returns m[key] trimmed when it is a string.
func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
