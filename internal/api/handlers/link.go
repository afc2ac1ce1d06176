package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dvloznov/gastos/internal/api/middleware"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/rs/zerolog"
)

// LinkHandler redeems chat link credentials for the signed-in account. It
// must run behind middleware.Auth.
type LinkHandler struct {
	linker LinkRedeemer
	log    zerolog.Logger
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(linker LinkRedeemer, log zerolog.Logger) *LinkHandler {
	return &LinkHandler{linker: linker, log: log}
}

type linkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RedeemToken handles POST /auth. The token comes from the JSON body or the
// token query parameter of the link the bot sent.
func (h *LinkHandler) RedeemToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	h.redeem(w, r, req.Token)
}

// VerifyCode handles POST /verify-telegram-code
func (h *LinkHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.redeem(w, r, req.Code)
}

func (h *LinkHandler) redeem(w http.ResponseWriter, r *http.Request, token string) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if strings.TrimSpace(token) == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, linkResponse{Message: "Code is required"})
		return
	}

	_, err := h.linker.Redeem(r.Context(), token, accountID)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, linkResponse{Success: true})
	case errors.Is(err, domain.ErrLinkInvalid):
		middleware.WriteJSON(w, http.StatusBadRequest, linkResponse{Message: "Invalid or expired code"})
	case errors.Is(err, domain.ErrLinkExpired):
		middleware.WriteJSON(w, http.StatusBadRequest, linkResponse{Message: "Code expired"})
	case errors.Is(err, domain.ErrUnauthenticated):
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to redeem link credential")
		middleware.WriteJSON(w, http.StatusInternalServerError, linkResponse{Message: "Failed to link account"})
	}
}
