package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/dvloznov/gastos/internal/api/middleware"
	"github.com/dvloznov/gastos/internal/telegram"
	"github.com/rs/zerolog"
)

// WebhookHandler receives Telegram updates.
type WebhookHandler struct {
	events EventHandler
	secret string
	log    zerolog.Logger
}

// NewWebhookHandler creates a webhook handler. A non-empty secret must match
// the secret token header of every delivery.
func NewWebhookHandler(events EventHandler, secret string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, secret: secret, log: log}
}

var updateHandled = map[string]string{"status": "Update handled"}

// HandleUpdate handles POST /webhooks/telegram. Every authenticated delivery
// is acknowledged with 200; failures reach the user as chat replies so
// Telegram does not redeliver.
func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(telegram.SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Webhook secret mismatch")
			middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	u, err := telegram.DecodeUpdate(r.Body)
	if err != nil {
		h.log.Warn().Err(err).Msg("Discarding undecodable update")
		middleware.WriteJSON(w, http.StatusOK, updateHandled)
		return
	}

	ev, ok := telegram.EventFromUpdate(u)
	if !ok {
		h.log.Debug().Int("update_id", u.UpdateID).Msg("Ignoring update without message")
		middleware.WriteJSON(w, http.StatusOK, updateHandled)
		return
	}

	if err := h.events.Handle(r.Context(), ev); err != nil {
		h.log.Error().Err(err).Int("update_id", ev.UpdateID).Int64("chat_id", ev.ChatID).Msg("Failed to handle update")
	}
	middleware.WriteJSON(w, http.StatusOK, updateHandled)
}
