package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dvloznov/gastos/internal/api/middleware"
	"github.com/dvloznov/gastos/internal/dispatcher"
	"github.com/dvloznov/gastos/internal/validation"
	"github.com/rs/zerolog"
)

// Responder decides the reply to one chat message without sending it.
type Responder interface {
	Respond(ctx context.Context, ev dispatcher.Event) dispatcher.Reply
}

// MessagesHandler runs chat messages from the web app through the same
// pipeline as Telegram messages and returns the reply in the response.
type MessagesHandler struct {
	responder Responder
	log       zerolog.Logger
}

// NewMessagesHandler creates a new messages handler.
func NewMessagesHandler(responder Responder, log zerolog.Logger) *MessagesHandler {
	return &MessagesHandler{responder: responder, log: log}
}

type messageReply struct {
	Reply string `json:"reply"`
}

// PostMessage handles POST /api/messages with {telegramUserId, message}.
// Every message that reaches the dispatcher answers 200 with its reply.
func (h *MessagesHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	candidate, err := validation.DecodeCandidate(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID := idField(candidate, "telegramUserId")
	text := stringField(candidate, "message")
	if userID == "" || text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing telegramUserId or message")
		return
	}

	reply := h.responder.Respond(r.Context(), dispatcher.Event{UserID: userID, Text: text})
	h.log.Debug().
		Str("telegram_user_id", userID).
		Str("outcome", string(reply.Outcome)).
		Msg("Answered web message")

	middleware.WriteJSON(w, http.StatusOK, messageReply{Reply: reply.Text})
}

// idField reads a chat identity sent either as a string or as a JSON number.
func idField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
