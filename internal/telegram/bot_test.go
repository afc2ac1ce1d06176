package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dvloznov/gastos/internal/dispatcher"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBotAPI answers the Bot API methods the Bot uses and records sends.
type fakeBotAPI struct {
	mu             sync.Mutex
	sent           []map[string]string
	rejectMarkdown bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = r.ParseForm()

	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Gastos","username":"gastos_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		})
		f.mu.Unlock()
		if f.rejectMarkdown && r.PostForm.Get("parse_mode") != "" {
			w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":100,"type":"private"}}}`))
	case strings.HasSuffix(r.URL.Path, "/setWebhook"):
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"url":          r.PostForm.Get("url"),
			"secret_token": r.PostForm.Get("secret_token"),
		})
		f.mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func newTestBot(t *testing.T, fake *fakeBotAPI) *Bot {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	bot, err := NewBotWithEndpoint("TOKEN", srv.URL+"/bot%s/%s", srv.Client(), zerolog.Nop())
	require.NoError(t, err)
	return bot
}

func TestReply(t *testing.T) {
	fake := &fakeBotAPI{}
	bot := newTestBot(t, fake)

	err := bot.Reply(context.Background(), 100, dispatcher.Reply{Text: "*abc123*", ParseMode: dispatcher.ParseModeMarkdown})
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "100", fake.sent[0]["chat_id"])
	assert.Equal(t, "*abc123*", fake.sent[0]["text"])
	assert.Equal(t, "Markdown", fake.sent[0]["parse_mode"])
}

func TestReplyFallsBackToPlainText(t *testing.T) {
	fake := &fakeBotAPI{rejectMarkdown: true}
	bot := newTestBot(t, fake)

	err := bot.Reply(context.Background(), 100, dispatcher.Reply{Text: "visit https://x/y_z", ParseMode: dispatcher.ParseModeMarkdown})
	require.NoError(t, err)

	require.Len(t, fake.sent, 2)
	assert.Equal(t, "", fake.sent[1]["parse_mode"])
}

func TestSetWebhook(t *testing.T) {
	fake := &fakeBotAPI{}
	bot := newTestBot(t, fake)

	require.NoError(t, bot.SetWebhook("https://gastos.example.com/webhooks/telegram", "s3cret"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "https://gastos.example.com/webhooks/telegram", fake.sent[0]["url"])
	assert.Equal(t, "s3cret", fake.sent[0]["secret_token"])
}

func TestEventFromUpdate(t *testing.T) {
	payload := `{
		"update_id": 9001,
		"message": {
			"message_id": 3,
			"date": 0,
			"from": {"id": 7, "is_bot": false, "first_name": "Ana"},
			"chat": {"id": 100, "type": "private"},
			"caption": "groceries",
			"photo": [
				{"file_id": "small", "file_unique_id": "s", "width": 90, "height": 90},
				{"file_id": "large", "file_unique_id": "l", "width": 1280, "height": 1280}
			]
		}
	}`

	u, err := DecodeUpdate(strings.NewReader(payload))
	require.NoError(t, err)

	ev, ok := EventFromUpdate(u)
	require.True(t, ok)
	assert.Equal(t, dispatcher.Event{
		UpdateID:    9001,
		ChatID:      100,
		UserID:      "7",
		Caption:     "groceries",
		PhotoFileID: "large",
	}, ev)
}

func TestEventFromUpdateWithoutMessage(t *testing.T) {
	_, ok := EventFromUpdate(tgbotapi.Update{UpdateID: 1})
	assert.False(t, ok)

	_, err := DecodeUpdate(strings.NewReader(`not json`))
	assert.Error(t, err)
}
