// Package telegram adapts the Telegram Bot API to the dispatcher.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/gastos/internal/dispatcher"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MaxFileSize caps photo downloads. Bot API downloads are limited to 20 MB.
const MaxFileSize = 20 << 20

// SecretTokenHeader carries the webhook secret set with SetWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Bot sends replies and downloads attachments.
type Bot struct {
	api    *tgbotapi.BotAPI
	client *http.Client
	log    zerolog.Logger
}

// NewBot connects to the Bot API with token.
func NewBot(token string, log zerolog.Logger) (*Bot, error) {
	return NewBotWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second}, log)
}

// NewBotWithEndpoint connects to a Bot API compatible server at endpoint,
// a format string taking the token and the method name.
func NewBotWithEndpoint(token, endpoint string, client *http.Client, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("NewBot: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("Connected to Telegram")
	return &Bot{api: api, client: client, log: log}, nil
}

// Reply sends r to chatID. A Markdown reply the server rejects is resent as
// plain text so the chat still gets an answer.
func (b *Bot) Reply(_ context.Context, chatID int64, r dispatcher.Reply) error {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	msg.ParseMode = r.ParseMode

	_, err := b.api.Send(msg)
	if err != nil && r.ParseMode != dispatcher.ParseModeNone {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("Formatted reply rejected, retrying as plain text")
		msg.ParseMode = ""
		_, err = b.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("Reply: sending message: %w", err)
	}
	return nil
}

// FetchFile downloads a file by its file ID.
func (b *Bot) FetchFile(ctx context.Context, fileID string) ([]byte, string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("FetchFile: resolving file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("FetchFile: building request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("FetchFile: downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("FetchFile: downloading: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("FetchFile: reading body: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, "", fmt.Errorf("FetchFile: file exceeds %d bytes", MaxFileSize)
	}
	return data, http.DetectContentType(data), nil
}

// SetWebhook points the bot at url. A non-empty secret is echoed back by
// Telegram in SecretTokenHeader on every delivery.
func (b *Bot) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{"url": url}
	if secret != "" {
		params["secret_token"] = secret
	}
	resp, err := b.api.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("SetWebhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("SetWebhook: %s", resp.Description)
	}
	return nil
}

// DecodeUpdate reads a webhook payload.
func DecodeUpdate(r io.Reader) (tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return tgbotapi.Update{}, fmt.Errorf("DecodeUpdate: %w", err)
	}
	return u, nil
}

// EventFromUpdate extracts the dispatcher event from an update. Updates
// without a new message are not events.
func EventFromUpdate(u tgbotapi.Update) (dispatcher.Event, bool) {
	m := u.Message
	if m == nil || m.Chat == nil {
		return dispatcher.Event{}, false
	}

	ev := dispatcher.Event{
		UpdateID: u.UpdateID,
		ChatID:   m.Chat.ID,
		Text:     m.Text,
		Caption:  m.Caption,
	}
	if m.From != nil {
		ev.UserID = strconv.FormatInt(m.From.ID, 10)
	}
	if n := len(m.Photo); n > 0 {
		ev.PhotoFileID = m.Photo[n-1].FileID
	}
	return ev, true
}
