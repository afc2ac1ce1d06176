// Package dispatcher turns one inbound chat event into exactly one reply.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/extraction"
	"github.com/dvloznov/gastos/internal/validation"
	"github.com/rs/zerolog"
)

// Event is one inbound chat message. PhotoFileID is the largest size of an
// attached photo, if any.
type Event struct {
	UpdateID    int
	ChatID      int64
	UserID      string
	Text        string
	Caption     string
	PhotoFileID string
}

// Outcome tells how an event was resolved.
type Outcome string

const (
	OutcomeLogged        Outcome = "logged"
	OutcomeQueried       Outcome = "queried"
	OutcomeClarify       Outcome = "clarify"
	OutcomeNotLinked     Outcome = "not_linked"
	OutcomeNotUnderstood Outcome = "not_understood"
	OutcomeUnrecognized  Outcome = "unrecognized"
	OutcomeFailed        Outcome = "failed"
	OutcomeCommand       Outcome = "command"
)

// Parse modes understood by the chat transport.
const (
	ParseModeNone     = ""
	ParseModeMarkdown = "Markdown"
)

// Reply is the single outbound message for an event.
type Reply struct {
	Text      string
	ParseMode string
	Outcome   Outcome
}

// message is the normalised user content of an event.
type message struct {
	text     string
	image    []byte
	mimeType string
}

type intentHandler func(ctx context.Context, ev Event, msg message) Reply

// Dispatcher routes chat events through classification, extraction,
// validation and the store.
type Dispatcher struct {
	extractor Extractor
	store     domain.ExpenseStore
	linker    Linker
	replier   Replier
	files     FileFetcher
	archiver  Archiver
	baseURL   string
	log       zerolog.Logger

	now      func() time.Time
	intents  map[domain.Intent]intentHandler
	commands map[string]commandHandler
}

// Config holds the collaborators of a Dispatcher. Archiver may be nil.
type Config struct {
	Extractor Extractor
	Store     domain.ExpenseStore
	Linker    Linker
	Replier   Replier
	Files     FileFetcher
	Archiver  Archiver
	BaseURL   string
	Logger    zerolog.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		extractor: cfg.Extractor,
		store:     cfg.Store,
		linker:    cfg.Linker,
		replier:   cfg.Replier,
		files:     cfg.Files,
		archiver:  cfg.Archiver,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		log:       cfg.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	d.intents = map[domain.Intent]intentHandler{
		domain.IntentLog:   d.handleLog,
		domain.IntentQuery: d.handleQuery,
	}
	d.commands = d.commandTable()
	return d
}

// Handle computes the reply for ev and sends it.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	reply := d.Respond(ctx, ev)

	d.log.Info().
		Int("update_id", ev.UpdateID).
		Int64("chat_id", ev.ChatID).
		Str("outcome", string(reply.Outcome)).
		Msg("Handled chat event")

	if err := d.replier.Reply(ctx, ev.ChatID, reply); err != nil {
		return fmt.Errorf("Handle: sending reply: %w", err)
	}
	return nil
}

// Respond decides the reply for ev. Every path returns exactly one reply.
func (d *Dispatcher) Respond(ctx context.Context, ev Event) Reply {
	text := strings.TrimSpace(ev.Text)

	if ev.PhotoFileID == "" && strings.HasPrefix(text, "/") {
		return d.runCommand(ctx, ev, text)
	}

	// Receive
	var msg message
	switch {
	case ev.PhotoFileID != "":
		image, mimeType, err := d.files.FetchFile(ctx, ev.PhotoFileID)
		if err != nil {
			d.log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to fetch photo")
			return Reply{Text: msgFetchFailed, Outcome: OutcomeFailed}
		}
		msg = message{image: image, mimeType: mimeType}
		if ev.Caption != "" {
			d.log.Debug().Int64("chat_id", ev.ChatID).Str("caption", ev.Caption).Msg("Photo caption not used for extraction")
		}
	case text != "":
		msg = message{text: text}
	default:
		return Reply{Text: msgUnrecognized, Outcome: OutcomeUnrecognized}
	}

	// Classify
	intent := domain.IntentLog
	if msg.image == nil {
		var err error
		intent, err = d.extractor.ClassifyIntent(ctx, msg.text)
		if err != nil {
			d.log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("Intent classification failed")
			return Reply{Text: msgNotUnderstood, Outcome: OutcomeNotUnderstood}
		}
	}

	handler, ok := d.intents[intent]
	if !ok {
		return Reply{Text: msgNotUnderstood, Outcome: OutcomeNotUnderstood}
	}
	d.log.Debug().Int64("chat_id", ev.ChatID).Str("intent", string(intent)).Msg("Classified message")
	return handler(ctx, ev, msg)
}

func (d *Dispatcher) handleLog(ctx context.Context, ev Event, msg message) Reply {
	candidate, err := d.extractor.ExtractExpense(ctx, extraction.Input{
		Text:     msg.text,
		Image:    msg.image,
		MIMEType: msg.mimeType,
		Today:    d.now(),
	})
	if err != nil {
		d.log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("Expense extraction failed")
		return Reply{Text: msgClarify, Outcome: OutcomeClarify}
	}

	in, err := validation.ValidateExpense(candidate)
	if err != nil || in.Amount == 0 || in.Description == "" {
		d.log.Info().Err(err).Int64("chat_id", ev.ChatID).Msg("Expense candidate incomplete")
		return Reply{Text: msgClarify, Outcome: OutcomeClarify}
	}

	e, reply, ok := d.createFor(ctx, ev, in, msgLogFailed)
	if !ok {
		return reply
	}
	if msg.image != nil {
		d.archiveReceipt(ctx, e, msg.image, msg.mimeType)
	}

	return Reply{Text: formatLogged(e), Outcome: OutcomeLogged}
}

// createFor resolves the sender's account and stores in for it. On failure
// it returns the reply to send instead.
func (d *Dispatcher) createFor(ctx context.Context, ev Event, in domain.ExpenseInput, failText string) (*domain.Expense, Reply, bool) {
	accountID, reply, ok := d.resolve(ctx, ev)
	if !ok {
		return nil, reply, false
	}

	e, err := d.store.Create(ctx, in.NewExpense(accountID, d.now()))
	if err != nil {
		d.log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to store expense")
		return nil, Reply{Text: failText, Outcome: OutcomeFailed}, false
	}

	d.log.Info().
		Int64("chat_id", ev.ChatID).
		Str("expense_id", e.ID).
		Str("category", string(e.Category)).
		Msg("Logged expense")

	if d.archiver != nil {
		if err := d.archiver.ArchiveExpense(ctx, e); err != nil {
			d.log.Warn().Err(err).Str("expense_id", e.ID).Msg("Failed to enqueue expense archive")
		}
	}
	return e, Reply{}, true
}

func (d *Dispatcher) archiveReceipt(ctx context.Context, e *domain.Expense, image []byte, mimeType string) {
	if d.archiver == nil {
		return
	}
	if err := d.archiver.ArchiveReceipt(ctx, e, image, mimeType); err != nil {
		d.log.Warn().Err(err).Str("expense_id", e.ID).Msg("Failed to enqueue receipt archive")
	}
}

func (d *Dispatcher) handleQuery(ctx context.Context, ev Event, msg message) Reply {
	accountID, reply, ok := d.resolve(ctx, ev)
	if !ok {
		return reply
	}

	today := d.now()
	candidate, err := d.extractor.ExtractQuery(ctx, msg.text, today)
	if err != nil {
		d.log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("Query extraction failed")
		return Reply{Text: msgNotUnderstood, Outcome: OutcomeClarify}
	}

	q, err := validation.ValidateQuery(candidate, today)
	if err != nil {
		d.log.Info().Err(err).Int64("chat_id", ev.ChatID).Msg("Query candidate rejected")
		return Reply{Text: msgNotUnderstood, Outcome: OutcomeClarify}
	}

	expenses, err := d.store.List(ctx, q.Filter(accountID))
	if err != nil {
		d.log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to list expenses")
		return Reply{Text: msgQueryFailed, Outcome: OutcomeFailed}
	}

	return Reply{Text: formatTotal(q, sumAmounts(expenses)), Outcome: OutcomeQueried}
}

// resolve maps the sender to an account, or returns the reply to send when
// that is not possible.
func (d *Dispatcher) resolve(ctx context.Context, ev Event) (string, Reply, bool) {
	accountID, err := d.linker.Resolve(ctx, chatIdentity(ev))
	if errors.Is(err, domain.ErrNotLinked) {
		return "", Reply{Text: msgNotLinked, Outcome: OutcomeNotLinked}, false
	}
	if err != nil {
		d.log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to resolve chat identity")
		return "", Reply{Text: msgResolveFailed, Outcome: OutcomeFailed}, false
	}
	return accountID, Reply{}, true
}

// chatIdentity is the key links are stored under: the sender's user ID,
// falling back to the chat ID.
func chatIdentity(ev Event) string {
	if ev.UserID != "" {
		return ev.UserID
	}
	return strconv.FormatInt(ev.ChatID, 10)
}
