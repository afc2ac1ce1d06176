// Package extraction turns chat messages and receipt photos into structured
// candidates using Gemini. Candidates are untrusted and must be validated.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// DefaultImageMIMEType is assumed for images without a declared type.
const DefaultImageMIMEType = "image/jpeg"

var (
	// ErrAmbiguousInput is returned when an extraction input carries both
	// text and an image, or neither.
	ErrAmbiguousInput = errors.New("exactly one of text or image is required")

	// ErrEmptyText is returned when there is no text to classify or query.
	ErrEmptyText = errors.New("empty text")
)

// Generator is the part of the Gemini client the engine needs.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Input is the user content for ExtractExpense. Exactly one of Text and
// Image must be set. Today, when set, lets the model resolve relative dates.
type Input struct {
	Text     string
	Image    []byte
	MIMEType string
	Today    time.Time
}

// Engine runs one model round-trip per call with a fixed instruction and
// response schema.
type Engine struct {
	gen   Generator
	model string
	log   zerolog.Logger
}

// NewEngine creates an Engine over gen.
func NewEngine(gen Generator, model string, log zerolog.Logger) *Engine {
	if model == "" {
		model = DefaultModelName
	}
	return &Engine{gen: gen, model: model, log: log}
}

// NewGeminiEngine creates an Engine backed by the Gemini API.
func NewGeminiEngine(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Engine, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiEngine: create genai client: %w", err)
	}
	return NewEngine(client.Models, model, log), nil
}

// ClassifyIntent decides whether text logs an expense or queries spending.
func (e *Engine) ClassifyIntent(ctx context.Context, text string) (domain.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("ClassifyIntent: %w", ErrEmptyText)
	}

	out, err := e.generate(ctx, "ClassifyIntent", intentInstruction, intentSchema, genai.NewPartFromText(text))
	if err != nil {
		return "", err
	}

	label, _ := out["intent"].(string)
	intent, ok := domain.ParseIntent(label)
	if !ok {
		return "", fmt.Errorf("ClassifyIntent: unknown intent %q: %w", label, domain.ErrInsufficientInfo)
	}
	return intent, nil
}

// ExtractExpense returns an expense candidate from a message or a photo.
func (e *Engine) ExtractExpense(ctx context.Context, in Input) (map[string]any, error) {
	text := strings.TrimSpace(in.Text)
	hasText, hasImage := text != "", len(in.Image) > 0
	if hasText == hasImage {
		return nil, fmt.Errorf("ExtractExpense: %w", ErrAmbiguousInput)
	}

	var part *genai.Part
	if hasText {
		part = genai.NewPartFromText(text)
	} else {
		mimeType := in.MIMEType
		if mimeType == "" {
			mimeType = DefaultImageMIMEType
		}
		part = &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: in.Image}}
	}

	return e.generate(ctx, "ExtractExpense", buildExpenseInstruction(in.Today), expenseSchema, part)
}

// ExtractQuery returns a query candidate with start_date, end_date and
// category fields, relative dates resolved against today.
func (e *Engine) ExtractQuery(ctx context.Context, text string, today time.Time) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("ExtractQuery: %w", ErrEmptyText)
	}
	return e.generate(ctx, "ExtractQuery", buildQueryInstruction(today), querySchema, genai.NewPartFromText(text))
}

func (e *Engine) generate(ctx context.Context, op, instruction string, schema *genai.Schema, part *genai.Part) (map[string]any, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
		Temperature:       genai.Ptr[float32](0),
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{part}}}

	start := time.Now()
	resp, err := e.gen.GenerateContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, domain.Upstream("gemini", fmt.Errorf("%s: generate content: %w", op, err))
	}

	rawText := ""
	if resp != nil {
		rawText = resp.Text()
	}
	e.log.Debug().
		Str("op", op).
		Str("model", e.model).
		Dur("duration", time.Since(start)).
		Int("response_len", len(rawText)).
		Msg("Model call completed")

	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("%s: empty response from model: %w", op, domain.ErrInsufficientInfo)
	}

	out, err := decodeObject(cleanModelJSON(rawText))
	if err != nil {
		e.log.Warn().Str("op", op).Str("raw", rawText).Err(err).Msg("Unusable model response")
		return nil, fmt.Errorf("%s: %v: %w", op, err, domain.ErrInsufficientInfo)
	}
	return out, nil
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return m, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
