package dispatcher

import (
	"context"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/extraction"
)

// Extractor classifies messages and extracts candidates from them.
type Extractor interface {
	ClassifyIntent(ctx context.Context, text string) (domain.Intent, error)
	ExtractExpense(ctx context.Context, in extraction.Input) (map[string]any, error)
	ExtractQuery(ctx context.Context, text string, today time.Time) (map[string]any, error)
}

// Linker issues link credentials and resolves chat identities.
type Linker interface {
	IssueCode(ctx context.Context, chatID string) (*domain.LinkToken, error)
	IssueToken(ctx context.Context, chatID string) (*domain.LinkToken, error)
	Resolve(ctx context.Context, chatID string) (string, error)
}

// Replier sends a reply to a chat.
type Replier interface {
	Reply(ctx context.Context, chatID int64, r Reply) error
}

// FileFetcher downloads an attachment by its transport file ID and returns
// its bytes and MIME type.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileID string) ([]byte, string, error)
}

// Archiver hands stored expenses and receipts to background archival.
type Archiver interface {
	ArchiveExpense(ctx context.Context, e *domain.Expense) error
	ArchiveReceipt(ctx context.Context, e *domain.Expense, image []byte, mimeType string) error
}
