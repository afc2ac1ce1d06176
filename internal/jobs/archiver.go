package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/rs/zerolog"
)

// ExpenseSink receives archived expenses.
type ExpenseSink interface {
	InsertExpense(ctx context.Context, e *domain.Expense) error
}

// ReceiptSink stores receipt photos and returns their location.
type ReceiptSink interface {
	UploadReceipt(ctx context.Context, ownerID, expenseID string, data []byte, mimeType string) (string, error)
}

// Archiver publishes archival jobs for new expenses and runs them. A nil sink
// disables the matching job type.
type Archiver struct {
	publisher Publisher
	expenses  ExpenseSink
	receipts  ReceiptSink
	log       zerolog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(publisher Publisher, expenses ExpenseSink, receipts ReceiptSink, log zerolog.Logger) *Archiver {
	return &Archiver{
		publisher: publisher,
		expenses:  expenses,
		receipts:  receipts,
		log:       log,
	}
}

// ArchiveExpense enqueues e for the expense archive.
func (a *Archiver) ArchiveExpense(ctx context.Context, e *domain.Expense) error {
	if a.expenses == nil {
		return nil
	}
	job := &Job{
		Type:      JobTypeArchiveExpense,
		ExpenseID: e.ID,
		OwnerID:   e.OwnerID,
		Expense:   e,
	}
	if err := a.publisher.Publish(ctx, job); err != nil {
		return fmt.Errorf("ArchiveExpense: publishing job: %w", err)
	}
	a.log.Debug().Str("job_id", job.JobID).Str("expense_id", e.ID).Msg("Expense archival enqueued")
	return nil
}

// ArchiveReceipt enqueues the receipt photo e was extracted from.
func (a *Archiver) ArchiveReceipt(ctx context.Context, e *domain.Expense, image []byte, mimeType string) error {
	if a.receipts == nil || len(image) == 0 {
		return nil
	}
	job := &Job{
		Type:      JobTypeArchiveReceipt,
		ExpenseID: e.ID,
		OwnerID:   e.OwnerID,
		Expense:   e,
		Receipt:   image,
		MIMEType:  mimeType,
	}
	if err := a.publisher.Publish(ctx, job); err != nil {
		return fmt.Errorf("ArchiveReceipt: publishing job: %w", err)
	}
	a.log.Debug().Str("job_id", job.JobID).Str("expense_id", e.ID).Msg("Receipt archival enqueued")
	return nil
}

// Handle runs one archival job. It is the JobHandler for the archive queue.
func (a *Archiver) Handle(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeArchiveExpense:
		if a.expenses == nil {
			return fmt.Errorf("Handle: expense archive not configured")
		}
		if job.Expense == nil {
			return fmt.Errorf("Handle: job %s has no expense", job.JobID)
		}
		if err := a.expenses.InsertExpense(ctx, job.Expense); err != nil {
			return fmt.Errorf("Handle: archiving expense %s: %w", job.ExpenseID, err)
		}
	case JobTypeArchiveReceipt:
		if a.receipts == nil {
			return fmt.Errorf("Handle: receipt archive not configured")
		}
		uri, err := a.receipts.UploadReceipt(ctx, job.OwnerID, job.ExpenseID, job.Receipt, job.MIMEType)
		if err != nil {
			return fmt.Errorf("Handle: uploading receipt for %s: %w", job.ExpenseID, err)
		}
		job.Location = uri
	default:
		return fmt.Errorf("Handle: unknown job type %q", job.Type)
	}

	a.log.Info().
		Str("job_id", job.JobID).
		Str("type", string(job.Type)).
		Str("expense_id", job.ExpenseID).
		Msg("Archival job completed")
	return nil
}
