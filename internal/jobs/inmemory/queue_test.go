package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, store *Store) *Queue {
	t.Helper()
	q := NewQueue(8, 2, store)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.Job {
	t.Helper()
	var got *jobs.Job
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueueProcessesJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := newTestQueue(t, store)

	var handled atomic.Int32
	require.NoError(t, q.Start(ctx, func(_ context.Context, job *jobs.Job) error {
		handled.Add(1)
		job.Location = "gs://bucket/receipts/a/b.jpg"
		return nil
	}))

	job := &jobs.Job{Type: jobs.JobTypeArchiveReceipt, ExpenseID: "exp-1"}
	require.NoError(t, q.Publish(ctx, job))
	assert.NotEmpty(t, job.JobID)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, int32(1), handled.Load())
	assert.Equal(t, "gs://bucket/receipts/a/b.jpg", done.Location)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := newTestQueue(t, store)

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(context.Context, *jobs.Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	job := &jobs.Job{Type: jobs.JobTypeArchiveExpense, ExpenseID: "exp-1"}
	require.NoError(t, q.Publish(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 2, done.RetryCount)
	assert.Empty(t, done.Error)
}

func TestQueueFailsAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := newTestQueue(t, store)

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(context.Context, *jobs.Job) error {
		attempts.Add(1)
		return errors.New("bigquery unavailable")
	}))

	job := &jobs.Job{Type: jobs.JobTypeArchiveExpense, MaxRetries: 1}
	require.NoError(t, q.Publish(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, "bigquery unavailable", failed.Error)
}

func TestQueuePublishAfterStop(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Stop(context.Background()))

	err := q.Publish(context.Background(), &jobs.Job{Type: jobs.JobTypeArchiveExpense})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), ErrQueueClosed)
	assert.NoError(t, q.Stop(context.Background()))
}

func TestStoreListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.Job{
		{JobID: "a", Type: jobs.JobTypeArchiveExpense, ExpenseID: "e1", Status: jobs.JobStatusCompleted},
		{JobID: "b", Type: jobs.JobTypeArchiveReceipt, ExpenseID: "e1", Status: jobs.JobStatusFailed},
		{JobID: "c", Type: jobs.JobTypeArchiveExpense, ExpenseID: "e2", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveJob(ctx, j))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "all newest first", want: []string{"c", "b", "a"}},
		{name: "by type", filter: jobs.JobFilter{Type: jobs.JobTypeArchiveExpense}, want: []string{"c", "a"}},
		{name: "by expense", filter: jobs.JobFilter{ExpenseID: "e1"}, want: []string{"b", "a"}},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusFailed}, want: []string{"b"}},
		{name: "limit offset", filter: jobs.JobFilter{Offset: 1, Limit: 1}, want: []string{"b"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 5}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStoreGetJobNotFound(t *testing.T) {
	store := NewStore()
	_, err := store.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.UpdateJobStatus(context.Background(), "missing", jobs.JobStatusFailed, ""), domain.ErrNotFound)
	assert.Error(t, store.SaveJob(context.Background(), &jobs.Job{}))
}
