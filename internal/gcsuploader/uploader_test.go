package gcsuploader

import (
	"testing"

	"github.com/dvloznov/gastos/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ jobs.ReceiptSink = (*ReceiptStore)(nil)

func TestObjectName(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", "receipts/acct-1/exp-1.jpg"},
		{"", "receipts/acct-1/exp-1.jpg"},
		{"image/PNG", "receipts/acct-1/exp-1.png"},
		{"image/webp", "receipts/acct-1/exp-1.webp"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectName("acct-1", "exp-1", tt.mime))
		})
	}
}

func TestParseURI(t *testing.T) {
	bucket, object, err := ParseURI("gs://gastos-receipts/receipts/acct-1/exp-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "gastos-receipts", bucket)
	assert.Equal(t, "receipts/acct-1/exp-1.jpg", object)
	assert.Equal(t, "gs://gastos-receipts/receipts/acct-1/exp-1.jpg", FormatURI(bucket, object))

	for _, bad := range []string{"https://x/y", "gs://bucket", "gs://bucket/", "gs:///obj"} {
		_, _, err := ParseURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtractFilename(t *testing.T) {
	assert.Equal(t, "exp-1.jpg", ExtractFilename("gs://b/receipts/acct-1/exp-1.jpg"))
	assert.Equal(t, "b", ExtractFilename("gs://b"))
}
