// Package gcsuploader stores receipt photos in Cloud Storage.
package gcsuploader

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const receiptsPrefix = "receipts"

// ReceiptStore writes receipt photos under receipts/<owner>/<expense>.<ext>
// in one bucket.
type ReceiptStore struct {
	client *storage.Client
	bucket string
}

// NewReceiptStore creates a ReceiptStore. It assumes Application Default
// Credentials are configured.
func NewReceiptStore(ctx context.Context, bucket string) (*ReceiptStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewReceiptStore: create storage client: %w", err)
	}
	return &ReceiptStore{client: client, bucket: bucket}, nil
}

// Close closes the storage client.
func (s *ReceiptStore) Close() error {
	return s.client.Close()
}

// ObjectName returns the object path for an expense's receipt.
func ObjectName(ownerID, expenseID, mimeType string) string {
	return path.Join(receiptsPrefix, ownerID, expenseID+extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// UploadReceipt uploads data and returns its gs:// URI.
func (s *ReceiptStore) UploadReceipt(ctx context.Context, ownerID, expenseID string, data []byte, mimeType string) (string, error) {
	if ownerID == "" || expenseID == "" {
		return "", fmt.Errorf("UploadReceipt: owner and expense IDs are required")
	}
	objectName := ObjectName(ownerID, expenseID, mimeType)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	w.ContentType = mimeType
	w.Metadata = map[string]string{"owner_id": ownerID, "expense_id": expenseID}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("UploadReceipt: write %s: %w", objectName, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("UploadReceipt: finalize %s: %w", objectName, err)
	}

	return FormatURI(s.bucket, objectName), nil
}

// FormatURI builds a gs:// URI.
func FormatURI(bucket, objectName string) string {
	return "gs://" + bucket + "/" + objectName
}

// ParseURI splits a gs:// URI into bucket and object name.
func ParseURI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ExtractFilename extracts the filename from a GCS URI.
// e.g., "gs://bucket/receipts/a/b.jpg" → "b.jpg"
func ExtractFilename(uri string) string {
	_, objectName, err := ParseURI(uri)
	if err != nil {
		return path.Base(strings.TrimPrefix(uri, "gs://"))
	}
	return path.Base(objectName)
}
