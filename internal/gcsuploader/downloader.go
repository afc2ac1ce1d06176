package gcsuploader

import (
	"context"
	"fmt"
	"io"
)

// DownloadReceipt reads a stored receipt back by its gs:// URI.
func (s *ReceiptStore) DownloadReceipt(ctx context.Context, uri string) ([]byte, error) {
	bucket, objectName, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("DownloadReceipt: %w", err)
	}

	r, err := s.client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("DownloadReceipt: open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("DownloadReceipt: read GCS object: %w", err)
	}
	return data, nil
}
