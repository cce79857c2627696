package publish

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds a single object upload.
const uploadTimeout = 2 * time.Minute

// Uploader stores a stream as an object in a bucket.
type Uploader interface {
	UploadFile(ctx context.Context, bucketName, objectName string, r io.Reader) error
}

// GCSUploader uploads to Google Cloud Storage. It assumes Application
// Default Credentials are configured.
type GCSUploader struct {
	client *storage.Client
}

// NewGCSUploader creates a storage client shared by every upload of a run.
func NewGCSUploader(ctx context.Context) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSUploader{client: client}, nil
}

// UploadFile copies r into gs://bucketName/objectName.
func (u *GCSUploader) UploadFile(ctx context.Context, bucketName, objectName string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := u.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
