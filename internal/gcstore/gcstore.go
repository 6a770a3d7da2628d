package gcstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Client wraps Google Cloud Storage for uploaded CSV statements. It assumes
// Application Default Credentials are configured.
type Client struct {
	bucket string
}

// NewClient creates a Client for the configured statements bucket.
func NewClient(bucket string) *Client {
	return &Client{bucket: bucket}
}

// Upload stores statement bytes under the given object name and returns the
// gs:// URI.
func (c *Client) Upload(ctx context.Context, objectName string, r io.Reader) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Upload: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(c.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copying statement to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalizing upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", c.bucket, objectName), nil
}

// Fetch downloads the statement bytes at the given gs:// URI.
func (c *Client) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Filename extracts the statement filename from a GCS URI.
// e.g. "gs://bucket/folder/statement.csv" -> "statement.csv"
func Filename(gcsURI string) string {
	_, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return gcsURI
	}
	return path.Base(objectPath)
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
