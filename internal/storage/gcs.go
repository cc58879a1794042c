package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
)

// uploadGCS lands the artifact on Google Cloud Storage using the
// client's application-default credentials.
func (d *Dispatcher) uploadGCS(ctx context.Context, target UploadTarget, localPath, key string) (string, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating gcs client: %w", err)
	}
	defer func() { _ = client.Close() }()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	w := client.Bucket(target.Bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing gs://%s/%s: %w", target.Bucket, key, err)
	}
	// Close finalizes the object; write errors can surface only here.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing gs://%s/%s: %w", target.Bucket, key, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", target.Bucket, key), nil
}
