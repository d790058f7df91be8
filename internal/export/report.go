// Package export publishes sync reports to Cloud Storage so downstream
// tooling can audit what each job did without querying the service.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/ledger-sync/internal/engine"
)

// Report is the exported record of one finished sync job.
type Report struct {
	JobID      string            `json:"job_id"`
	UserID     string            `json:"user_id"`
	SyncType   string            `json:"sync_type"`
	FinishedAt time.Time         `json:"finished_at"`
	Result     engine.SyncResult `json:"result"`
}

// Uploader writes reports to a GCS bucket. It assumes Application Default
// Credentials are configured.
type Uploader struct {
	bucket string
}

// NewUploader creates an uploader targeting the given bucket.
func NewUploader(bucket string) *Uploader {
	return &Uploader{bucket: bucket}
}

// Upload writes the report as JSON under reports/<date>/<job_id>.json and
// returns the object's gs:// URI.
func (u *Uploader) Upload(ctx context.Context, rep Report) (string, error) {
	if u.bucket == "" {
		return "", fmt.Errorf("no export bucket configured")
	}

	body, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	objectName := fmt.Sprintf("reports/%s/%s.json",
		rep.FinishedAt.UTC().Format("2006/01/02"), rep.JobID)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write report to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", u.bucket, objectName), nil
}
