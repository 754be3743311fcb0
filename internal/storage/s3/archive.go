package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultKeyTemplate lays reports out by generation date.
const DefaultKeyTemplate = "{date}/{id}.csv"

// ReportArchiver stores exported CSV reports.
type ReportArchiver struct {
	client      *Client
	keyTemplate string
}

// NewReportArchiver creates an archiver writing through client.
func NewReportArchiver(client *Client) *ReportArchiver {
	return &ReportArchiver{client: client, keyTemplate: DefaultKeyTemplate}
}

// ArchiveReport uploads data and returns the object location.
func (a *ReportArchiver) ArchiveReport(ctx context.Context, id uuid.UUID, filename string, generatedAt time.Time, data []byte) (string, error) {
	out, err := a.client.Upload(ctx, &UploadInput{
		Key:         a.generateKey(id, generatedAt),
		Data:        data,
		ContentType: "text/csv",
		Metadata: map[string]string{
			"report-id":    id.String(),
			"filename":     filename,
			"generated-at": generatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive report %s: %w", id, err)
	}
	return out.Location, nil
}

func (a *ReportArchiver) generateKey(id uuid.UUID, t time.Time) string {
	key := strings.ReplaceAll(a.keyTemplate, "{date}", t.UTC().Format("2006-01-02"))
	return strings.ReplaceAll(key, "{id}", id.String())
}
