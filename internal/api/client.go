// Package api provides the HTTP client for the remote classifier service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"nids-console/internal/convert"
	nerrors "nids-console/internal/errors"
	"nids-console/internal/report"
	"nids-console/internal/telemetry"
)

const (
	attacksPath = "/api/attacks/optimized"
	batchPath   = "/api/batch-predict"
	healthPath  = "/api/health"
	statsPath   = "/api/stats"

	defaultBatchError = "Batch prediction failed"
	defaultFetchError = "Failed to fetch attack logs"
)

// Client handles API communication with the classifier service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	batchClient *http.Client
}

// AttackStatistics is the server-side summary returned with attack logs.
type AttackStatistics struct {
	TotalAttacks   int     `json:"total_attacks"`
	BlockedCount   int     `json:"blocked_count"`
	MonitoredCount int     `json:"monitored_count"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// AttacksResponse is the envelope of the attack log endpoint.
type AttacksResponse struct {
	Success    bool                  `json:"success"`
	Error      string                `json:"error"`
	Attacks    []telemetry.RawAttack `json:"attacks"`
	Count      int                   `json:"count"`
	Statistics AttackStatistics      `json:"statistics"`
}

// BatchSummary is the server-side summary of a batch.
type BatchSummary struct {
	TotalRecords     int     `json:"total_records"`
	NormalCount      int     `json:"normal_count"`
	AttackCount      int     `json:"attack_count"`
	DatabaseSaved    int     `json:"database_saved_count"`
	ErrorCount       int     `json:"error_count"`
	NormalPercentage float64 `json:"normal_percentage"`
	AttackPercentage float64 `json:"attack_percentage"`
}

// DatabaseStatus reports whether the server persisted the batch.
type DatabaseStatus struct {
	Connected  bool `json:"connected"`
	SavedCount int  `json:"saved_count"`
}

// BatchResponse is the envelope of the batch endpoint.
type BatchResponse struct {
	Success        bool                `json:"success"`
	Error          string              `json:"error"`
	Predictions    []report.Prediction `json:"predictions"`
	Summary        BatchSummary        `json:"summary"`
	DatabaseStatus DatabaseStatus      `json:"database_status"`
}

// SavedCount returns the number of rows the server persisted.
func (r *BatchResponse) SavedCount() int {
	return r.DatabaseStatus.SavedCount
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Database  string `json:"database"`
	Success   bool   `json:"success"`
}

// Healthy reports whether the service declared itself healthy.
func (h *HealthResponse) Healthy() bool {
	return strings.EqualFold(h.Status, "healthy")
}

// StatsResponse represents the statistics endpoint.
type StatsResponse struct {
	Success    bool           `json:"success"`
	Error      string         `json:"error"`
	Statistics map[string]any `json:"statistics"`
	Database   string         `json:"database"`
	Timestamp  string         `json:"timestamp"`
}

// NewClient creates a new API client. requestTimeout bounds telemetry,
// health and stats requests; batch submissions are bounded by their context.
func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		batchClient: &http.Client{},
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchAttacks retrieves the current attack log.
func (c *Client) FetchAttacks(ctx context.Context) (*AttacksResponse, error) {
	const op = "fetch attacks"

	var out AttacksResponse
	if err := c.getJSON(ctx, op, attacksPath, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, serverError(op, out.Error, defaultFetchError)
	}
	return &out, nil
}

// BatchPredict uploads a CSV payload for classification as a multipart form
// with a single "file" part.
func (c *Client) BatchPredict(ctx context.Context, payload *convert.Payload) (*BatchResponse, error) {
	const op = "batch predict"

	body, contentType, err := multipartBody(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: build request body: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+batchPath, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	var out BatchResponse
	if err := c.do(c.batchClient, req, op, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, serverError(op, out.Error, defaultBatchError)
	}
	return &out, nil
}

// Health fetches the service health status.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, "health", healthPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches the service statistics.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	const op = "stats"

	var out StatsResponse
	if err := c.getJSON(ctx, op, statsPath, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, serverError(op, out.Error, "Failed to fetch statistics")
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(c.httpClient, req, op, out)
}

func (c *Client) do(hc *http.Client, req *http.Request, op string, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return &nerrors.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &nerrors.NetworkError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &nerrors.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func serverError(op, message, fallback string) error {
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	return &nerrors.ServerReportedError{Op: op, Message: message}
}

func multipartBody(payload *convert.Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(payload.Filename)))
	contentType := payload.ContentType
	if contentType == "" {
		contentType = convert.CSVContentType
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
