package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/ports"
)

const (
	// FilesField is the repeated multipart field carrying each file.
	FilesField = "files"

	maxResponseBytes   = 1 << 20
	unknownErrorReason = "An unknown error occurred"
)

// Client talks to the ingestion backend over plain HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ ports.IngestAPI = (*Client)(nil)
	_ ports.HealthAPI = (*Client)(nil)
)

// NewClient creates a client for the backend at baseURL whose routes live
// under apiPath. Request lifetimes are bounded by the caller's context.
func NewClient(baseURL, apiPath string) *Client {
	return NewClientWithHTTP(baseURL, apiPath, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

func NewClientWithHTTP(baseURL, apiPath string, hc *http.Client) *Client {
	base := strings.TrimRight(baseURL, "/")
	if p := strings.Trim(apiPath, "/"); p != "" {
		base += "/" + p
	}
	return &Client{baseURL: base, httpClient: hc}
}

// Submit posts the batch as one multipart request.
func (c *Client) Submit(ctx context.Context, files []domain.File) (*domain.TriggerResponse, error) {
	body, contentType, err := encodeFiles(files)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read ingestion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ports.TriggerError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	var out domain.TriggerResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode ingestion response: %w", err)
	}
	return &out, nil
}

// FetchHealth performs the one-shot health request.
func (c *Client) FetchHealth(ctx context.Context) (*domain.HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API health check failed with status %d", resp.StatusCode)
	}

	var report domain.HealthReport
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &report, nil
}

func encodeFiles(files []domain.File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		if f.Content == nil {
			return nil, "", fmt.Errorf("file %q has no content", f.Name)
		}
		part, err := w.CreateFormFile(FilesField, f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to add %q to request: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("failed to read %q: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// errorMessage extracts the backend's reason from a failure body.
func errorMessage(status int, data []byte) string {
	var body domain.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return unknownErrorReason
	}
	if body.Message == "" {
		return fmt.Sprintf("HTTP error! status: %d", status)
	}
	return body.Message
}

