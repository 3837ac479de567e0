package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/logger"
	"docpipe.ingest/internal/core/ports"
	"docpipe.ingest/internal/core/tracing"
)

type ControllerConfig struct {
	// BaseURL is the backend origin, e.g. http://127.0.0.1:8058. Its
	// scheme decides between ws and wss for the log stream.
	BaseURL string
	// APIPath prefixes every backend route, e.g. /api/v1.
	APIPath string
	// TriggerTimeout bounds the submission request. Zero means no bound.
	TriggerTimeout time.Duration
}

// Controller runs the lifecycle of the single tracked ingestion job:
// submission, log stream, and teardown.
type Controller struct {
	api     ports.IngestAPI
	opener  ports.StreamOpener
	cfg     ControllerConfig
	session *JobSession

	// mu serializes every projection write. generation increases on each
	// submission; events carrying an older generation are dropped.
	mu           sync.Mutex
	generation   uint64
	stream       ports.Stream
	cancelStream context.CancelFunc
	settled      chan struct{}
}

func NewController(api ports.IngestAPI, opener ports.StreamOpener, cfg ControllerConfig) *Controller {
	settled := make(chan struct{})
	close(settled)
	return &Controller{
		api:     api,
		opener:  opener,
		cfg:     cfg,
		session: NewJobSession(),
		settled: settled,
	}
}

// Session exposes the projections. Subscribers are notified while the
// Controller holds its lock and must not call back into it.
func (c *Controller) Session() *JobSession {
	return c.session
}

// StartIngestion submits files as a new job and starts following it. Any
// previously tracked job stops being observed. Failures are reported
// through the session's status and log; nothing is returned. An empty
// batch is ignored.
func (c *Controller) StartIngestion(ctx context.Context, files []domain.File) {
	if len(files) == 0 {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "ingest.start")
	defer span.End()
	span.SetAttributes(attribute.Int("ingest.files", len(files)))

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.closeStreamLocked()
	c.markSettledLocked()
	c.settled = make(chan struct{})
	c.session.reset()
	c.mu.Unlock()

	ingestionsStarted.Inc()
	logger.InfoContext(ctx, "Submitting ingestion batch", "files", len(files))

	reqCtx := ctx
	if c.cfg.TriggerTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.cfg.TriggerTimeout)
		defer cancel()
	}
	resp, err := c.api.Submit(reqCtx, files)
	if err == nil && (resp == nil || strings.TrimSpace(resp.JobID) == "") {
		err = errors.New("ingestion response did not include a job id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		logger.DebugContext(ctx, "Discarding response of superseded submission")
		return
	}

	if err != nil {
		logger.ErrorContext(ctx, "Failed to start ingestion", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.session.fail(fmt.Sprintf(msgStartFailed, err))
		c.settleLocked()
		return
	}

	span.SetAttributes(attribute.String("ingest.job_id", resp.JobID))
	c.session.jobID.Set(resp.JobID)
	c.session.appendLog(domain.LevelInfo, resp.Message)
	c.openStreamLocked(ctx, gen, resp.JobID)
}

// Wait blocks until the current job settles: its stream is released or it
// failed before one was opened. It returns the status at that point.
func (c *Controller) Wait(ctx context.Context) (domain.IngestionStatus, error) {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()

	select {
	case <-settled:
		return c.session.status.Get(), nil
	case <-ctx.Done():
		return c.session.status.Get(), ctx.Err()
	}
}

// Close stops observing the current job. An open stream is closed like any
// other stream end: the close entry is logged and a job still in flight
// reverts to IDLE. A submission still awaiting its response is abandoned.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	switch {
	case c.stream != nil:
		c.closeStreamLocked()
		c.session.closed()
		c.settleLocked()
	case c.session.status.Get().InFlight():
		c.session.abandon()
		c.settleLocked()
	default:
		c.markSettledLocked()
	}
}

func (c *Controller) openStreamLocked(ctx context.Context, gen uint64, jobID string) {
	endpoint, err := StreamEndpoint(c.cfg.BaseURL, c.cfg.APIPath, jobID)
	if err == nil {
		var streamCtx context.Context
		var cancel context.CancelFunc
		// The stream outlives the submission call but keeps its trace.
		streamCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))

		var stream ports.Stream
		stream, err = c.opener.Open(streamCtx, endpoint)
		if err == nil {
			c.stream = stream
			c.cancelStream = cancel
			logger.InfoContext(ctx, "Following job log stream", "job_id", jobID, "endpoint", endpoint)
			go c.consume(gen, stream)
			return
		}
		cancel()
	}

	logger.ErrorContext(ctx, "Failed to open log stream", "job_id", jobID, "error", err)
	c.session.fail(fmt.Sprintf(msgOpenFailed, err))
	c.settleLocked()
}

func (c *Controller) consume(gen uint64, stream ports.Stream) {
	for ev := range stream.Events() {
		c.dispatch(gen, stream, ev)
	}
}

func (c *Controller) dispatch(gen uint64, stream ports.Stream, ev domain.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.stream != stream {
		return
	}

	streamEvents.WithLabelValues(ev.Kind.String()).Inc()
	res := c.session.apply(ev)

	if res.protocolError != nil {
		protocolErrors.Inc()
		logger.Warn("Rejected log stream message", "job_id", c.session.jobID.Get(), "error", res.protocolError)
	}
	if ev.Kind == domain.StreamTransportError {
		logger.Warn("Log stream transport error", "job_id", c.session.jobID.Get(), "error", ev.Err)
	}

	switch {
	case res.closeStream:
		c.closeStreamLocked()
		c.session.closed()
		c.settleLocked()
	case ev.Kind == domain.StreamClosed:
		c.closeStreamLocked()
		c.settleLocked()
	}
}

func (c *Controller) closeStreamLocked() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Close(); err != nil {
		logger.Debug("Closing log stream", "error", err)
	}
	c.cancelStream()
	c.stream = nil
	c.cancelStream = nil
}

// settleLocked records the outcome of the current job and releases waiters.
func (c *Controller) settleLocked() {
	status := c.session.status.Get()
	ingestionOutcomes.WithLabelValues(string(status)).Inc()
	logger.Info("Ingestion job settled", "job_id", c.session.jobID.Get(), "status", status)
	c.markSettledLocked()
}

func (c *Controller) markSettledLocked() {
	select {
	case <-c.settled:
	default:
		close(c.settled)
	}
}

// StreamEndpoint builds the log stream URL of a job. The stream is secure
// exactly when the backend base URL is.
func StreamEndpoint(baseURL, apiPath, jobID string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", fmt.Errorf("%w: empty job id", ports.ErrInvalidEndpoint)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrInvalidEndpoint, err)
	}

	var scheme string
	switch base.Scheme {
	case "https":
		scheme = "wss"
	case "http":
		scheme = "ws"
	default:
		return "", fmt.Errorf("%w: unsupported base URL scheme %q", ports.ErrInvalidEndpoint, base.Scheme)
	}
	if base.Host == "" {
		return "", fmt.Errorf("%w: base URL has no host", ports.ErrInvalidEndpoint)
	}

	prefix := strings.TrimRight(base.Path, "/") + "/" + strings.Trim(apiPath, "/")
	prefix = strings.TrimRight(prefix, "/")
	raw := fmt.Sprintf("%s://%s%s/ws/jobs/%s/status", scheme, base.Host, prefix, url.PathEscape(jobID))

	if _, err := url.Parse(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrInvalidEndpoint, err)
	}
	return raw, nil
}
