package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/logger"
	"docpipe.ingest/internal/core/ports"
)

// chunkSize is the number of bytes the sandbox counts as one chunk.
const chunkSize = 512

// Upload describes one received file of a sandbox job.
type Upload struct {
	Name string
	Size int64
}

// Pipeline simulates backend ingestion for local runs and tests. Each job
// publishes the frames a real backend would send on the job status stream.
type Pipeline struct {
	bus       ports.JobEventBus
	jobs      ports.JobRepository
	stepDelay time.Duration

	active atomic.Int64
}

func NewPipeline(bus ports.JobEventBus, jobs ports.JobRepository, stepDelay time.Duration) *Pipeline {
	return &Pipeline{bus: bus, jobs: jobs, stepDelay: stepDelay}
}

// Accept records a new job before it is run.
func (p *Pipeline) Accept(ctx context.Context, jobID string, uploads []Upload) error {
	var total int64
	for _, u := range uploads {
		total += u.Size
	}
	return p.jobs.Create(ctx, &domain.JobRecord{
		ID:        jobID,
		Status:    domain.StatusPending,
		Files:     len(uploads),
		Bytes:     total,
		CreatedAt: time.Now(),
	})
}

// Job returns the record of an accepted job.
func (p *Pipeline) Job(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return p.jobs.Get(ctx, jobID)
}

// Run processes a job to completion and returns its final status. A file
// whose name contains "fail" stops the job as failed. The job record is
// finished before the final status frame is published.
func (p *Pipeline) Run(ctx context.Context, jobID string, uploads []Upload) domain.IngestionStatus {
	ctx = logger.WithJobID(ctx, jobID)
	p.active.Add(1)
	defer p.active.Add(-1)
	start := time.Now()

	res, err := p.run(ctx, jobID, uploads)
	if err != nil {
		logger.ErrorContext(ctx, "Sandbox job aborted", "error", err)
		res.status = domain.StatusFailed
		res.message = fmt.Sprintf("ingestion aborted: %v", err)
	}

	final := context.WithoutCancel(ctx)
	if err := p.jobs.Finish(final, jobID, res.status, res.documents, res.chunks); err != nil {
		logger.ErrorContext(ctx, "Failed to record job outcome", "error", err)
	}

	frame := domain.EncodeStatusMessage(strings.ToLower(string(res.status)), res.message)
	if err == nil {
		err = p.publish(ctx, jobID, frame)
	} else {
		err = p.bus.Publish(final, jobID, frame)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish final status", "error", err)
	}

	sandboxJobs.WithLabelValues(string(res.status)).Inc()
	sandboxJobDuration.Observe(time.Since(start).Seconds())
	logger.InfoContext(ctx, "Sandbox job finished", "status", res.status, "files", len(uploads))
	return res.status
}

type runResult struct {
	status    domain.IngestionStatus
	message   string
	documents int64
	chunks    int64
}

// run emits every frame except the final status.
func (p *Pipeline) run(ctx context.Context, jobID string, uploads []Upload) (res runResult, err error) {
	emitLog := func(level domain.LogLevel, format string, args ...any) error {
		return p.publish(ctx, jobID, domain.EncodeLogMessage(strings.ToLower(string(level)), fmt.Sprintf(format, args...)))
	}

	if err := emitLog(domain.LevelInfo, "received %d file(s)", len(uploads)); err != nil {
		return res, err
	}
	running := domain.EncodeStatusMessage(strings.ToLower(string(domain.StatusRunning)), fmt.Sprintf("processing %d file(s)", len(uploads)))
	if err := p.publish(ctx, jobID, running); err != nil {
		return res, err
	}

	for _, u := range uploads {
		if err := emitLog(domain.LevelInfo, "parsing %s (%d bytes)", u.Name, u.Size); err != nil {
			return res, err
		}
		if path.Ext(u.Name) == "" {
			if err := emitLog(domain.LevelWarn, "no extension on %s, treating as plain text", u.Name); err != nil {
				return res, err
			}
		}
		if strings.Contains(strings.ToLower(u.Name), "fail") {
			if err := emitLog(domain.LevelError, "could not parse %s", u.Name); err != nil {
				return res, err
			}
			res.status = domain.StatusFailed
			res.message = "ingestion failed on " + u.Name
			return res, nil
		}

		n := u.Size/chunkSize + 1
		res.documents++
		res.chunks += n
		if err := emitLog(domain.LevelInfo, "stored %d chunk(s) for %s", n, u.Name); err != nil {
			return res, err
		}
	}

	res.status = domain.StatusSuccess
	res.message = fmt.Sprintf("ingested %d document(s), %d chunk(s)", res.documents, res.chunks)
	return res, nil
}

// publish sends one frame after the configured step delay.
func (p *Pipeline) publish(ctx context.Context, jobID string, frame []byte) error {
	if p.stepDelay > 0 {
		timer := time.NewTimer(p.stepDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return p.bus.Publish(ctx, jobID, frame)
}

// Health reports the job store status and the totals of ingested documents
// and chunks. The graph store is simulated and always available.
func (p *Pipeline) Health(ctx context.Context) domain.HealthReport {
	report := domain.HealthReport{PostgresStatus: "OK", GraphDBStatus: "OK"}
	if err := p.jobs.Ping(ctx); err != nil {
		logger.WarnContext(ctx, "Job store unreachable", "error", err)
		report.PostgresStatus = "ERROR"
		return report
	}
	docs, chunks, err := p.jobs.Totals(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to read job totals", "error", err)
		report.PostgresStatus = "ERROR"
		return report
	}
	report.DocumentCount = docs
	report.ChunkCount = chunks
	return report
}

// Active is the number of jobs currently running.
func (p *Pipeline) Active() int64 {
	return p.active.Load()
}
