package ports

import (
	"context"
	"errors"
	"fmt"

	"docpipe.ingest/internal/core/domain"
)

var ErrInvalidEndpoint = errors.New("invalid stream endpoint")

// TriggerError is a non-success answer of the ingestion endpoint.
type TriggerError struct {
	StatusCode int
	Message    string
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("ingestion request rejected (HTTP %d): %s", e.StatusCode, e.Message)
}

type IngestAPI interface {
	// Submit posts the batch once. A non-success HTTP answer is returned as
	// a *TriggerError.
	Submit(ctx context.Context, files []domain.File) (*domain.TriggerResponse, error)
}

type HealthAPI interface {
	FetchHealth(ctx context.Context) (*domain.HealthReport, error)
}

// Stream is an open job status channel. Events are delivered in transport
// order and the channel is closed after the final StreamClosed event.
type Stream interface {
	Events() <-chan domain.StreamEvent
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

type StreamOpener interface {
	// Open returns immediately; connection progress is reported through
	// the stream's events. An endpoint that cannot be used at all is
	// rejected with ErrInvalidEndpoint.
	Open(ctx context.Context, endpoint string) (Stream, error)
}

// JobEventBus carries encoded stream frames from the pipeline to stream
// subscribers. Subscribe replays every frame published for the job before
// delivering new ones.
type JobEventBus interface {
	Publish(ctx context.Context, jobID string, frame []byte) error
	Subscribe(ctx context.Context, jobID string) (<-chan []byte, error)
}

// JobRepository stores sandbox job records.
type JobRepository interface {
	Create(ctx context.Context, job *domain.JobRecord) error
	// Finish records the final status and ingested totals of a job.
	Finish(ctx context.Context, id string, status domain.IngestionStatus, documents, chunks int64) error
	// Get returns domain.ErrJobNotFound for an unknown id.
	Get(ctx context.Context, id string) (*domain.JobRecord, error)
	// Totals sums documents and chunks over all finished jobs.
	Totals(ctx context.Context) (documents, chunks int64, err error)
	Ping(ctx context.Context) error
}
