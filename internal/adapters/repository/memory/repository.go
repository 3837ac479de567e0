package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/ports"
)

// Repository keeps job records in process memory.
type Repository struct {
	mu   sync.RWMutex
	jobs map[string]domain.JobRecord
}

var _ ports.JobRepository = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{jobs: make(map[string]domain.JobRecord)}
}

func (r *Repository) Create(ctx context.Context, job *domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *Repository) Finish(ctx context.Context, id string, status domain.IngestionStatus, documents, chunks int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	now := time.Now()
	job.Status = status
	job.Documents = documents
	job.Chunks = chunks
	job.FinishedAt = &now
	r.jobs[id] = job
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (r *Repository) Totals(ctx context.Context) (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var documents, chunks int64
	for _, job := range r.jobs {
		if job.FinishedAt == nil {
			continue
		}
		documents += job.Documents
		chunks += job.Chunks
	}
	return documents, chunks, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return ctx.Err()
}
