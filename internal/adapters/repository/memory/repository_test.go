package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe.ingest/internal/core/domain"
)

func TestRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	require.NoError(t, repo.Create(ctx, &domain.JobRecord{ID: "J1", Status: domain.StatusPending, Files: 2}))
	require.Error(t, repo.Create(ctx, &domain.JobRecord{ID: "J1"}))

	docs, chunks, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, docs)
	assert.Zero(t, chunks)

	require.NoError(t, repo.Finish(ctx, "J1", domain.StatusSuccess, 2, 5))
	job, err := repo.Get(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, job.Status)
	assert.NotNil(t, job.FinishedAt)
	assert.False(t, job.CreatedAt.IsZero())

	docs, chunks, err = repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), docs)
	assert.Equal(t, int64(5), chunks)
}

func TestRepository_UnknownJob(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	assert.ErrorIs(t, repo.Finish(ctx, "nope", domain.StatusFailed, 0, 0), domain.ErrJobNotFound)
}

func TestRepository_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	require.NoError(t, repo.Create(ctx, &domain.JobRecord{ID: "J1", Status: domain.StatusPending}))

	job, _ := repo.Get(ctx, "J1")
	job.Status = domain.StatusFailed

	again, _ := repo.Get(ctx, "J1")
	assert.Equal(t, domain.StatusPending, again.Status)
}
