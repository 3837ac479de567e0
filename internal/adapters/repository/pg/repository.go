package pg

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/ports"
)

type Repository struct {
	db *gorm.DB
}

var _ ports.JobRepository = (*Repository)(nil)

func NewRepository(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return newRepository(db)
}

func newRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&domain.JobRecord{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Create(ctx context.Context, job *domain.JobRecord) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) Finish(ctx context.Context, id string, status domain.IngestionStatus, documents, chunks int64) error {
	res := r.db.WithContext(ctx).Model(&domain.JobRecord{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"documents":   documents,
			"chunks":      chunks,
			"finished_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.JobRecord, error) {
	var job domain.JobRecord
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *Repository) Totals(ctx context.Context) (int64, int64, error) {
	var totals struct {
		Documents int64
		Chunks    int64
	}
	err := r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Select("COALESCE(SUM(documents), 0) AS documents, COALESCE(SUM(chunks), 0) AS chunks").
		Where("finished_at IS NOT NULL").
		Scan(&totals).Error
	if err != nil {
		return 0, 0, err
	}
	return totals.Documents, totals.Chunks, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
