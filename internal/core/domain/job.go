package domain

import (
	"errors"
	"time"
)

var ErrJobNotFound = errors.New("job not found")

// JobRecord is the sandbox backend's record of an accepted ingestion job.
type JobRecord struct {
	ID         string          `gorm:"primaryKey" json:"job_id"`
	Status     IngestionStatus `gorm:"index" json:"status"`
	Files      int             `json:"files"`
	Bytes      int64           `json:"bytes"`
	Documents  int64           `json:"documents"`
	Chunks     int64           `json:"chunks"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func (JobRecord) TableName() string { return "ingest_jobs" }
