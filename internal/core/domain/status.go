package domain

import (
	"errors"
	"fmt"
	"strings"
)

type IngestionStatus string

const (
	StatusIdle    IngestionStatus = "IDLE"
	StatusPending IngestionStatus = "PENDING"
	StatusRunning IngestionStatus = "RUNNING"
	StatusSuccess IngestionStatus = "SUCCESS"
	StatusFailed  IngestionStatus = "FAILED"
)

// IsTerminal reports whether no further transitions follow for the job.
func (s IngestionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// InFlight reports whether a job is submitted but not finished.
func (s IngestionStatus) InFlight() bool {
	return s == StatusPending || s == StatusRunning
}

// ParseStatus normalizes a wire status to upper case and rejects unknown names.
func ParseStatus(raw string) (IngestionStatus, error) {
	s := IngestionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusIdle, StatusPending, StatusRunning, StatusSuccess, StatusFailed:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

var ErrIllegalTransition = errors.New("illegal status transition")

// Advance returns the status that a status event reporting next moves s to.
// Status events are only accepted once the stream is open and the job is
// RUNNING, and a job never moves back to IDLE or PENDING through one.
func (s IngestionStatus) Advance(next IngestionStatus) (IngestionStatus, error) {
	if s != StatusRunning {
		return s, fmt.Errorf("%w: %s after %s", ErrIllegalTransition, next, s)
	}
	switch next {
	case StatusRunning, StatusSuccess, StatusFailed:
		return next, nil
	}
	return s, fmt.Errorf("%w: %s after %s", ErrIllegalTransition, next, s)
}
