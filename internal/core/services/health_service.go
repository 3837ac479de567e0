package services

import (
	"context"
	"time"

	"docpipe.ingest/internal/core/circuitbreaker"
	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/logger"
	"docpipe.ingest/internal/core/observable"
	"docpipe.ingest/internal/core/ports"
)

const healthFetchTimeout = 5 * time.Second

// HealthService loads the display-only backend health snapshot. It never
// touches a JobSession.
type HealthService struct {
	api      ports.HealthAPI
	breaker  *circuitbreaker.CircuitBreaker
	snapshot *observable.Value[domain.SystemHealth]
}

func NewHealthService(api ports.HealthAPI) *HealthService {
	return &HealthService{
		api:      api,
		breaker:  circuitbreaker.New("backend-health"),
		snapshot: observable.New(domain.InitialHealth()),
	}
}

func (s *HealthService) Snapshot() observable.Readable[domain.SystemHealth] {
	return s.snapshot
}

// Fetch asks the backend for its health once. Any failure, including an
// open circuit, yields the disconnected snapshot annotated with the error.
func (s *HealthService) Fetch(ctx context.Context) domain.SystemHealth {
	ctx, cancel := context.WithTimeout(ctx, healthFetchTimeout)
	defer cancel()

	var report *domain.HealthReport
	err := s.breaker.Execute(ctx, func() error {
		var err error
		report, err = s.api.FetchHealth(ctx)
		return err
	})

	var health domain.SystemHealth
	if err != nil {
		logger.WarnContext(ctx, "Failed to fetch backend health", "error", err)
		healthFetches.WithLabelValues("error").Inc()
		health = domain.DisconnectedHealth(err)
	} else {
		healthFetches.WithLabelValues("ok").Inc()
		health = report.ToSystemHealth()
	}

	s.snapshot.Set(health)
	return health
}
