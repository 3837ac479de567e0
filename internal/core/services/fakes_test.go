package services

import (
	"context"
	"sync"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/ports"
)

type fakeIngestAPI struct {
	mu       sync.Mutex
	calls    int
	batches  [][]domain.File
	SubmitFn func(ctx context.Context, files []domain.File) (*domain.TriggerResponse, error)
}

func (f *fakeIngestAPI) Submit(ctx context.Context, files []domain.File) (*domain.TriggerResponse, error) {
	f.mu.Lock()
	f.calls++
	f.batches = append(f.batches, files)
	fn := f.SubmitFn
	f.mu.Unlock()

	if fn == nil {
		return &domain.TriggerResponse{JobID: "J1", Message: "queued"}, nil
	}
	return fn(ctx, files)
}

func (f *fakeIngestAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStream struct {
	endpoint string
	mu       sync.Mutex
	events   chan domain.StreamEvent
	closed   bool
}

func newFakeStream(endpoint string) *fakeStream {
	return &fakeStream{endpoint: endpoint, events: make(chan domain.StreamEvent, 64)}
}

func (s *fakeStream) Events() <-chan domain.StreamEvent { return s.events }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// emit delivers ev unless the client already closed the stream.
func (s *fakeStream) emit(ev domain.StreamEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- ev
	return true
}

// hangUp simulates the remote side closing: a final Closed event, then the
// channel ends.
func (s *fakeStream) hangUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- domain.ClosedEvent()
	s.closed = true
	close(s.events)
}

func (s *fakeStream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	mu      sync.Mutex
	streams []*fakeStream
	// openWhilePrevOpen counts Open calls made while an earlier stream was
	// still open.
	openWhilePrevOpen int
	OpenFn            func(ctx context.Context, endpoint string) (ports.Stream, error)
}

func (o *fakeOpener) Open(ctx context.Context, endpoint string) (ports.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.OpenFn != nil {
		return o.OpenFn(ctx, endpoint)
	}
	for _, s := range o.streams {
		if !s.IsClosed() {
			o.openWhilePrevOpen++
		}
	}
	s := newFakeStream(endpoint)
	o.streams = append(o.streams, s)
	return s, nil
}

func (o *fakeOpener) Streams() []*fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeStream(nil), o.streams...)
}

func (o *fakeOpener) Last() *fakeStream {
	streams := o.Streams()
	if len(streams) == 0 {
		return nil
	}
	return streams[len(streams)-1]
}

type fakeHealthAPI struct {
	report *domain.HealthReport
	err    error
	calls  int
}

func (f *fakeHealthAPI) FetchHealth(ctx context.Context) (*domain.HealthReport, error) {
	f.calls++
	return f.report, f.err
}

func oneFile() []domain.File {
	return []domain.File{{Name: "a.txt"}}
}
