package memory

import (
	"context"
	"sync"
	"time"

	"docpipe.ingest/internal/core/ports"
)

// DefaultRetention is how long a job's history outlives its last frame.
const DefaultRetention = time.Hour

// Bus is an in-process JobEventBus. Frames are kept per job so late
// subscribers replay the whole run, and dropped once a job has been quiet
// for the retention period.
type Bus struct {
	mu        sync.Mutex
	topics    map[string]*topic
	retention time.Duration
}

type topic struct {
	frames [][]byte
	// notify is closed and replaced on every publish
	notify   chan struct{}
	lastUsed time.Time
}

var _ ports.JobEventBus = (*Bus)(nil)

// NewBus returns a bus that forgets a job retention after its last use. A
// zero retention keeps every job forever.
func NewBus(retention time.Duration) *Bus {
	return &Bus{topics: make(map[string]*topic), retention: retention}
}

func (b *Bus) topic(jobID string) *topic {
	t, ok := b.topics[jobID]
	if !ok {
		t = &topic{notify: make(chan struct{})}
		b.topics[jobID] = t
		if b.retention > 0 {
			b.scheduleExpiry(jobID, t, b.retention)
		}
	}
	t.lastUsed = time.Now()
	return t
}

func (b *Bus) scheduleExpiry(jobID string, t *topic, after time.Duration) {
	time.AfterFunc(after, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.topics[jobID] != t {
			return
		}
		if idle := time.Since(t.lastUsed); idle < b.retention {
			b.scheduleExpiry(jobID, t, b.retention-idle)
			return
		}
		delete(b.topics, jobID)
	})
}

func (b *Bus) Publish(ctx context.Context, jobID string, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(jobID)
	t.frames = append(t.frames, append([]byte(nil), frame...))
	close(t.notify)
	t.notify = make(chan struct{})
	return nil
}

// Subscribe streams every frame of the job until ctx is done. A subscriber
// keeps the history it attached to even after the job expires.
func (b *Bus) Subscribe(ctx context.Context, jobID string) (<-chan []byte, error) {
	b.mu.Lock()
	t := b.topic(jobID)
	b.mu.Unlock()

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		next := 0
		for {
			b.mu.Lock()
			pending := t.frames[next:]
			notify := t.notify
			b.mu.Unlock()

			for _, frame := range pending {
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}
			next += len(pending)

			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Jobs reports how many jobs still have history.
func (b *Bus) Jobs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
