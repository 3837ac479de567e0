package services

import (
	"fmt"
	"slices"
	"time"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/observable"
)

const (
	msgConnected    = "connected to log stream for job %s"
	msgStatus       = "status changed: %s - %s"
	msgJobFinished  = "job finished, closing log stream"
	msgStreamClosed = "log stream connection closed"
	msgStreamError  = "log stream connection error: %v"
	msgProtocol     = "protocol error: %v"
	msgStartFailed  = "failed to start ingestion: %v"
	msgOpenFailed   = "failed to open log stream: %v"
	msgAbandoned    = "ingestion abandoned before the log stream opened"
)

// JobSession holds the observable state of the single tracked job. It is
// only written by its Controller, under the Controller's lock.
type JobSession struct {
	jobID  *observable.Value[string]
	status *observable.Value[domain.IngestionStatus]
	logs   *observable.Value[[]domain.LogEntry]

	now func() time.Time
}

func NewJobSession() *JobSession {
	return &JobSession{
		jobID:  observable.New(""),
		status: observable.New(domain.StatusIdle),
		logs:   observable.New([]domain.LogEntry{}),
		now:    time.Now,
	}
}

// JobID is the tracked job identifier, empty while no job is tracked.
func (s *JobSession) JobID() observable.Readable[string] { return s.jobID }

func (s *JobSession) Status() observable.Readable[domain.IngestionStatus] { return s.status }

// Logs hands every reader its own copy of the entries.
func (s *JobSession) Logs() observable.Readable[[]domain.LogEntry] { return observable.Cloned(s.logs) }

func (s *JobSession) reset() {
	s.status.Set(domain.StatusPending)
	s.logs.Set([]domain.LogEntry{})
	s.jobID.Set("")
}

// appendLog publishes a new slice so earlier snapshots stay untouched.
func (s *JobSession) appendLog(level domain.LogLevel, message string) {
	entry := domain.LogEntry{Level: level, Message: message, Timestamp: s.now()}
	s.logs.Update(func(cur []domain.LogEntry) []domain.LogEntry {
		return append(slices.Clip(cur), entry)
	})
}

func (s *JobSession) fail(message string) {
	s.appendLog(domain.LevelError, message)
	s.status.Set(domain.StatusFailed)
}

// applyResult tells the Controller what an event requires beyond the state
// change already made.
type applyResult struct {
	closeStream   bool
	protocolError error
}

// apply is the single transition function of the session: it interprets
// one stream event and updates the projections.
func (s *JobSession) apply(ev domain.StreamEvent) applyResult {
	switch ev.Kind {
	case domain.StreamOpened:
		if s.status.Get() == domain.StatusPending {
			s.status.Set(domain.StatusRunning)
		}
		s.appendLog(domain.LevelInfo, fmt.Sprintf(msgConnected, s.jobID.Get()))

	case domain.StreamMessageReceived:
		return s.applyMessage(ev.Payload)

	case domain.StreamTransportError:
		s.appendLog(domain.LevelError, fmt.Sprintf(msgStreamError, ev.Err))
		if s.status.Get().InFlight() {
			s.status.Set(domain.StatusFailed)
		}

	case domain.StreamClosed:
		s.closed()

	default:
		err := fmt.Errorf("unexpected stream event %s", ev.Kind)
		s.appendLog(domain.LevelError, fmt.Sprintf(msgProtocol, err))
		return applyResult{protocolError: err}
	}
	return applyResult{}
}

func (s *JobSession) applyMessage(payload []byte) applyResult {
	msg, err := domain.DecodeStreamMessage(payload)
	if err != nil {
		s.appendLog(domain.LevelError, fmt.Sprintf(msgProtocol, err))
		return applyResult{protocolError: err}
	}

	switch msg.Type {
	case domain.MessageTypeLog:
		s.appendLog(msg.Level, msg.Message)
		return applyResult{}

	case domain.MessageTypeStatus:
		next, err := s.status.Get().Advance(msg.Status)
		if err != nil {
			s.appendLog(domain.LevelError, fmt.Sprintf(msgProtocol, err))
			return applyResult{protocolError: err}
		}
		s.status.Set(next)
		s.appendLog(domain.LevelInfo, fmt.Sprintf(msgStatus, msg.RawStatus, msg.Message))
		if next.IsTerminal() {
			s.appendLog(domain.LevelInfo, msgJobFinished)
			return applyResult{closeStream: true}
		}
	}
	return applyResult{}
}

// abandon ends a job whose submission is still in flight.
func (s *JobSession) abandon() {
	s.appendLog(domain.LevelWarn, msgAbandoned)
	s.status.Set(domain.StatusIdle)
}

// closed records the end of the stream. A job still in flight reverts to
// IDLE so it is never shown as running forever.
func (s *JobSession) closed() {
	s.appendLog(domain.LevelInfo, msgStreamClosed)
	s.status.Update(func(cur domain.IngestionStatus) domain.IngestionStatus {
		if cur.InFlight() {
			return domain.StatusIdle
		}
		return cur
	})
}
