package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/logger"
	"docpipe.ingest/internal/core/observable"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 256
)

// Client is the part of the paho client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Session is the observable job state being mirrored.
type Session interface {
	JobID() observable.Readable[string]
	Status() observable.Readable[domain.IngestionStatus]
	Logs() observable.Readable[[]domain.LogEntry]
}

type StatusEvent struct {
	JobID     string                 `json:"job_id"`
	Status    domain.IngestionStatus `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
}

type LogEvent struct {
	JobID string `json:"job_id"`
	domain.LogEntry
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// Publisher mirrors a job session onto MQTT topics:
// <prefix>/jobs/<job_id>/status (retained) and <prefix>/jobs/<job_id>/logs.
type Publisher struct {
	client Client
	prefix string

	mu     sync.Mutex
	closed bool
	queue  chan message
	done   chan struct{}
	unsubs []func()
}

// Connect dials brokerURL with keep-alive and auto-reconnect enabled.
func Connect(brokerURL string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("docpipe-ingest-%d", time.Now().UnixNano()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	logger.Info("Connected to MQTT broker", "broker", brokerURL)
	return client, nil
}

func NewPublisher(client Client, prefix string) *Publisher {
	p := &Publisher{
		client: client,
		prefix: prefix,
		queue:  make(chan message, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Mirror starts following session. Session callbacks only enqueue; the
// broker is written from the publisher goroutine.
func (p *Publisher) Mirror(session Session) {
	publishedLogs := 0

	unsubJob := session.JobID().Subscribe(func(jobID string) {
		if jobID == "" {
			return
		}
		p.publishStatus(jobID, session.Status().Get())
	})

	// PENDING is published together with the job id above.
	unsubStatus := session.Status().Subscribe(func(status domain.IngestionStatus) {
		jobID := session.JobID().Get()
		if jobID == "" || status == domain.StatusPending {
			return
		}
		p.publishStatus(jobID, status)
	})

	unsubLogs := session.Logs().Subscribe(func(entries []domain.LogEntry) {
		if len(entries) < publishedLogs {
			publishedLogs = 0
		}
		jobID := session.JobID().Get()
		if jobID == "" {
			publishedLogs = len(entries)
			return
		}
		for _, e := range entries[publishedLogs:] {
			p.enqueue(p.topic(jobID, "logs"), false, LogEvent{JobID: jobID, LogEntry: e})
		}
		publishedLogs = len(entries)
	})

	p.mu.Lock()
	p.unsubs = append(p.unsubs, unsubJob, unsubStatus, unsubLogs)
	p.mu.Unlock()
}

func (p *Publisher) publishStatus(jobID string, status domain.IngestionStatus) {
	p.enqueue(p.topic(jobID, "status"), true, StatusEvent{
		JobID:     jobID,
		Status:    status,
		Timestamp: time.Now(),
	})
}

func (p *Publisher) topic(jobID, kind string) string {
	return fmt.Sprintf("%s/jobs/%s/%s", p.prefix, jobID, kind)
}

func (p *Publisher) enqueue(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode MQTT event", "topic", topic, "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- message{topic: topic, retained: retained, payload: payload}:
	default:
		logger.Warn("MQTT queue full, dropping event", "topic", topic)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		token := p.client.Publish(msg.topic, 0, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) {
			logger.Warn("MQTT publish timed out", "topic", msg.topic)
			continue
		}
		if err := token.Error(); err != nil {
			logger.Warn("MQTT publish failed", "topic", msg.topic, "error", err)
		}
	}
}

// Close stops mirroring, flushes queued events and disconnects.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unsubs := p.unsubs
	p.unsubs = nil
	close(p.queue)
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	<-p.done
	p.client.Disconnect(250)
}
