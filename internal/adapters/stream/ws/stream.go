package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/ports"
)

const (
	// Time allowed to complete the opening handshake.
	handshakeTimeout = 10 * time.Second

	// Time allowed to write a control message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20
)

// Opener dials job status streams with gorilla/websocket.
type Opener struct {
	dialer      *websocket.Dialer
	idleTimeout time.Duration
}

var _ ports.StreamOpener = (*Opener)(nil)

// NewOpener returns an Opener whose streams fail after idleTimeout without
// any frame or ping from the server. Zero disables the bound.
func NewOpener(idleTimeout time.Duration) *Opener {
	return &Opener{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		idleTimeout: idleTimeout,
	}
}

// Open validates the endpoint and connects in the background.
func (o *Opener) Open(ctx context.Context, endpoint string) (ports.Stream, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidEndpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: scheme %q", ports.ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ports.ErrInvalidEndpoint)
	}

	s := &Stream{
		events: make(chan domain.StreamEvent),
		done:   make(chan struct{}),
	}
	go s.run(ctx, o, u.String())
	return s, nil
}

// Stream is one websocket connection to a job status endpoint.
type Stream struct {
	events    chan domain.StreamEvent
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *Stream) Events() <-chan domain.StreamEvent {
	return s.events
}

// Close sends a normal closure and drops the connection. Events still
// queued are discarded.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = conn.Close()
	})
	return err
}

func (s *Stream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Stream) emit(ev domain.StreamEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Stream) run(ctx context.Context, o *Opener, endpoint string) {
	defer close(s.events)

	conn, resp, err := o.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		s.emit(domain.TransportErrorEvent(err))
		s.emit(domain.ClosedEvent())
		return
	}

	s.mu.Lock()
	if s.closed() {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	o.extendDeadline(conn)
	conn.SetPingHandler(func(data string) error {
		o.extendDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})

	if !s.emit(domain.OpenedEvent()) {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed() {
				return
			}
			if transportErr := o.readFailure(err); transportErr != nil {
				s.emit(domain.TransportErrorEvent(transportErr))
			}
			break
		}
		o.extendDeadline(conn)
		if !s.emit(domain.MessageEvent(data)) {
			return
		}
	}

	s.emit(domain.ClosedEvent())
}

func (o *Opener) extendDeadline(conn *websocket.Conn) {
	if o.idleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(o.idleTimeout))
	}
}

// readFailure returns the error to report for a failed read, or nil when the
// server closed the stream with a close frame.
func (o *Opener) readFailure(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("no message for %s: %w", o.idleTimeout, err)
	}
	return err
}
