package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedMessage   = errors.New("malformed stream message")
	ErrUnknownMessageType = errors.New("unknown stream message type")
	ErrInvalidLevel       = errors.New("invalid log level")
	ErrInvalidStatus      = errors.New("invalid status")
)

const (
	MessageTypeLog    = "log"
	MessageTypeStatus = "status"
)

type wireMessage struct {
	Type    string `json:"type"`
	Level   string `json:"level,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// StreamMessage is a decoded frame of the job status stream. Level is set for
// log messages, Status and RawStatus for status messages.
type StreamMessage struct {
	Type      string
	Level     LogLevel
	Status    IngestionStatus
	RawStatus string
	Message   string
}

// DecodeStreamMessage parses one text frame. Unknown discriminators and
// unknown level or status names are rejected.
func DecodeStreamMessage(data []byte) (StreamMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return StreamMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msg := StreamMessage{Type: w.Type, Message: w.Message}
	switch w.Type {
	case MessageTypeLog:
		level, err := ParseLevel(w.Level)
		if err != nil {
			return StreamMessage{}, err
		}
		msg.Level = level
	case MessageTypeStatus:
		status, err := ParseStatus(w.Status)
		if err != nil {
			return StreamMessage{}, err
		}
		msg.Status = status
		msg.RawStatus = w.Status
	default:
		return StreamMessage{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, w.Type)
	}
	return msg, nil
}

// EncodeLogMessage builds a "log" frame.
func EncodeLogMessage(level, message string) []byte {
	data, _ := json.Marshal(wireMessage{Type: MessageTypeLog, Level: level, Message: message})
	return data
}

// EncodeStatusMessage builds a "status" frame.
func EncodeStatusMessage(status, message string) []byte {
	data, _ := json.Marshal(wireMessage{Type: MessageTypeStatus, Status: status, Message: message})
	return data
}

type StreamEventKind int

const (
	StreamOpened StreamEventKind = iota + 1
	StreamMessageReceived
	StreamTransportError
	StreamClosed
)

func (k StreamEventKind) String() string {
	switch k {
	case StreamOpened:
		return "opened"
	case StreamMessageReceived:
		return "message"
	case StreamTransportError:
		return "transport_error"
	case StreamClosed:
		return "closed"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// StreamEvent is what a stream delivers to its owner: Payload is set for
// messages, Err for transport errors.
type StreamEvent struct {
	Kind    StreamEventKind
	Payload []byte
	Err     error
}

func OpenedEvent() StreamEvent { return StreamEvent{Kind: StreamOpened} }

func MessageEvent(payload []byte) StreamEvent {
	return StreamEvent{Kind: StreamMessageReceived, Payload: payload}
}

func TransportErrorEvent(err error) StreamEvent {
	return StreamEvent{Kind: StreamTransportError, Err: err}
}

func ClosedEvent() StreamEvent { return StreamEvent{Kind: StreamClosed} }
