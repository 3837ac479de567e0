package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStreamMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    StreamMessage
		wantErr error
	}{
		{
			name: "log message with lower case level",
			data: `{"type":"log","level":"warn","message":"chunk skipped"}`,
			want: StreamMessage{Type: MessageTypeLog, Level: LevelWarn, Message: "chunk skipped"},
		},
		{
			name: "status message keeps raw status",
			data: `{"type":"status","status":"success","message":"done"}`,
			want: StreamMessage{Type: MessageTypeStatus, Status: StatusSuccess, RawStatus: "success", Message: "done"},
		},
		{
			name:    "unknown type",
			data:    `{"type":"progress","message":"50%"}`,
			wantErr: ErrUnknownMessageType,
		},
		{
			name:    "missing type",
			data:    `{"message":"hello"}`,
			wantErr: ErrUnknownMessageType,
		},
		{
			name:    "unknown level",
			data:    `{"type":"log","level":"debug","message":"x"}`,
			wantErr: ErrInvalidLevel,
		},
		{
			name:    "missing level",
			data:    `{"type":"log","message":"x"}`,
			wantErr: ErrInvalidLevel,
		},
		{
			name:    "unknown status",
			data:    `{"type":"status","status":"paused","message":"x"}`,
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "not json",
			data:    `hello`,
			wantErr: ErrMalformedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStreamMessage([]byte(tt.data))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodedMessagesDecode(t *testing.T) {
	msg, err := DecodeStreamMessage(EncodeLogMessage("error", "parse failed"))
	require.NoError(t, err)
	assert.Equal(t, LevelError, msg.Level)
	assert.Equal(t, "parse failed", msg.Message)

	msg, err = DecodeStreamMessage(EncodeStatusMessage("failed", "boom"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, msg.Status)
	assert.Equal(t, "failed", msg.RawStatus)
}

func TestIngestionStatusPredicates(t *testing.T) {
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusPending.InFlight())
	assert.True(t, StatusRunning.InFlight())
	assert.False(t, StatusIdle.InFlight())
}

func TestHealthReportMapping(t *testing.T) {
	h := HealthReport{PostgresStatus: "OK", GraphDBStatus: "MISSING", DocumentCount: 4, ChunkCount: 40}.ToSystemHealth()
	assert.Equal(t, PostgresConnected, h.PostgresStatus)
	assert.Equal(t, GraphStoreNotFound, h.GraphStatus)
	assert.EqualValues(t, 4, h.TotalDocuments)
	assert.EqualValues(t, 40, h.TotalChunks)
	assert.Empty(t, h.Error)
}

func TestIngestionStatusAdvance(t *testing.T) {
	tests := []struct {
		from, next, want IngestionStatus
		wantErr          bool
	}{
		{from: StatusRunning, next: StatusSuccess, want: StatusSuccess},
		{from: StatusRunning, next: StatusFailed, want: StatusFailed},
		{from: StatusRunning, next: StatusRunning, want: StatusRunning},
		{from: StatusPending, next: StatusRunning, want: StatusPending, wantErr: true},
		{from: StatusPending, next: StatusSuccess, want: StatusPending, wantErr: true},
		{from: StatusRunning, next: StatusPending, want: StatusRunning, wantErr: true},
		{from: StatusRunning, next: StatusIdle, want: StatusRunning, wantErr: true},
		{from: StatusSuccess, next: StatusFailed, want: StatusSuccess, wantErr: true},
		{from: StatusIdle, next: StatusRunning, want: StatusIdle, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.next), func(t *testing.T) {
			got, err := tt.from.Advance(tt.next)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIllegalTransition)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
