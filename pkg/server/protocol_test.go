package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/wakeword/pkg/events"
)

func TestParseClientCommand(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ClientCommand
		wantErr string
	}{
		{name: "start", in: `{"command":"start"}`, want: ClientCommand{Command: "start"}},
		{name: "stop upper", in: `{"command":"STOP"}`, want: ClientCommand{Command: "stop"}},
		{name: "process", in: `{"command":"PROCESS","data":[0.5,-0.25,1]}`,
			want: ClientCommand{Command: "process", Data: []float32{0.5, -0.25, 1}}},
		{name: "invalid json", in: `{"command":`, wantErr: "invalid JSON"},
		{name: "missing command", in: `{"data":[1]}`, wantErr: "missing command"},
		{name: "numeric command", in: `{"command":3}`, wantErr: "missing command"},
		{name: "unknown", in: `{"command":"INIT"}`, wantErr: "unknown command"},
		{name: "process without data", in: `{"command":"process"}`, wantErr: "without data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClientCommand([]byte(tt.in))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessageFor(t *testing.T) {
	msg, ok := messageFor(events.NewEvent(events.EventWakeWordDetected, events.Detection{Confidence: 0.8}))
	require.True(t, ok)
	assert.Equal(t, Message{Command: CommandDetected, Prob: 0.8}, msg)

	msg, ok = messageFor(events.NewEvent(events.EventWakeWordArmed, events.Armed{}))
	require.True(t, ok)
	assert.Equal(t, CommandPreTrigger, msg.Command)

	msg, ok = messageFor(events.NewEvent(events.EventStatusChanged, events.StatusChange{Status: events.StatusPaused}))
	require.True(t, ok)
	assert.Equal(t, "PAUSED", msg.Status)

	msg, ok = messageFor(events.NewEvent(events.EventInferenceError, events.CycleError{Err: errors.New("bad shape")}))
	require.True(t, ok)
	assert.Equal(t, Message{Command: CommandError, Error: "bad shape"}, msg)

	msg, ok = messageFor(events.NewEvent(events.EventError, events.CycleError{Err: errors.New("gone")}))
	require.True(t, ok)
	assert.True(t, msg.Fatal)

	_, ok = messageFor(events.NewEvent(events.EventStatusChanged, "nope"))
	assert.False(t, ok)
}
