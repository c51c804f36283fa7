package server

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/realtime-ai/wakeword/pkg/events"
)

// Commands sent to the client.
const (
	CommandLoaded     = "LOADED"
	CommandPreTrigger = "PRE_TRIGGER"
	CommandDetected   = "DETECTED"
	CommandStatus     = "STATUS"
	CommandError      = "ERROR"
)

// Commands accepted from the client in text frames. Binary frames are
// always audio.
const (
	CommandStart   = "start"
	CommandStop    = "stop"
	CommandProcess = "process"
)

// Message is a server-to-client JSON message.
type Message struct {
	Command    string   `json:"command"`
	SessionID  string   `json:"session_id,omitempty"`
	InputNames []string `json:"input_names,omitempty"`
	Prob       float64  `json:"prob,omitempty"`
	Status     string   `json:"status,omitempty"`
	Error      string   `json:"error,omitempty"`
	// Fatal is set when detection stopped: the model failed to load and the
	// session closes, or capture failed and the client must send start.
	Fatal bool `json:"fatal,omitempty"`
}

// ClientCommand is a parsed text frame.
type ClientCommand struct {
	Command string
	// Data holds the samples of a process command.
	Data []float32
}

// ParseClientCommand reads {"command": "...", "data": [...]}. Command
// names are case-insensitive.
func ParseClientCommand(data []byte) (ClientCommand, error) {
	if !gjson.ValidBytes(data) {
		return ClientCommand{}, fmt.Errorf("invalid JSON message")
	}
	cmd := gjson.GetBytes(data, "command")
	if !cmd.Exists() || cmd.Type != gjson.String {
		return ClientCommand{}, fmt.Errorf("missing command")
	}

	out := ClientCommand{Command: strings.ToLower(cmd.String())}
	switch out.Command {
	case CommandStart, CommandStop:
	case CommandProcess:
		samples := gjson.GetBytes(data, "data")
		if !samples.IsArray() {
			return ClientCommand{}, fmt.Errorf("process command without data array")
		}
		values := samples.Array()
		out.Data = make([]float32, len(values))
		for i, v := range values {
			out.Data[i] = float32(v.Float())
		}
	default:
		return ClientCommand{}, fmt.Errorf("unknown command %q", cmd.String())
	}
	return out, nil
}

// messageFor maps a detector event to its client message.
func messageFor(evt events.Event) (Message, bool) {
	switch payload := evt.Payload.(type) {
	case events.Detection:
		return Message{Command: CommandDetected, Prob: payload.Confidence}, true
	case events.Armed:
		return Message{Command: CommandPreTrigger}, true
	case events.StatusChange:
		return Message{Command: CommandStatus, Status: string(payload.Status)}, true
	case events.CycleError:
		return Message{Command: CommandError, Error: payload.Error(), Fatal: evt.Type == events.EventError}, true
	}
	return Message{}, false
}
