// Package chat defines the wire-facing message types exchanged between the
// transport adapter, the orchestrator and user connections.
package chat

import "context"

// Message is one inbound chat turn or embedded directive from a user.
type Message struct {
	Sender      string `json:"sender"`
	WorkerName  string `json:"worker_name,omitempty"`
	Content     string `json:"content"`
	VoiceOutput bool   `json:"voice_output,omitempty"`
}

// Reply is the structured payload sent back on a user connection.
type Reply struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Worker    string `json:"worker,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	Audio     []byte `json:"audio,omitempty"`
	VoiceID   string `json:"voice_id,omitempty"`
}

// Reply types understood by the web client.
const (
	ReplyTypeQueued          = "queued"
	ReplyTypeAnswer          = "answer"
	ReplyTypeError           = "error"
	ReplyTypeDirectiveResult = "mother_command_received"
	ReplyTypeVoiceSet        = "mother_voice_set"
	ReplyTypeCancelResult    = "cancel_result"
)

// Conn is the outbound half of a user connection. Implementations must be
// safe for concurrent Send calls.
type Conn interface {
	Send(ctx context.Context, reply Reply) error
	Close() error
}
