package synthesis

import "time"

// Config carries everything needed to open a synthesis stream.
type Config struct {
	Endpoint          string
	APIKey            string
	Version           string
	ModelID           string
	VoiceID           string
	SampleRate        int
	Language          string
	HandshakeTimeout  time.Duration
	InactivityTimeout time.Duration
}

type Kind int

const (
	MessageUnknown Kind = iota
	MessageChunk
	MessageDone
	MessageError
)

func (k Kind) String() string {
	switch k {
	case MessageChunk:
		return "chunk"
	case MessageDone:
		return "done"
	case MessageError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one decoded frame from the synthesis service. Data holds the
// base64 audio payload for chunk frames; Reason holds the remote failure
// description for error frames; Type preserves the raw wire type for
// unrecognized frames.
type Message struct {
	Kind   Kind
	Data   string
	Reason string
	Type   string
}

type voiceRef struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type streamRequest struct {
	ModelID       string       `json:"model_id"`
	Transcript    string       `json:"transcript"`
	Voice         voiceRef     `json:"voice"`
	Language      string       `json:"language"`
	ContextID     string       `json:"context_id"`
	OutputFormat  outputFormat `json:"output_format"`
	AddTimestamps bool         `json:"add_timestamps"`
	Continue      bool         `json:"continue"`
}

type cancelRequest struct {
	ContextID string `json:"context_id"`
	Cancel    bool   `json:"cancel"`
}

type serverMessage struct {
	Type      string `json:"type"`
	Data      string `json:"data"`
	Error     string `json:"error"`
	ContextID string `json:"context_id"`
}
