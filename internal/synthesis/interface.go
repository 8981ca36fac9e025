package synthesis

import "context"

// Streamer is one live synthesis stream bound to a single context ID.
type Streamer interface {
	SendChunk(transcript string, final bool) error
	Receive() (Message, error)
	Cancel() error
	Close() error
}

// Connector opens streams. An empty voiceID keeps the configured voice.
type Connector interface {
	Connect(ctx context.Context, contextID, voiceID string) (Streamer, error)
}
