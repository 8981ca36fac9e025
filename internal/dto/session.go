package dto

type StartSessionRequest struct {
	PassageID string `json:"passage_id,omitempty"`
	Text      string `json:"text,omitempty"`
	VoiceID   string `json:"voice_id,omitempty"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

type SessionStatusResponse struct {
	SessionID         string `json:"session_id"`
	State             string `json:"state"`
	ChunksSent        int    `json:"chunks_sent"`
	FragmentsReceived int    `json:"fragments_received"`
	BytesReceived     int    `json:"bytes_received"`
	ContainersEmitted int    `json:"containers_emitted"`
	QueueDepth        int    `json:"queue_depth"`
}

// QueueItemResponse is one polled hand-off item. Audio is a base64 WAV
// container, present only on audio items; Cause only on failed markers.
type QueueItemResponse struct {
	Seq      int    `json:"seq"`
	Kind     string `json:"kind"`
	Audio    string `json:"audio,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Cause    string `json:"cause,omitempty"`
}
