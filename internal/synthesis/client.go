package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxread/voxread/internal/shared"
)

const (
	maxMessageBytes = 8 * 1024 * 1024
	writeWait       = 10 * time.Second

	defaultHandshakeTimeout  = 10 * time.Second
	defaultInactivityTimeout = 30 * time.Second
)

// Client dials the synthesis service and hands out one Stream per context.
type Client struct {
	cfg Config
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", shared.ErrConfiguration)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", shared.ErrConfiguration)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", shared.ErrConfiguration, cfg.SampleRate)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = defaultInactivityTimeout
	}
	return &Client{cfg: cfg}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) Connect(ctx context.Context, contextID, voiceID string) (Streamer, error) {
	cfg := c.cfg
	if voiceID != "" {
		cfg.VoiceID = voiceID
	}

	dialer := &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.streamURL(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake rejected with status %d: %v", shared.ErrConnection, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", shared.ErrConnection, cfg.Endpoint, err)
	}
	conn.SetReadLimit(maxMessageBytes)

	return &Stream{
		conn:       conn,
		cfg:        cfg,
		contextID:  contextID,
		inactivity: cfg.InactivityTimeout,
	}, nil
}

func (c *Client) streamURL() string {
	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("cartesia_version", c.cfg.Version)
	return c.cfg.Endpoint + "?" + q.Encode()
}

// Stream is a single websocket synthesis session. SendChunk/Cancel may be
// called concurrently with Receive; Receive itself is single-reader.
type Stream struct {
	conn       *websocket.Conn
	cfg        Config
	contextID  string
	inactivity time.Duration

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func (s *Stream) ContextID() string {
	return s.contextID
}

func (s *Stream) SendChunk(transcript string, final bool) error {
	return s.writeJSON(streamRequest{
		ModelID:    s.cfg.ModelID,
		Transcript: transcript,
		Voice:      voiceRef{Mode: "id", ID: s.cfg.VoiceID},
		Language:   s.cfg.Language,
		ContextID:  s.contextID,
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: s.cfg.SampleRate,
		},
		AddTimestamps: false,
		Continue:      !final,
	})
}

func (s *Stream) Cancel() error {
	return s.writeJSON(cancelRequest{ContextID: s.contextID, Cancel: true})
}

func (s *Stream) Receive() (Message, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.inactivity))
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return Message{}, fmt.Errorf("%w: no frame within %s", shared.ErrTimeout, s.inactivity)
		}
		return Message{}, fmt.Errorf("%w: read frame: %v", shared.ErrStreamInterrupted, err)
	}

	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: invalid frame: %v", shared.ErrProtocol, err)
	}

	switch msg.Type {
	case "chunk":
		return Message{Kind: MessageChunk, Data: msg.Data}, nil
	case "done":
		return Message{Kind: MessageDone}, nil
	case "error":
		reason := msg.Error
		if reason == "" {
			reason = "unspecified remote error"
		}
		return Message{Kind: MessageError, Reason: reason}, nil
	default:
		return Message{Kind: MessageUnknown, Type: msg.Type}, nil
	}
}

func (s *Stream) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	return s.conn.Close()
}

func (s *Stream) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write frame: %v", shared.ErrConnection, err)
	}
	return nil
}
