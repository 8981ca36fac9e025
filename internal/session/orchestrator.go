package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voxread/voxread/internal/audio"
	"github.com/voxread/voxread/internal/chunker"
	"github.com/voxread/voxread/internal/shared"
	"github.com/voxread/voxread/internal/synthesis"
)

const maxConsecutiveProtocolErrors = 3

// Session drives one synthesis stream: chunked text out, audio fragments in,
// WAV containers onto the hand-off queue. Each session owns its context id,
// assembler, and queue; the queue is the only structure shared with the
// polling side.
type Session struct {
	id        string
	contextID string
	voiceID   string
	chunks    []string

	connector synthesis.Connector
	assembler *audio.Assembler
	queue     *Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger

	mu                sync.Mutex
	state             State
	chunksSent        int
	fragmentsReceived int
	bytesReceived     int
	containersEmitted int
}

type Config struct {
	Text          string
	VoiceID       string
	Connector     synthesis.Connector
	MaxChunkChars int
	SampleRate    int
	MinBuffer     time.Duration
	Log           *slog.Logger
}

// Status is a point-in-time snapshot for the status endpoint and readiness.
type Status struct {
	ID                string
	State             State
	ChunksSent        int
	FragmentsReceived int
	BytesReceived     int
	ContainersEmitted int
	QueueDepth        int
}

func New(cfg Config) (*Session, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	chunks, err := chunker.Split(cfg.Text, cfg.MaxChunkChars)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no speakable text", shared.ErrConfiguration)
	}

	id := shared.NewID("sess_")
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		id:        id,
		contextID: uuid.New().String(),
		voiceID:   cfg.VoiceID,
		chunks:    chunks,
		connector: cfg.Connector,
		assembler: audio.NewAssembler(cfg.SampleRate, cfg.MinBuffer),
		queue:     NewQueue(),
		ctx:       ctx,
		cancel:    cancel,
		log:       log.With("session_id", id),
		state:     StateIdle,
	}, nil
}

func (s *Session) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) PollOne() (Item, bool) {
	return s.queue.PollOne()
}

// Cancel signals the session to stop. It returns immediately; the terminal
// marker lands once the stream has been torn down.
func (s *Session) Cancel() {
	s.cancel()
}

// Close cancels the session and waits for its goroutines to exit.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:                s.id,
		State:             s.state,
		ChunksSent:        s.chunksSent,
		FragmentsReceived: s.fragmentsReceived,
		BytesReceived:     s.bytesReceived,
		ContainersEmitted: s.containersEmitted,
		QueueDepth:        s.queue.Len(),
	}
}

func (s *Session) run() {
	defer s.wg.Done()

	s.transition(StateConnecting)

	stream, err := s.connector.Connect(s.ctx, s.contextID, s.voiceID)
	if err != nil {
		if s.ctx.Err() != nil {
			s.finish(StateCancelled, "")
			return
		}
		s.log.Error("connect failed", "error", err)
		s.finish(StateFailed, err.Error())
		return
	}

	if s.ctx.Err() != nil {
		_ = stream.Close()
		s.finish(StateCancelled, "")
		return
	}

	s.transition(StateStreaming)
	s.queue.Push(Item{Kind: ItemStarted})
	s.log.Info("streaming", "chunks", len(s.chunks), "context_id", s.contextID)

	g, gctx := errgroup.WithContext(s.ctx)

	// A blocked read or write is only unblocked by closing the socket, so a
	// watcher tears the stream down as soon as either loop fails or the
	// session is cancelled.
	watchDone := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-gctx.Done():
			if s.ctx.Err() != nil {
				_ = stream.Cancel()
			}
			_ = stream.Close()
		case <-watchDone:
		}
	}()

	g.Go(func() error { return s.sendLoop(gctx, stream) })
	g.Go(func() error { return s.recvLoop(stream) })
	err = g.Wait()
	close(watchDone)
	_ = stream.Close()

	switch {
	case s.ctx.Err() != nil:
		s.finish(StateCancelled, "")
	case err != nil:
		s.log.Error("session failed", "error", err)
		s.finish(StateFailed, err.Error())
	default:
		s.complete()
	}
}

func (s *Session) sendLoop(ctx context.Context, stream synthesis.Streamer) error {
	for i, chunk := range s.chunks {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		final := i == len(s.chunks)-1
		transcript := chunk
		if !final {
			// the service concatenates transcripts verbatim; restore the
			// boundary the chunker consumed
			transcript += " "
		}

		if err := stream.SendChunk(transcript, final); err != nil {
			return err
		}

		s.mu.Lock()
		s.chunksSent++
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) recvLoop(stream synthesis.Streamer) error {
	protocolErrs := 0
	for {
		msg, err := stream.Receive()
		if err != nil {
			if s.ctx.Err() != nil {
				return s.ctx.Err()
			}
			if errors.Is(err, shared.ErrProtocol) {
				protocolErrs++
				s.log.Warn("malformed frame tolerated", "error", err, "consecutive", protocolErrs)
				if protocolErrs >= maxConsecutiveProtocolErrors {
					return fmt.Errorf("%d consecutive malformed frames: %w", protocolErrs, err)
				}
				continue
			}
			return err
		}
		protocolErrs = 0

		switch msg.Kind {
		case synthesis.MessageChunk:
			container, err := s.assembler.Offer(msg.Data)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.fragmentsReceived++
			s.bytesReceived = s.assembler.Received()
			s.mu.Unlock()
			if container != nil {
				s.pushAudio(container)
			}
		case synthesis.MessageDone:
			s.transition(StateDraining)
			return nil
		case synthesis.MessageError:
			return fmt.Errorf("remote synthesis error: %s", msg.Reason)
		case synthesis.MessageUnknown:
			s.log.Warn("skipping unrecognized frame", "type", msg.Type)
		}
	}
}

func (s *Session) complete() {
	if remainder := s.assembler.Flush(); remainder != nil {
		s.pushAudio(remainder)
	}
	s.finish(StateCompleted, "")
}

func (s *Session) pushAudio(container []byte) {
	s.queue.Push(Item{Kind: ItemAudio, Audio: container, MimeType: "audio/wav"})
	s.mu.Lock()
	s.containersEmitted++
	s.mu.Unlock()
}

func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, to) {
		return false
	}
	s.state = to
	return true
}

// finish performs the terminal transition and pushes exactly one terminal
// marker. A second terminal transition is refused by the state table, so a
// session can never emit two markers.
func (s *Session) finish(to State, cause string) {
	if !s.transition(to) {
		return
	}

	switch to {
	case StateCompleted:
		s.queue.Push(Item{Kind: ItemCompleted})
	case StateFailed:
		s.queue.Push(Item{Kind: ItemFailed, Cause: cause})
	case StateCancelled:
		s.queue.Push(Item{Kind: ItemCancelled})
	}

	s.mu.Lock()
	sent, emitted := s.chunksSent, s.containersEmitted
	s.mu.Unlock()
	s.log.Info("session finished", "state", to.String(), "cause", cause,
		"chunks_sent", sent, "containers", emitted)
}
