package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxread/voxread/internal/audio"
	"github.com/voxread/voxread/internal/shared"
	"github.com/voxread/voxread/internal/synthesis"
)

type sentChunk struct {
	transcript string
	final      bool
}

type scripted struct {
	msg synthesis.Message
	err error
}

// fakeStream plays back a scripted sequence of Receive results and records
// everything sent through it. Closing it unblocks a pending Receive, the
// same way closing a socket unblocks a blocked read.
type fakeStream struct {
	script   chan scripted
	closedCh chan struct{}

	mu      sync.Mutex
	sent    []sentChunk
	cancels int
	closed  bool
}

func newFakeStream(buf int) *fakeStream {
	return &fakeStream{
		script:   make(chan scripted, buf),
		closedCh: make(chan struct{}),
	}
}

func (f *fakeStream) SendChunk(transcript string, final bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("%w: send on closed stream", shared.ErrConnection)
	}
	f.sent = append(f.sent, sentChunk{transcript: transcript, final: final})
	return nil
}

func (f *fakeStream) Receive() (synthesis.Message, error) {
	select {
	case sm, ok := <-f.script:
		if !ok {
			return synthesis.Message{}, fmt.Errorf("%w: connection closed", shared.ErrStreamInterrupted)
		}
		return sm.msg, sm.err
	case <-f.closedCh:
		return synthesis.Message{}, fmt.Errorf("%w: connection closed", shared.ErrStreamInterrupted)
	}
}

func (f *fakeStream) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.closedCh)
	}
	return nil
}

func (f *fakeStream) sentChunks() []sentChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentChunk, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeStream) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

type fakeConnector struct {
	stream  *fakeStream
	err     error
	waitCtx bool

	mu        sync.Mutex
	connects  int
	contextID string
	voiceID   string
}

func (f *fakeConnector) Connect(ctx context.Context, contextID, voiceID string) (synthesis.Streamer, error) {
	f.mu.Lock()
	f.connects++
	f.contextID = contextID
	f.voiceID = voiceID
	f.mu.Unlock()

	if f.waitCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func (f *fakeConnector) connectedWith() (contextID, voiceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contextID, f.voiceID
}

func newTestSession(t *testing.T, text string, conn synthesis.Connector) *Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(Config{
		Text:          text,
		Connector:     conn,
		MaxChunkChars: 900,
		SampleRate:    8000,
		MinBuffer:     0,
		Log:           logger,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func chunkMsg(pcm []byte) scripted {
	return scripted{msg: synthesis.Message{
		Kind: synthesis.MessageChunk,
		Data: base64.StdEncoding.EncodeToString(pcm),
	}}
}

func doneMsg() scripted {
	return scripted{msg: synthesis.Message{Kind: synthesis.MessageDone}}
}

func drainQueue(s *Session) []Item {
	var items []Item
	for {
		item, ok := s.PollOne()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

func countTerminalMarkers(items []Item) int {
	n := 0
	for _, item := range items {
		switch item.Kind {
		case ItemCompleted, ItemFailed, ItemCancelled:
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew_Validation(t *testing.T) {
	conn := &fakeConnector{stream: newFakeStream(1)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty text", Config{Text: "", Connector: conn, MaxChunkChars: 900, SampleRate: 8000, Log: logger}},
		{"whitespace text", Config{Text: "  \n\t ", Connector: conn, MaxChunkChars: 900, SampleRate: 8000, Log: logger}},
		{"zero chunk limit", Config{Text: "Hello.", Connector: conn, MaxChunkChars: 0, SampleRate: 8000, Log: logger}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, shared.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestNew_IDAndInitialState(t *testing.T) {
	conn := &fakeConnector{stream: newFakeStream(1)}
	s := newTestSession(t, "Hello there.", conn)

	if !strings.HasPrefix(s.ID(), "sess_") {
		t.Errorf("session ID should have prefix 'sess_', got %s", s.ID())
	}
	if s.State() != StateIdle {
		t.Errorf("expected initial state idle, got %s", s.State())
	}
	if s.contextID == "" {
		t.Error("context id should be assigned at construction")
	}
}

func TestSession_HappyPath(t *testing.T) {
	pcmA := bytes.Repeat([]byte{0x01, 0x02}, 40)
	pcmB := bytes.Repeat([]byte{0x03, 0x04}, 50)

	stream := newFakeStream(8)
	stream.script <- chunkMsg(pcmA)
	stream.script <- chunkMsg(pcmB)
	stream.script <- doneMsg()

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "First sentence here. Second sentence there.", conn)
	s.Start()
	s.wg.Wait()

	if s.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", s.State())
	}

	items := drainQueue(s)
	if len(items) != 4 {
		t.Fatalf("expected 4 items (started, 2 audio, completed), got %d", len(items))
	}
	if items[0].Kind != ItemStarted {
		t.Errorf("first item should be started, got %s", items[0].Kind)
	}
	if items[3].Kind != ItemCompleted {
		t.Errorf("last item should be completed, got %s", items[3].Kind)
	}
	for i, item := range items {
		if item.Seq != i {
			t.Errorf("item %d: expected seq %d, got %d", i, i, item.Seq)
		}
	}

	for i, want := range [][]byte{pcmA, pcmB} {
		item := items[i+1]
		if item.Kind != ItemAudio {
			t.Fatalf("item %d should be audio, got %s", i+1, item.Kind)
		}
		if item.MimeType != "audio/wav" {
			t.Errorf("item %d: expected mime audio/wav, got %s", i+1, item.MimeType)
		}
		info, pcm, err := audio.DecodeWAV(item.Audio)
		if err != nil {
			t.Fatalf("item %d: container should decode: %v", i+1, err)
		}
		if info.SampleRate != 8000 {
			t.Errorf("item %d: expected sample rate 8000, got %d", i+1, info.SampleRate)
		}
		if !bytes.Equal(pcm, want) {
			t.Errorf("item %d: payload mismatch", i+1)
		}
	}

	st := s.Status()
	if st.ChunksSent != 1 {
		t.Errorf("expected 1 chunk sent, got %d", st.ChunksSent)
	}
	if st.FragmentsReceived != 2 {
		t.Errorf("expected 2 fragments, got %d", st.FragmentsReceived)
	}
	if st.BytesReceived != len(pcmA)+len(pcmB) {
		t.Errorf("expected %d bytes received, got %d", len(pcmA)+len(pcmB), st.BytesReceived)
	}
	if st.ContainersEmitted != 2 {
		t.Errorf("expected 2 containers, got %d", st.ContainersEmitted)
	}
}

func TestSession_ChunkBoundaries(t *testing.T) {
	stream := newFakeStream(2)
	stream.script <- doneMsg()

	conn := &fakeConnector{stream: stream}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(Config{
		Text:          "One two. Three four.",
		Connector:     conn,
		MaxChunkChars: 12,
		SampleRate:    8000,
		Log:           logger,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.Start()
	s.wg.Wait()

	sent := stream.sentChunks()
	if len(sent) != 2 {
		t.Fatalf("expected 2 chunks sent, got %d", len(sent))
	}
	if sent[0].transcript != "One two. " || sent[0].final {
		t.Errorf("first chunk should be %q and not final, got %q final=%v",
			"One two. ", sent[0].transcript, sent[0].final)
	}
	if sent[1].transcript != "Three four." || !sent[1].final {
		t.Errorf("last chunk should be %q and final, got %q final=%v",
			"Three four.", sent[1].transcript, sent[1].final)
	}
}

func TestSession_Cancel(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x05, 0x06}, 30)

	stream := newFakeStream(4)
	stream.script <- chunkMsg(pcm)

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "A long passage that keeps streaming.", conn)
	s.Start()

	waitFor(t, "first container", func() bool {
		return s.Status().ContainersEmitted >= 1
	})

	s.Cancel()
	s.wg.Wait()

	if s.State() != StateCancelled {
		t.Fatalf("expected cancelled, got %s", s.State())
	}

	items := drainQueue(s)
	if len(items) < 2 {
		t.Fatalf("expected at least started and cancelled, got %d items", len(items))
	}
	if items[0].Kind != ItemStarted {
		t.Errorf("first item should be started, got %s", items[0].Kind)
	}
	last := items[len(items)-1]
	if last.Kind != ItemCancelled {
		t.Errorf("last item should be cancelled, got %s", last.Kind)
	}
	if n := countTerminalMarkers(items); n != 1 {
		t.Errorf("expected exactly one terminal marker, got %d", n)
	}

	if stream.cancelCount() != 1 {
		t.Errorf("cancel frame should be sent once on user cancel, got %d", stream.cancelCount())
	}
}

func TestSession_CancelDuringConnect(t *testing.T) {
	conn := &fakeConnector{waitCtx: true}
	s := newTestSession(t, "Never connects.", conn)
	s.Start()

	waitFor(t, "connect attempt", func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.connects == 1
	})

	s.Cancel()
	s.wg.Wait()

	if s.State() != StateCancelled {
		t.Fatalf("expected cancelled, got %s", s.State())
	}

	items := drainQueue(s)
	if len(items) != 1 {
		t.Fatalf("expected only the cancelled marker, got %d items", len(items))
	}
	if items[0].Kind != ItemCancelled {
		t.Errorf("expected cancelled marker, got %s", items[0].Kind)
	}
}

func TestSession_ConnectFailure(t *testing.T) {
	conn := &fakeConnector{err: fmt.Errorf("%w: handshake rejected with status 403", shared.ErrConnection)}
	s := newTestSession(t, "Will not start.", conn)
	s.Start()
	s.wg.Wait()

	if s.State() != StateFailed {
		t.Fatalf("expected failed, got %s", s.State())
	}

	items := drainQueue(s)
	if len(items) != 1 {
		t.Fatalf("expected only the failed marker, got %d items", len(items))
	}
	if items[0].Kind != ItemFailed {
		t.Fatalf("expected failed marker, got %s", items[0].Kind)
	}
	if !strings.Contains(items[0].Cause, "handshake rejected") {
		t.Errorf("cause should carry the connect error, got %q", items[0].Cause)
	}
}

func TestSession_RemoteError(t *testing.T) {
	stream := newFakeStream(4)
	stream.script <- chunkMsg([]byte{0x01, 0x02})
	stream.script <- scripted{msg: synthesis.Message{Kind: synthesis.MessageError, Reason: "voice not found"}}

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "Something to read.", conn)
	s.Start()
	s.wg.Wait()

	if s.State() != StateFailed {
		t.Fatalf("expected failed, got %s", s.State())
	}

	items := drainQueue(s)
	last := items[len(items)-1]
	if last.Kind != ItemFailed {
		t.Fatalf("last item should be failed, got %s", last.Kind)
	}
	if !strings.Contains(last.Cause, "voice not found") {
		t.Errorf("cause should carry the remote reason, got %q", last.Cause)
	}
	if n := countTerminalMarkers(items); n != 1 {
		t.Errorf("expected exactly one terminal marker, got %d", n)
	}
	if stream.cancelCount() != 0 {
		t.Errorf("no cancel frame should be sent on remote failure, got %d", stream.cancelCount())
	}
}

func TestSession_StreamInterrupted(t *testing.T) {
	stream := newFakeStream(1)
	close(stream.script)

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "Cut off mid-stream.", conn)
	s.Start()
	s.wg.Wait()

	if s.State() != StateFailed {
		t.Fatalf("expected failed, got %s", s.State())
	}

	items := drainQueue(s)
	last := items[len(items)-1]
	if last.Kind != ItemFailed {
		t.Fatalf("last item should be failed, got %s", last.Kind)
	}
	if !strings.Contains(last.Cause, "stream interrupted") {
		t.Errorf("cause should mention the interruption, got %q", last.Cause)
	}
}

func TestSession_ProtocolErrorsAbortAfterThree(t *testing.T) {
	protoErr := scripted{err: fmt.Errorf("%w: invalid frame", shared.ErrProtocol)}

	stream := newFakeStream(4)
	stream.script <- protoErr
	stream.script <- protoErr
	stream.script <- protoErr

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "Noisy wire.", conn)
	s.Start()
	s.wg.Wait()

	if s.State() != StateFailed {
		t.Fatalf("expected failed, got %s", s.State())
	}

	items := drainQueue(s)
	last := items[len(items)-1]
	if last.Kind != ItemFailed {
		t.Fatalf("last item should be failed, got %s", last.Kind)
	}
	if !strings.Contains(last.Cause, "malformed") {
		t.Errorf("cause should mention malformed frames, got %q", last.Cause)
	}
}

func TestSession_ProtocolErrorsRecover(t *testing.T) {
	protoErr := scripted{err: fmt.Errorf("%w: invalid frame", shared.ErrProtocol)}
	pcm := []byte{0x0a, 0x0b, 0x0c, 0x0d}

	stream := newFakeStream(8)
	stream.script <- protoErr
	stream.script <- protoErr
	stream.script <- chunkMsg(pcm)
	stream.script <- protoErr
	stream.script <- doneMsg()

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "Mostly fine wire.", conn)
	s.Start()
	s.wg.Wait()

	if s.State() != StateCompleted {
		t.Fatalf("a good frame should reset the malformed counter, got %s", s.State())
	}

	st := s.Status()
	if st.FragmentsReceived != 1 {
		t.Errorf("expected 1 fragment, got %d", st.FragmentsReceived)
	}
}

func TestSession_UnknownFramesSkipped(t *testing.T) {
	pcm := []byte{0x10, 0x11}

	stream := newFakeStream(4)
	stream.script <- scripted{msg: synthesis.Message{Kind: synthesis.MessageUnknown, Type: "telemetry"}}
	stream.script <- chunkMsg(pcm)
	stream.script <- doneMsg()

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "Chatty service.", conn)
	s.Start()
	s.wg.Wait()

	if s.State() != StateCompleted {
		t.Fatalf("unknown frames should not abort the session, got %s", s.State())
	}
	if st := s.Status(); st.FragmentsReceived != 1 {
		t.Errorf("expected 1 fragment, got %d", st.FragmentsReceived)
	}
}

func TestSession_BadFragmentFails(t *testing.T) {
	stream := newFakeStream(2)
	stream.script <- scripted{msg: synthesis.Message{Kind: synthesis.MessageChunk, Data: "!!! not base64 !!!"}}

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "Corrupted audio.", conn)
	s.Start()
	s.wg.Wait()

	if s.State() != StateFailed {
		t.Fatalf("expected failed, got %s", s.State())
	}

	items := drainQueue(s)
	last := items[len(items)-1]
	if !strings.Contains(last.Cause, "decode") {
		t.Errorf("cause should mention the decode failure, got %q", last.Cause)
	}
}

func TestSession_FlushRemainder(t *testing.T) {
	fragA := bytes.Repeat([]byte{0x01}, 1000)
	fragB := bytes.Repeat([]byte{0x02}, 500)

	stream := newFakeStream(4)
	stream.script <- chunkMsg(fragA)
	stream.script <- chunkMsg(fragB)
	stream.script <- doneMsg()

	conn := &fakeConnector{stream: stream}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(Config{
		Text:          "Short but buffered.",
		Connector:     conn,
		MaxChunkChars: 900,
		SampleRate:    8000,
		MinBuffer:     time.Second,
		Log:           logger,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.Start()
	s.wg.Wait()

	if s.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", s.State())
	}

	items := drainQueue(s)
	if len(items) != 3 {
		t.Fatalf("expected started, one flushed container, completed; got %d items", len(items))
	}
	if items[1].Kind != ItemAudio {
		t.Fatalf("middle item should be audio, got %s", items[1].Kind)
	}

	info, pcm, err := audio.DecodeWAV(items[1].Audio)
	if err != nil {
		t.Fatalf("flushed container should decode: %v", err)
	}
	if info.DataSize != len(fragA)+len(fragB) {
		t.Errorf("expected %d bytes in flushed container, got %d", len(fragA)+len(fragB), info.DataSize)
	}
	if !bytes.Equal(pcm[:len(fragA)], fragA) {
		t.Error("flushed payload should preserve fragment order")
	}
}

func TestSession_ThresholdThenRemainder(t *testing.T) {
	// 8000 Hz at one second of buffer means a 16000-byte threshold.
	fragA := bytes.Repeat([]byte{0x01}, 16000)
	fragB := bytes.Repeat([]byte{0x02}, 1000)

	stream := newFakeStream(4)
	stream.script <- chunkMsg(fragA)
	stream.script <- chunkMsg(fragB)
	stream.script <- doneMsg()

	conn := &fakeConnector{stream: stream}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(Config{
		Text:          "Enough for two containers.",
		Connector:     conn,
		MaxChunkChars: 900,
		SampleRate:    8000,
		MinBuffer:     time.Second,
		Log:           logger,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.Start()
	s.wg.Wait()

	if st := s.Status(); st.ContainersEmitted != 2 {
		t.Fatalf("expected 2 containers (threshold hit plus flush), got %d", st.ContainersEmitted)
	}

	items := drainQueue(s)
	sizes := []int{len(fragA), len(fragB)}
	audioIdx := 0
	for _, item := range items {
		if item.Kind != ItemAudio {
			continue
		}
		info, _, err := audio.DecodeWAV(item.Audio)
		if err != nil {
			t.Fatalf("container %d should decode: %v", audioIdx, err)
		}
		if info.DataSize != sizes[audioIdx] {
			t.Errorf("container %d: expected %d bytes, got %d", audioIdx, sizes[audioIdx], info.DataSize)
		}
		audioIdx++
	}
	if audioIdx != 2 {
		t.Fatalf("expected 2 audio items, got %d", audioIdx)
	}
}

func TestSession_VoicePassthrough(t *testing.T) {
	stream := newFakeStream(2)
	stream.script <- doneMsg()

	conn := &fakeConnector{stream: stream}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(Config{
		Text:          "Different narrator.",
		VoiceID:       "voice-override",
		Connector:     conn,
		MaxChunkChars: 900,
		SampleRate:    8000,
		Log:           logger,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.Start()
	s.wg.Wait()

	contextID, voiceID := conn.connectedWith()
	if voiceID != "voice-override" {
		t.Errorf("expected voice override to reach the connector, got %q", voiceID)
	}
	if contextID != s.contextID {
		t.Errorf("connector should receive the session context id")
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	stream := newFakeStream(2)
	stream.script <- doneMsg()

	conn := &fakeConnector{stream: stream}
	s := newTestSession(t, "Close me twice.", conn)
	s.Start()
	s.Close()
	s.Close()

	if !s.State().Terminal() {
		t.Errorf("session should be terminal after Close, got %s", s.State())
	}
}
