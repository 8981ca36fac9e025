package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/voxread/voxread/internal/audio"
	"github.com/voxread/voxread/internal/dto"
)

const pollInterval = 800 * time.Millisecond

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	passageID := flag.String("passage", "", "passage id to read (see /v1/passages)")
	text := flag.String("text", "", "raw text to read instead of a passage")
	voiceID := flag.String("voice", "", "override the configured voice")
	outDir := flag.String("out", ".", "directory for part-NNN.wav files")
	flag.Parse()

	if (*passageID == "") == (*text == "") {
		log.Fatal("exactly one of -passage or -text is required")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal("create output dir:", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	sessionID := startSession(client, *addr, dto.StartSessionRequest{
		PassageID: *passageID,
		Text:      *text,
		VoiceID:   *voiceID,
	})
	fmt.Println("session:", sessionID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("cancelling...")
		cancelSession(client, *addr, sessionID)
	}()

	part := 0
	for {
		item, ok := pollNext(client, *addr, sessionID)
		if !ok {
			time.Sleep(pollInterval)
			continue
		}

		switch item.Kind {
		case "started":
			fmt.Println("synthesis started")
		case "audio":
			path := writePart(item, *outDir, part)
			part++
			fmt.Println("wrote", path)
		case "completed":
			fmt.Printf("completed: %d parts\n", part)
			return
		case "cancelled":
			fmt.Println("cancelled")
			os.Exit(1)
		case "failed":
			fmt.Println("failed:", item.Cause)
			os.Exit(1)
		default:
			fmt.Println("unknown item kind:", item.Kind)
		}
	}
}

func startSession(client *http.Client, addr string, req dto.StartSessionRequest) string {
	body, err := json.Marshal(req)
	if err != nil {
		log.Fatal("encode request:", err)
	}

	resp, err := client.Post(addr+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal("start session:", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		fatalAPIError("start session", resp)
	}

	var session dto.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		log.Fatal("decode session:", err)
	}
	return session.SessionID
}

func pollNext(client *http.Client, addr, sessionID string) (dto.QueueItemResponse, bool) {
	resp, err := client.Get(addr + "/v1/sessions/" + sessionID + "/next")
	if err != nil {
		log.Fatal("poll:", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return dto.QueueItemResponse{}, false
	case http.StatusOK:
	default:
		fatalAPIError("poll", resp)
	}

	var item dto.QueueItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		log.Fatal("decode item:", err)
	}
	return item, true
}

func writePart(item dto.QueueItemResponse, outDir string, part int) string {
	container, err := base64.StdEncoding.DecodeString(item.Audio)
	if err != nil {
		log.Fatal("decode audio:", err)
	}

	path := filepath.Join(outDir, fmt.Sprintf("part-%03d.wav", part))
	if err := os.WriteFile(path, container, 0o644); err != nil {
		log.Fatal("write part:", err)
	}

	info, _, err := audio.DecodeWAV(container)
	if err != nil {
		log.Fatal("parse container:", err)
	}
	fmt.Printf("part %03d: %s @ %d Hz\n", part, info.Duration().Round(time.Millisecond), info.SampleRate)
	return path
}

// fatalAPIError unwraps the {"message": {code, message}} error envelope.
func fatalAPIError(op string, resp *http.Response) {
	data, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Message dto.ErrorResponse `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Message.Message != "" {
		log.Fatalf("%s: %s (%s)", op, envelope.Message.Message, envelope.Message.Code)
	}
	log.Fatalf("%s: status=%d body=%s", op, resp.StatusCode, string(data))
}

func cancelSession(client *http.Client, addr, sessionID string) {
	req, err := http.NewRequest(http.MethodDelete, addr+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		log.Fatal("cancel request:", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatal("cancel:", err)
	}
	resp.Body.Close()
}
