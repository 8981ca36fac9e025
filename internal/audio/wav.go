package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/voxread/voxread/internal/shared"
)

const wavHeaderSize = 44

type WAVInfo struct {
	Channels   int
	SampleRate int
	BitDepth   int
	DataSize   int
}

func (w WAVInfo) Samples() int {
	frame := w.Channels * w.BitDepth / 8
	if frame <= 0 {
		return 0
	}
	return w.DataSize / frame
}

func (w WAVInfo) Duration() time.Duration {
	byteRate := w.SampleRate * w.Channels * w.BitDepth / 8
	if byteRate <= 0 {
		return 0
	}
	return time.Duration(w.DataSize) * time.Second / time.Duration(byteRate)
}

// EncodeWAV wraps raw little-endian 16-bit PCM in a 44-byte WAV container.
// A trailing odd byte is dropped so the payload stays whole-sample sized.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	writeWAVHeader(buf, len(pcm), sampleRate, channels)
	buf.Write(pcm)
	return buf.Bytes()
}

func writeWAVHeader(buf *bytes.Buffer, dataSize, sampleRate, channels int) {
	byteRate := sampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
}

// DecodeWAV parses a container produced by EncodeWAV back into its format
// description and raw PCM payload.
func DecodeWAV(container []byte) (WAVInfo, []byte, error) {
	if len(container) < wavHeaderSize {
		return WAVInfo{}, nil, fmt.Errorf("%w: container too short (%d bytes)", shared.ErrDecode, len(container))
	}
	if string(container[0:4]) != "RIFF" || string(container[8:12]) != "WAVE" {
		return WAVInfo{}, nil, fmt.Errorf("%w: missing RIFF/WAVE markers", shared.ErrDecode)
	}
	if string(container[12:16]) != "fmt " {
		return WAVInfo{}, nil, fmt.Errorf("%w: missing fmt chunk", shared.ErrDecode)
	}
	if format := binary.LittleEndian.Uint16(container[20:]); format != 1 {
		return WAVInfo{}, nil, fmt.Errorf("%w: unsupported audio format %d", shared.ErrDecode, format)
	}
	if string(container[36:40]) != "data" {
		return WAVInfo{}, nil, fmt.Errorf("%w: missing data chunk", shared.ErrDecode)
	}

	info := WAVInfo{
		Channels:   int(binary.LittleEndian.Uint16(container[22:])),
		SampleRate: int(binary.LittleEndian.Uint32(container[24:])),
		BitDepth:   int(binary.LittleEndian.Uint16(container[34:])),
		DataSize:   int(binary.LittleEndian.Uint32(container[40:])),
	}
	if info.Channels <= 0 || info.SampleRate <= 0 || info.BitDepth <= 0 {
		return WAVInfo{}, nil, fmt.Errorf("%w: invalid format parameters", shared.ErrDecode)
	}

	payload := container[wavHeaderSize:]
	if info.DataSize != len(payload) {
		return WAVInfo{}, nil, fmt.Errorf("%w: declared payload %d bytes, have %d", shared.ErrDecode, info.DataSize, len(payload))
	}
	return info, payload, nil
}
