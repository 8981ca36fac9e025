package audio

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/voxread/voxread/internal/shared"
)

// Assembler accumulates raw PCM fragments in receipt order and wraps the
// whole buffer into a WAV container once a minimum playable duration has
// been buffered. Accounting is byte-exact; sample-pair alignment across
// fragment boundaries is not enforced.
type Assembler struct {
	sampleRate    int
	channels      int
	minChunkBytes int
	buf           []byte
	received      int
}

func NewAssembler(sampleRate int, minBuffer time.Duration) *Assembler {
	minBytes := int(math.Ceil(minBuffer.Seconds() * float64(sampleRate) * bytesPerSample))
	if minBytes < 1 {
		minBytes = 1
	}
	return &Assembler{
		sampleRate:    sampleRate,
		channels:      1,
		minChunkBytes: minBytes,
	}
}

// Offer decodes one base64 fragment, appends it to the buffer, and returns
// a finished container when the buffered size has reached the minimum.
// It returns nil while more audio is still needed.
func (a *Assembler) Offer(data string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: fragment is not valid base64: %v", shared.ErrDecode, err)
	}
	a.buf = append(a.buf, pcm...)
	a.received += len(pcm)
	if len(a.buf) < a.minChunkBytes {
		return nil, nil
	}
	return a.wrap(), nil
}

// Flush wraps whatever remains regardless of size, nil when the buffer is
// empty. Called once at session end.
func (a *Assembler) Flush() []byte {
	if len(a.buf) == 0 {
		return nil
	}
	return a.wrap()
}

func (a *Assembler) wrap() []byte {
	container := EncodeWAV(a.buf, a.sampleRate, a.channels)
	a.buf = a.buf[:0]
	return container
}

func (a *Assembler) Buffered() int {
	return len(a.buf)
}

// Received is the total decoded byte count across all offers.
func (a *Assembler) Received() int {
	return a.received
}

func (a *Assembler) MinChunkBytes() int {
	return a.minChunkBytes
}
