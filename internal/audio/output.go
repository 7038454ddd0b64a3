// Package audio plays practice tracks and metronome clicks through oto.
package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
)

const (
	// SampleRate is the output rate. Tracks are resampled to it on load.
	SampleRate     = 44100
	channelCount   = 2 // stereo
	sampleBytes    = 2 // 16-bit
	frameSize      = channelCount * sampleBytes
	bytesPerSecond = SampleRate * frameSize
)

// Output owns the process-wide oto context. oto allows only one, so the
// track engine and the click synth share it.
type Output struct {
	mu  sync.Mutex
	ctx *oto.Context
}

// NewOutput returns an output that opens the device on first use.
func NewOutput() *Output {
	return &Output{}
}

// Context opens the audio device once and returns it.
func (o *Output) Context() (*oto.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		return o.ctx, nil
	}
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready
	o.ctx = ctx
	return ctx, nil
}

// NewPlayer creates an oto player reading from r.
func (o *Output) NewPlayer(r io.Reader) (*oto.Player, error) {
	ctx, err := o.Context()
	if err != nil {
		return nil, err
	}
	return ctx.NewPlayer(r), nil
}

// stream is a seekable reader over decoded PCM. oto reads it from its own
// goroutine while the engine seeks from the session's.
type stream struct {
	mu  sync.Mutex
	pcm []byte
	pos int64
}

func newStream(pcm []byte) *stream {
	return &stream{pcm: pcm}
}

func (s *stream) Read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= int64(len(s.pcm)) {
		return 0, io.EOF
	}
	n := copy(buf, s.pcm[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *stream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += s.pos
	case io.SeekEnd:
		offset += int64(len(s.pcm))
	default:
		return 0, fmt.Errorf("bad whence %d", whence)
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative position %d", offset)
	}
	s.pos = min(offset, int64(len(s.pcm)))
	return s.pos, nil
}

// Position returns the read offset in bytes.
func (s *stream) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Len returns the stream length in bytes.
func (s *stream) Len() int64 {
	return int64(len(s.pcm))
}

// secondsToOffset returns the frame-aligned byte offset of t.
func secondsToOffset(t float64) int64 {
	if t <= 0 {
		return 0
	}
	return int64(t*SampleRate) * frameSize
}

// offsetToSeconds converts a byte offset to seconds.
func offsetToSeconds(off int64) float64 {
	if off <= 0 {
		return 0
	}
	return float64(off) / bytesPerSecond
}
