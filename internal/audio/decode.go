package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Decode reads a WAV or MP3 file, chosen by name's extension, into 16-bit
// little-endian stereo PCM at SampleRate.
func Decode(r io.ReadSeeker, name string) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".wav", ".wave":
		return decodeWAV(r)
	case ".mp3":
		return decodeMP3(r)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", ext)
	}
}

func decodeWAV(r io.ReadSeeker) ([]byte, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("read WAV header: %w", err)
	}
	format := d.Format()
	bitDepth := int(d.SampleBitDepth())
	if bitDepth == 0 || format == nil || format.NumChannels == 0 {
		return nil, fmt.Errorf("WAV file has no usable format")
	}
	bytesPerSample := (bitDepth-1)/8 + 1
	buf := &goaudio.IntBuffer{
		Format:         format,
		Data:           make([]int, int(d.PCMLen())/bytesPerSample),
		SourceBitDepth: bitDepth,
	}
	n, err := d.PCMBuffer(buf)
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}
	buf.Data = buf.Data[:n]

	pcm := intsToStereo16(buf.Data, format.NumChannels, bitDepth)
	return resample(pcm, format.SampleRate, SampleRate), nil
}

func decodeMP3(r io.ReadSeeker) ([]byte, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode MP3: %w", err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("decode MP3: %w", err)
	}
	pcm = pcm[:len(pcm)/frameSize*frameSize]
	return resample(pcm, d.SampleRate(), SampleRate), nil
}

// intsToStereo16 converts interleaved integer samples of any bit depth to
// 16-bit stereo. Mono is duplicated; channels past the second are dropped.
func intsToStereo16(data []int, channels, bitDepth int) []byte {
	frames := len(data) / channels
	out := make([]byte, frames*frameSize)
	for i := 0; i < frames; i++ {
		l := to16(data[i*channels], bitDepth)
		r := l
		if channels > 1 {
			r = to16(data[i*channels+1], bitDepth)
		}
		binary.LittleEndian.PutUint16(out[i*frameSize:], uint16(l))
		binary.LittleEndian.PutUint16(out[i*frameSize+2:], uint16(r))
	}
	return out
}

func to16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		// 8-bit WAV is unsigned.
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	case bitDepth < 16:
		return int16(v << (16 - bitDepth))
	default:
		return int16(v)
	}
}

// resample converts 16-bit stereo PCM between sample rates with linear
// interpolation.
func resample(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 {
		return pcm
	}
	inFrames := len(pcm) / frameSize
	if inFrames == 0 {
		return pcm
	}
	outFrames := int(math.Round(float64(inFrames) * float64(to) / float64(from)))
	out := make([]byte, outFrames*frameSize)
	step := float64(from) / float64(to)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)
		k := min(j+1, inFrames-1)
		j = min(j, inFrames-1)
		for ch := 0; ch < channelCount; ch++ {
			a := float64(sampleAt(pcm, j, ch))
			b := float64(sampleAt(pcm, k, ch))
			v := int16(math.Round(a + (b-a)*frac))
			binary.LittleEndian.PutUint16(out[i*frameSize+ch*sampleBytes:], uint16(v))
		}
	}
	return out
}

func sampleAt(pcm []byte, frame, ch int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[frame*frameSize+ch*sampleBytes:]))
}
