package audio

import (
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

const (
	clickFreq      = 1000.0
	accentFreq     = 1500.0
	clickDecay     = 0.9985 // per sample
	clickMaxVoices = 8
	clickHeadroom  = 0.5
	silenceFloor   = 0.001
)

// voice is a single ringing click.
type voice struct {
	frequency float64
	phase     float64
	envelope  float64
	gain      float64
	active    bool
}

// ClickSynth renders metronome clicks as short decaying sine bursts on a
// continuously running oto player.
type ClickSynth struct {
	mu     sync.Mutex
	player *oto.Player
	voices []*voice
}

// NewClickSynth starts a click stream on out.
func NewClickSynth(out *Output) (*ClickSynth, error) {
	s := &ClickSynth{}
	p, err := out.NewPlayer(&clickReader{synth: s})
	if err != nil {
		return nil, err
	}
	s.player = p
	p.Play()
	return s, nil
}

// clickReader implements io.Reader for continuous click generation.
type clickReader struct {
	synth *ClickSynth
}

func (r *clickReader) Read(buf []byte) (int, error) {
	r.synth.render(buf)
	return len(buf), nil
}

func (s *ClickSynth) render(buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(buf) / frameSize
	for i := 0; i < frames; i++ {
		var sample float64
		for _, v := range s.voices {
			if !v.active {
				continue
			}
			sample += math.Sin(2*math.Pi*v.phase) * v.envelope * v.gain

			v.phase += v.frequency / SampleRate
			if v.phase >= 1.0 {
				v.phase -= 1.0
			}
			v.envelope *= clickDecay
			if v.envelope < silenceFloor {
				v.active = false
			}
		}

		sample *= clickHeadroom
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}

		v := int16(sample * 32767)
		idx := i * frameSize
		buf[idx] = byte(v)
		buf[idx+1] = byte(v >> 8)
		buf[idx+2] = byte(v)
		buf[idx+3] = byte(v >> 8)
	}
}

// Click starts a click. Accented clicks are pitched higher. volume is the
// linear gain, 0 silences the click.
func (s *ClickSynth) Click(accent bool, volume float64) {
	if volume <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var v *voice
	for _, cand := range s.voices {
		if !cand.active {
			v = cand
			break
		}
	}
	if v == nil {
		if len(s.voices) < clickMaxVoices {
			v = &voice{}
			s.voices = append(s.voices, v)
		} else {
			// Steal the quietest.
			v = s.voices[0]
			for _, cand := range s.voices[1:] {
				if cand.envelope < v.envelope {
					v = cand
				}
			}
		}
	}

	v.frequency = clickFreq
	if accent {
		v.frequency = accentFreq
	}
	v.phase = 0
	v.envelope = 1
	v.gain = volume
	v.active = true
}

// Silence cuts all ringing clicks.
func (s *ClickSynth) Silence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voices {
		v.active = false
	}
}

// Close stops the click stream.
func (s *ClickSynth) Close() error {
	s.Silence()
	if s.player != nil {
		s.player.Pause()
	}
	return nil
}
