package audio

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const (
	drumChannel = 9 // channel 10, zero based
	clickNote   = 76
	accentNote  = 77
)

// MIDIClicker sends metronome clicks to a MIDI output as percussion notes,
// so a drum machine or DAW can play them.
type MIDIClicker struct {
	out  drivers.Out
	send func(msg midi.Message) error
}

// OpenMIDIClicker opens the first output port whose name contains name.
func OpenMIDIClicker(name string) (*MIDIClicker, error) {
	for _, out := range midi.GetOutPorts() {
		if !strings.Contains(strings.ToLower(out.String()), strings.ToLower(name)) {
			continue
		}
		send, err := midi.SendTo(out)
		if err != nil {
			return nil, fmt.Errorf("failed to open port %s: %w", out.String(), err)
		}
		return &MIDIClicker{out: out, send: send}, nil
	}
	return nil, fmt.Errorf("no MIDI output matching %q", name)
}

// Click sends a note on and its note off. Volume maps to velocity.
func (c *MIDIClicker) Click(accent bool, volume float64) {
	vel := velocity(volume)
	if vel == 0 || c.send == nil {
		return
	}
	note := uint8(clickNote)
	if accent {
		note = accentNote
	}
	_ = c.send(midi.NoteOn(drumChannel, note, vel))
	_ = c.send(midi.NoteOff(drumChannel, note))
}

// Close releases the port.
func (c *MIDIClicker) Close() error {
	if c.out == nil {
		return nil
	}
	err := c.out.Close()
	c.out = nil
	c.send = nil
	return err
}

// velocity maps a click volume in [0,2] onto MIDI velocity, 1 being 100.
func velocity(volume float64) uint8 {
	if volume <= 0 {
		return 0
	}
	v := int(volume*100 + 0.5)
	return uint8(min(max(v, 1), 127)) //nolint:gosec // clamped to 1..127
}

// Clickers fans one click out to several sinks.
type Clickers []interface {
	Click(accent bool, volume float64)
}

func (cs Clickers) Click(accent bool, volume float64) {
	for _, c := range cs {
		c.Click(accent, volume)
	}
}
