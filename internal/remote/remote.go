// Package remote maps a MIDI foot controller onto practice actions.
package remote

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"github.com/icco/riffloop/internal/region"
)

// SeekStep is how far SeekBack and SeekForward move the playhead.
const SeekStep = 5.0

// Action is something a pedal press does.
type Action int

const (
	None Action = iota
	TogglePlay
	MarkStart
	MarkEnd
	ClearRegion
	ToggleMetronome
	SeekBack
	SeekForward
	NudgeStartBack
	NudgeStartForward
	NudgeEndBack
	NudgeEndForward
)

var actionNames = map[Action]string{
	None:              "none",
	TogglePlay:        "toggle-play",
	MarkStart:         "mark-start",
	MarkEnd:           "mark-end",
	ClearRegion:       "clear-region",
	ToggleMetronome:   "toggle-metronome",
	SeekBack:          "seek-back",
	SeekForward:       "seek-forward",
	NudgeStartBack:    "nudge-start-back",
	NudgeStartForward: "nudge-start-forward",
	NudgeEndBack:      "nudge-end-back",
	NudgeEndForward:   "nudge-end-forward",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	for a, n := range actionNames {
		if n == s {
			return a, nil
		}
	}
	return None, fmt.Errorf("unknown action %q", s)
}

// TriggerKind is the MIDI message type a trigger matches.
type TriggerKind int

const (
	Note TriggerKind = iota
	CC
)

// AnyChannel matches a trigger on every channel.
const AnyChannel = -1

// Trigger identifies a pedal: a note or controller number, optionally on one
// channel (zero based).
type Trigger struct {
	Kind    TriggerKind
	Number  uint8
	Channel int
}

func (t Trigger) String() string {
	kind := "note"
	if t.Kind == CC {
		kind = "cc"
	}
	s := fmt.Sprintf("%s:%d", kind, t.Number)
	if t.Channel != AnyChannel {
		s += fmt.Sprintf("/%d", t.Channel+1)
	}
	return s
}

// ParseTrigger reads "note:60", "cc:64" or "cc:64/2". Channels are written
// one based, as on the hardware.
func ParseTrigger(s string) (Trigger, error) {
	t := Trigger{Channel: AnyChannel}
	kind, rest, ok := strings.Cut(strings.TrimSpace(strings.ToLower(s)), ":")
	if !ok {
		return t, fmt.Errorf("trigger %q: want kind:number", s)
	}
	switch kind {
	case "note":
		t.Kind = Note
	case "cc":
		t.Kind = CC
	default:
		return t, fmt.Errorf("trigger %q: unknown kind %q", s, kind)
	}
	num, ch, hasCh := strings.Cut(rest, "/")
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 || n > 127 {
		return t, fmt.Errorf("trigger %q: bad number", s)
	}
	t.Number = uint8(n)
	if hasCh {
		c, err := strconv.Atoi(ch)
		if err != nil || c < 1 || c > 16 {
			return t, fmt.Errorf("trigger %q: bad channel", s)
		}
		t.Channel = c - 1
	}
	return t, nil
}

// Mapping binds triggers to actions.
type Mapping map[Trigger]Action

// DefaultMapping suits a sustain pedal plus a row of note pads.
func DefaultMapping() Mapping {
	on := func(k TriggerKind, n uint8) Trigger { return Trigger{Kind: k, Number: n, Channel: AnyChannel} }
	return Mapping{
		on(CC, 64):   TogglePlay,
		on(CC, 67):   ToggleMetronome,
		on(Note, 60): MarkStart,
		on(Note, 62): MarkEnd,
		on(Note, 64): ClearRegion,
		on(Note, 65): SeekBack,
		on(Note, 67): SeekForward,
		on(Note, 69): ToggleMetronome,
	}
}

// ParseMapping reads a trigger-to-action table such as the one in the config
// file.
func ParseMapping(raw map[string]string) (Mapping, error) {
	m := Mapping{}
	for trig, act := range raw {
		t, err := ParseTrigger(trig)
		if err != nil {
			return nil, err
		}
		a, err := ParseAction(act)
		if err != nil {
			return nil, fmt.Errorf("trigger %s: %w", trig, err)
		}
		m[t] = a
	}
	return m, nil
}

// Translate maps a raw MIDI message to an action. Only presses count: note on
// with a velocity, or a controller going to 64 or above.
func (m Mapping) Translate(data []byte) (Action, bool) {
	msg := midi.Message(data)
	var ch, num, val uint8
	var kind TriggerKind
	switch {
	case msg.GetNoteOn(&ch, &num, &val):
		if val == 0 {
			return None, false
		}
		kind = Note
	case msg.GetControlChange(&ch, &num, &val):
		if val < 64 {
			return None, false
		}
		kind = CC
	default:
		return None, false
	}

	if a, ok := m[Trigger{Kind: kind, Number: num, Channel: int(ch)}]; ok {
		return a, a != None
	}
	if a, ok := m[Trigger{Kind: kind, Number: num, Channel: AnyChannel}]; ok {
		return a, a != None
	}
	return None, false
}

// Target is what actions drive. *session.Session satisfies it.
type Target interface {
	TogglePlay() error
	MarkBoundary(which region.Boundary) (region.Region, error)
	ClearRegion() bool
	ToggleMetronome()
	SeekBy(delta float64)
	Nudge(which region.Boundary, delta float64) (region.Region, bool)
}

// Apply performs a on t.
func Apply(t Target, a Action) error {
	switch a {
	case TogglePlay:
		return t.TogglePlay()
	case MarkStart:
		_, err := t.MarkBoundary(region.Start)
		return err
	case MarkEnd:
		_, err := t.MarkBoundary(region.End)
		return err
	case ClearRegion:
		t.ClearRegion()
	case ToggleMetronome:
		t.ToggleMetronome()
	case SeekBack:
		t.SeekBy(-SeekStep)
	case SeekForward:
		t.SeekBy(SeekStep)
	case NudgeStartBack:
		t.Nudge(region.Start, -region.FineStep)
	case NudgeStartForward:
		t.Nudge(region.Start, region.FineStep)
	case NudgeEndBack:
		t.Nudge(region.End, -region.FineStep)
	case NudgeEndForward:
		t.Nudge(region.End, region.FineStep)
	}
	return nil
}
