// Package engine defines the playback device contract the practice session
// drives.
package engine

import (
	"context"
	"fmt"
	"math"
)

const (
	MinZoom = 5.0
	MaxZoom = 500.0
)

// ClampZoom maps z into {0} ∪ [MinZoom, MaxZoom]. 0 means fit to view; any
// non-positive value is treated as such.
func ClampZoom(z float64) float64 {
	switch {
	case z <= 0 || math.IsNaN(z):
		return 0
	case z < MinZoom:
		return MinZoom
	case z > MaxZoom:
		return MaxZoom
	default:
		return z
	}
}

// State is a snapshot of the transport.
type State struct {
	CurrentTime float64
	Duration    float64
	Playing     bool
	Zoom        float64
}

// Player is a loaded audio track with a transport.
type Player interface {
	// Load resolves ref and starts loading it. Ready or Error follows as an
	// Event.
	Load(ctx context.Context, ref string) error
	Play() error
	Pause()
	Seek(seconds float64)
	CurrentTime() float64
	Duration() float64
	Playing() bool
	// Zoom sets pixels per second for the waveform view.
	Zoom(pxPerSecond float64)
	ZoomLevel() float64
	Close() error
}

// Snapshot reads the transport state from p.
func Snapshot(p Player) State {
	return State{
		CurrentTime: p.CurrentTime(),
		Duration:    p.Duration(),
		Playing:     p.Playing(),
		Zoom:        p.ZoomLevel(),
	}
}

// EventKind identifies a player notification.
type EventKind int

const (
	Ready EventKind = iota
	TimeUpdate
	PlayState
	Finished
	Error
)

func (k EventKind) String() string {
	switch k {
	case Ready:
		return "ready"
	case TimeUpdate:
		return "time-update"
	case PlayState:
		return "play-state"
	case Finished:
		return "finished"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a notification from a Player. Only the fields for its Kind are
// set: Duration for Ready, Time for TimeUpdate, Playing for PlayState and Err
// for Error.
type Event struct {
	Kind     EventKind
	Duration float64
	Time     float64
	Playing  bool
	Err      error
}

func (e Event) String() string {
	switch e.Kind {
	case Ready:
		return fmt.Sprintf("ready(%.3f)", e.Duration)
	case TimeUpdate:
		return fmt.Sprintf("time(%.3f)", e.Time)
	case PlayState:
		return fmt.Sprintf("playing(%v)", e.Playing)
	case Error:
		return fmt.Sprintf("error(%v)", e.Err)
	default:
		return e.Kind.String()
	}
}

// Notify receives player events. Players may call it from any goroutine; the
// receiver is responsible for moving the event to its owner goroutine.
type Notify func(Event)

// RegionEventKind identifies a region-drag notification.
type RegionEventKind int

const (
	RegionCreated RegionEventKind = iota
	RegionUpdated
	RegionRemoved
)

func (k RegionEventKind) String() string {
	switch k {
	case RegionCreated:
		return "created"
	case RegionUpdated:
		return "updated"
	case RegionRemoved:
		return "removed"
	default:
		return fmt.Sprintf("region-event(%d)", int(k))
	}
}

// RegionEvent reports a drag-select or drag-resize on the timeline.
type RegionEvent struct {
	Kind       RegionEventKind
	Start, End float64
}

// Provider opens players for track references.
type Provider interface {
	Open(notify Notify) (Player, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(notify Notify) (Player, error)

func (f ProviderFunc) Open(notify Notify) (Player, error) { return f(notify) }
