// Package store persists practice sessions.
package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/icco/riffloop/internal/annotation"
)

// ErrNotFound is returned for an unknown session id. It carries the
// ftag.NotFound tag.
var ErrNotFound = errors.New("session not found")

// ErrBadID is returned for ids that cannot name a session.
var ErrBadID = errors.New("invalid session id")

// Record is the flat, persisted shape of a session. Nil optional fields are
// unset, never zero.
type Record struct {
	SourceRef     string              `json:"sourceRef" yaml:"source_ref"`
	Title         string              `json:"title,omitempty" yaml:"title,omitempty"`
	Notes         string              `json:"notes,omitempty" yaml:"notes,omitempty"`
	BPM           *int                `json:"bpm,omitempty" yaml:"bpm,omitempty"`
	BeatsPerBar   *int                `json:"beatsPerBar,omitempty" yaml:"beats_per_bar,omitempty"`
	OffsetSeconds *float64            `json:"offsetSeconds,omitempty" yaml:"offset_seconds,omitempty"`
	ClickVolume   *float64            `json:"clickVolume,omitempty" yaml:"click_volume,omitempty"`
	Chords        annotation.ChordMap `json:"chords,omitempty" yaml:"chords,omitempty"`
	Tabs          annotation.TabMap   `json:"tabs,omitempty" yaml:"tabs,omitempty"`
	UpdatedAt     time.Time           `json:"updatedAt" yaml:"updated_at"`
}

// Summary is one entry of a session listing.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	SourceRef string    `json:"sourceRef"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store loads and saves session records by id.
type Store interface {
	Load(ctx context.Context, id string) (Record, error)
	Save(ctx context.Context, id string, rec Record) error
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidID reports whether id can name a session.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func checkID(id string) error {
	if !ValidID(id) {
		return fault.Wrap(ErrBadID,
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("bad id "+id, "Session ids may only use letters, digits, '.', '_' and '-'."))
	}
	return nil
}

func notFound(id string) error {
	return fault.Wrap(ErrNotFound,
		ftag.With(ftag.NotFound),
		fmsg.WithDesc("load "+id, "No saved session named "+id+"."))
}

func summarize(id string, rec Record) Summary {
	return Summary{ID: id, Title: rec.Title, SourceRef: rec.SourceRef, UpdatedAt: rec.UpdatedAt}
}
