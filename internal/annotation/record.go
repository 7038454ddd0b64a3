package annotation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/icco/riffloop/internal/grid"
)

// ChordMap is the session record shape of the chord track: bar key to one
// chord per segment.
type ChordMap map[string][]string

// TabMap is the session record shape of the tab track: bar key to one slot
// row per string.
type TabMap map[string][][]string

// Record converts the store to the session record shape. Every chord entry
// has SegmentsPerBar items and every tab entry has Strings rows.
func (s *Store) Record() (ChordMap, TabMap) {
	chords := ChordMap{}
	for k, text := range s.chords {
		key := k.Bar.String()
		row, ok := chords[key]
		if !ok {
			row = make([]string, grid.SegmentsPerBar)
			chords[key] = row
		}
		row[k.Segment] = text
	}

	tabs := TabMap{}
	for k, row := range s.tabs {
		key := k.Bar.String()
		rows, ok := tabs[key]
		if !ok {
			rows = make([][]string, grid.Strings)
			for i := range rows {
				rows[i] = []string{}
			}
			tabs[key] = rows
		}
		rows[k.String] = slices.Clone(row)
	}
	return chords, tabs
}

// FromRecord builds a store from the session record shape. Malformed keys
// and out-of-range positions are skipped and reported together.
func FromRecord(chords ChordMap, tabs TabMap) (*Store, error) {
	s := New()
	var bad []string

	for key, row := range chords {
		bar, err := ParseKey(key)
		if err != nil {
			bad = append(bad, key)
			continue
		}
		for seg, text := range row {
			if seg >= grid.SegmentsPerBar {
				bad = append(bad, fmt.Sprintf("%s[%d]", key, seg))
				break
			}
			if text = strings.TrimSpace(text); text != "" {
				s.chords[ChordKey{bar, seg}] = text
			}
		}
	}

	for key, rows := range tabs {
		bar, err := ParseKey(key)
		if err != nil {
			bad = append(bad, key)
			continue
		}
		for str, row := range rows {
			if str >= grid.Strings {
				bad = append(bad, fmt.Sprintf("%s[%d]", key, str))
				break
			}
			row = slices.Clone(row)
			for slot, cell := range row {
				if ValidateTab(cell) != nil {
					bad = append(bad, fmt.Sprintf("%s[%d][%d]", key, str, slot))
					row[slot] = ""
				} else if cell == " " {
					row[slot] = ""
				}
			}
			if !blank(row) {
				s.tabs[TabKey{bar, str}] = row
			}
		}
	}

	if len(bad) > 0 {
		slices.Sort(bad)
		return s, fmt.Errorf("skipped annotations %s", strings.Join(bad, ", "))
	}
	return s, nil
}

// UnmarshalJSON accepts both the current shape and the legacy one where a
// chord entry is a single string.
func (m *ChordMap) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out, err := ChordsFromRaw(raw)
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// UnmarshalYAML accepts both the current shape and the legacy one.
func (m *ChordMap) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out, err := ChordsFromRaw(raw)
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// UnmarshalJSON accepts both the current shape and the legacy one keyed by
// "bar:string".
func (m *TabMap) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out, err := TabsFromRaw(raw)
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// UnmarshalYAML accepts both the current shape and the legacy one.
func (m *TabMap) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out, err := TabsFromRaw(raw)
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// ChordsFromRaw converts a generically decoded chord map. A legacy entry
// holding one string becomes the chord of the bar's first segment.
func ChordsFromRaw(raw map[string]any) (ChordMap, error) {
	out := ChordMap{}
	for key, v := range raw {
		switch v := v.(type) {
		case nil:
		case string:
			row := make([]string, grid.SegmentsPerBar)
			row[0] = v
			out[key] = row
		case []any:
			row, err := toStrings(v)
			if err != nil {
				return nil, fmt.Errorf("chords %s: %w", key, err)
			}
			out[key] = row
		default:
			return nil, fmt.Errorf("chords %s: unexpected %T", key, v)
		}
	}
	return out, nil
}

// TabsFromRaw converts a generically decoded tab map. Legacy entries are
// keyed "bar:string" and hold one row; they are folded into the bar's rows.
func TabsFromRaw(raw map[string]any) (TabMap, error) {
	out := TabMap{}
	legacy := map[string]any{}
	for key, v := range raw {
		if strings.Contains(key, ":") {
			legacy[key] = v
			continue
		}
		list, ok := v.([]any)
		if !ok {
			if v == nil {
				continue
			}
			return nil, fmt.Errorf("tabs %s: unexpected %T", key, v)
		}
		rows := make([][]string, len(list))
		for i, r := range list {
			rr, _ := r.([]any)
			if r != nil && rr == nil {
				return nil, fmt.Errorf("tabs %s[%d]: unexpected %T", key, i, r)
			}
			row, err := toStrings(rr)
			if err != nil {
				return nil, fmt.Errorf("tabs %s[%d]: %w", key, i, err)
			}
			rows[i] = row
		}
		out[key] = rows
	}

	// Sorted so a legacy row never depends on map order when it collides with
	// a current-shape entry.
	keys := maps.Keys(legacy)
	slices.Sort(keys)
	for _, key := range keys {
		bar, str, ok := strings.Cut(key, ":")
		n, err := strconv.Atoi(str)
		if !ok || err != nil || n < 0 || n >= grid.Strings {
			return nil, fmt.Errorf("tabs: bad legacy key %q", key)
		}
		list, _ := legacy[key].([]any)
		row, err := toStrings(list)
		if err != nil {
			return nil, fmt.Errorf("tabs %s: %w", key, err)
		}
		rows := out[bar]
		for len(rows) < grid.Strings {
			rows = append(rows, []string{})
		}
		if blank(rows[n]) {
			rows[n] = row
		}
		out[bar] = rows
	}
	return out, nil
}

// toStrings converts a decoded list of scalars. Numbers are allowed since a
// fret written without quotes decodes as one.
func toStrings(list []any) ([]string, error) {
	out := make([]string, len(list))
	for i, v := range list {
		switch v := v.(type) {
		case nil:
		case string:
			out[i] = v
		case int:
			out[i] = strconv.Itoa(v)
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("item %d: unexpected %T", i, v)
		}
	}
	return out, nil
}
