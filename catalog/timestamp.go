package catalog

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LegacyLayout is the timestamp layout found in catalogs written by the older
// publishing script.
const LegacyLayout = "2006-01-02 15:04:05.000000000 -07:00"

// layouts are tried in order when reading a date value.
var layouts = []string{
	LegacyLayout,
	"2006-01-02 15:04:05.999999999 Z07:00", // UTC is written as " Z"
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp is a capture date that remembers the exact text it was read from,
// so an unmodified catalog is written back with identical date values.
type Timestamp struct {
	t   time.Time
	raw string
}

// NewTimestamp wraps t for a new record; it is written in RFC 3339.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{t: t, raw: t.Format(time.RFC3339)}
}

// ParseTimestamp parses s using any of the known layouts.
func ParseTimestamp(s string) (*Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &Timestamp{t: t, raw: s}, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}

// Time returns the parsed instant.
func (ts *Timestamp) Time() time.Time { return ts.t }

func (ts *Timestamp) String() string {
	if ts == nil {
		return "null"
	}
	return ts.raw
}

// Equal reports whether both timestamps denote the same instant.
func (ts *Timestamp) Equal(other *Timestamp) bool {
	if ts == nil || other == nil {
		return ts == other
	}
	return ts.t.Equal(other.t)
}

func (ts *Timestamp) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: date must be a scalar", node.Line)
	}
	parsed, err := ParseTimestamp(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*ts = *parsed
	return nil
}

// MarshalYAML emits the stored text as an untagged plain scalar.
func (ts *Timestamp) MarshalYAML() (interface{}, error) {
	if ts == nil {
		return nil, nil
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: ts.raw}, nil
}
