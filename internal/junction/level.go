// Package junction holds the curated skeletal graph of a panicle: junction
// points partitioned by topological level and the edges connecting them.
package junction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLevel is returned for level names outside the fixed vocabulary.
var ErrInvalidLevel = errors.New("invalid junction level")

// Level is the topological level of a junction.
type Level int

const (
	Generating Level = iota
	Terminal
	Primary
	Secondary
	Tertiary
	Quaternary
)

var levelNames = [...]string{
	Generating: "generating",
	Terminal:   "terminal",
	Primary:    "primary",
	Secondary:  "secondary",
	Tertiary:   "tertiary",
	Quaternary: "quaternary",
}

// aliases maps spellings found in exported graph files onto levels.
var aliases = map[string]Level{
	"end":      Terminal,
	"seconday": Secondary,
}

// Levels returns every level in canonical order.
func Levels() []Level {
	return []Level{Generating, Terminal, Primary, Secondary, Tertiary, Quaternary}
}

// Valid reports whether l is part of the vocabulary.
func (l Level) Valid() bool {
	return l >= Generating && l <= Quaternary
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a case-insensitive level name onto a Level.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	if l, ok := aliases[name]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
