package flow

import (
	"fmt"
	"time"
)

var levelNames map[Level]string
var namedLevels map[string]Level

func init() {
	levelNames = map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelError: "ERROR",
	}

	namedLevels = make(map[string]Level, len(levelNames))
	for k, v := range levelNames {
		namedLevels[v] = k
	}
}

// LevelFromString parses a trace level from a string
func LevelFromString(name string) (Level, error) {
	if v, ok := namedLevels[name]; ok {
		return v, nil
	}
	return LevelDebug, fmt.Errorf("invalid trace level %q", name)
}

// Level classifies a trace event
type Level uint8

const (
	// LevelDebug is for events that only matter when debugging a run
	LevelDebug Level = iota
	// LevelInfo is for regular lifecycle events
	LevelInfo
	// LevelError is for failures
	LevelError
)

func (l Level) String() string {
	return levelNames[l]
}

// MarshalText renders this level to text
func (l Level) MarshalText() (text []byte, err error) {
	return []byte(levelNames[l]), nil
}

// UnmarshalText parses this level from text
func (l *Level) UnmarshalText(text []byte) error {
	lv, err := LevelFromString(string(text))
	if err != nil {
		return err
	}
	*l = lv
	return nil
}

// Event is one entry of the run trace. The trace is append-only and
// chronological, the engine writes it but never interprets it.
type Event struct {
	Timestamp time.Time
	Level     Level
	Source    string
	Message   string
}
