package velocilog

import (
	"fmt"
	"strings"

	"github.com/hyp3rd/ewrap"
)

// Level represents the severity of a log line. Higher values are more
// severe. Levels are ordered from least to most severe: Debug, Info,
// Warn, Error, Fatal.
type Level int32

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

// String returns the uppercase name of the level.
func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Char returns the single severity letter spec.md's dated prefix places
// inside brackets: 'D', 'I', 'W', 'E' or 'F'.
func (l Level) Char() byte {
	switch l {
	case Debug:
		return 'D'
	case Info:
		return 'I'
	case Warn:
		return 'W'
	case Error:
		return 'E'
	case Fatal:
		return 'F'
	default:
		return '?'
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return Debug, nil
	case "INFO":
		return Info, nil
	case "WARN", "WARNING":
		return Warn, nil
	case "ERROR":
		return Error, nil
	case "FATAL":
		return Fatal, nil
	default:
		return Debug, ewrap.New(fmt.Sprintf("velocilog: invalid log level %q", name))
	}
}
