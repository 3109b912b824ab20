package velocilog

import (
	"time"

	"github.com/nyxlabs/velocilog/internal/proc"
	"github.com/nyxlabs/velocilog/internal/tsf"
)

// eol is the platform end-of-line sequence appended to every formatted
// line, per spec.md §6 ("\r\n on Windows, \n elsewhere"). The writer's
// shared-memory transport (internal/shm) is implemented for linux and
// darwin only, so \n is the only value this build ever needs.
const eol = "\n"

// SetTestPrefixHook pins l's dated prefix to a fixed 42-byte value
// instead of the computed wall-clock timestamp and thread id, for
// deterministic golden-output tests — spec.md §8 scenario 2 calls this
// out explicitly ("With the test prefix pinned to a fixed 42-byte
// value"). Passing nil restores normal prefix computation.
func SetTestPrefixHook(l *Logger, prefix []byte) {
	l.setTestPrefix(prefix)
}

// Debug formats a line at Debug severity and submits it; see Info for
// the formatting contract.
func (l *Logger) Debug(format string, args ...any) error { return l.logf(Debug, format, args...) }

// Info formats a line as "<prefix?>" + tsf.AppendFormat(format, args...)
// + EOL and submits it as one frame. The prefix (timestamp, level
// letter, thread id) is included unless IncludeDate is false, and is
// always exactly 42 bytes when present (spec.md §6).
func (l *Logger) Info(format string, args ...any) error { return l.logf(Info, format, args...) }

// Warn formats a line at Warn severity and submits it; see Info.
func (l *Logger) Warn(format string, args ...any) error { return l.logf(Warn, format, args...) }

// Error formats a line at Error severity and submits it; see Info.
func (l *Logger) Error(format string, args ...any) error { return l.logf(Error, format, args...) }

// Fatal formats a line at Fatal severity and submits it; see Info. Fatal
// does not itself terminate the process — spec.md scopes that decision
// to the caller.
func (l *Logger) Fatal(format string, args ...any) error { return l.logf(Fatal, format, args...) }

func (l *Logger) logf(level Level, format string, args ...any) error {
	l.mu.Lock()
	includeDate := l.includeDate
	testPrefix := l.testPrefix
	tk := l.tk
	l.mu.Unlock()

	line := make([]byte, 0, tsf.PrefixLen+len(format)+16)
	if includeDate {
		if testPrefix != nil {
			line = append(line, testPrefix...)
		} else {
			line = tk.AppendPrefix(line, time.Now(), level.Char(), proc.MyTID())
		}
	}
	line = tsf.AppendFormat(line, format, args...)
	line = append(line, eol...)

	return l.LogRaw(line)
}
