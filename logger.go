package velocilog

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"

	"github.com/nyxlabs/velocilog/internal/proc"
	"github.com/nyxlabs/velocilog/internal/proto"
	"github.com/nyxlabs/velocilog/internal/ring"
	"github.com/nyxlabs/velocilog/internal/shm"
	"github.com/nyxlabs/velocilog/internal/tsf"
)

// maxSpinIterations bounds the producer's busy-wait before it yields to
// the scheduler while waiting for ring space, per spec.md §4.1's "spin-
// wait with exponential backoff up to a bounded number of iterations,
// then yield".
const maxSpinIterations = 1000

// backpressureTimeout bounds how long LogRaw will wait, combining spin
// and yield, for ring space to free up before treating the writer as
// unresponsive and probing its liveness.
const backpressureTimeout = 50 * time.Millisecond

// readyTimeout bounds how long Open/OpenStdOut and a mid-life restart
// wait for the writer to confirm it has attached to the shared region
// before giving up, grounded on the same "bounded wait" principle as
// spec.md §4.1's Close timeout.
const readyTimeout = 2 * time.Second

// Logger is the producer-side handle: format a line, copy it into a
// shared ring buffer, and return. The first Open/OpenStdOut call spawns
// a dedicated writer process that owns the log file and performs
// rotation. Grounded on the Logger/LoggerSlave split in
// original_source/uberlog.cpp and uberlogger.cpp.
//
// A Logger is safe for concurrent use by multiple goroutines: frame
// submission is serialized by an internal mutex, matching spec.md §5's
// "the external contract is single-producer" combined with "may be
// called from multiple threads only if the implementation serializes
// frame submission with a lightweight mutex".
type Logger struct {
	mu sync.Mutex

	ringSize     uint64
	maxFileSize  int64
	maxArchives  int
	includeDate  bool
	closeTimeout time.Duration

	open   bool
	stdout bool
	path   string
	color  bool

	shmName string
	region  *shm.Region
	buf     *ring.Ring
	handle  *proc.Handle

	restarted bool

	tk          *tsf.TimeKeeper
	testPrefix  []byte
	diagLimiter *rate.Limiter
}

// New returns an inert Logger configured with spec.md §3's defaults: a
// 1 MiB ring, rotation disabled, dated prefixes on.
func New() *Logger {
	return NewWithConfig(defaultConfig())
}

// NewWithConfig returns an inert Logger using cfg's pre-Open settings.
func NewWithConfig(cfg Config) *Logger {
	return &Logger{
		ringSize:     roundedRingSize(cfg.RingBufferSize),
		maxFileSize:  cfg.MaxFileSize,
		maxArchives:  cfg.MaxArchives,
		includeDate:  cfg.IncludeDate,
		closeTimeout: time.Duration(cfg.CloseTimeoutMS) * time.Millisecond,
		tk:           tsf.NewTimeKeeper(),
		diagLimiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// SetRingBufferSize sets the ring-buffer size in bytes, rounded up to a
// power of two and clamped to a 1 KiB minimum. Must be called before
// Open/OpenStdOut; spec.md §4.1.
func (l *Logger) SetRingBufferSize(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ringSize = roundedRingSize(n)
}

// SetArchiveSettings sets the rotation threshold and archive count. Must
// be called before Open/OpenStdOut; spec.md §4.1. maxFileSize of 0
// disables rotation.
func (l *Logger) SetArchiveSettings(maxFileSize int64, maxArchives int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxFileSize = maxFileSize
	l.maxArchives = maxArchives
}

// SetIncludeDate toggles whether formatted lines carry the 42-byte dated
// prefix (spec.md §6: "When IncludeDate = false, the prefix is omitted
// entirely").
func (l *Logger) SetIncludeDate(b bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.includeDate = b
}

// setTestPrefix pins the dated prefix to a fixed value instead of
// computing it from wall-clock time and the calling thread id, for the
// deterministic-output scenario spec.md §8 seeds the test suite with
// ("With the test prefix pinned to a fixed 42-byte value"). Exported via
// the package-level SetTestPrefixHook below since this knob is not part
// of the public production API.
func (l *Logger) setTestPrefix(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.testPrefix = p
}

// Open creates the shared ring, spawns the writer process, and instructs
// it to write formatted/raw lines to path. A second call while already
// open targeting the same path is a no-op; targeting a different path or
// mode returns ErrAlreadyOpen — SPEC_FULL.md's resolution of spec.md §9's
// open question on double-Open.
func (l *Logger) Open(path string) error {
	return l.open_(path, false)
}

// OpenStdOut behaves like Open, except the writer writes formatted/raw
// lines to its own standard output (inherited from this process) and
// never rotates.
func (l *Logger) OpenStdOut() error {
	return l.open_("", true)
}

func (l *Logger) open_(path string, stdout bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open {
		if l.path == path && l.stdout == stdout {
			return nil
		}
		return ErrAlreadyOpen
	}

	// Coloring is cosmetic and only ever considered for OpenStdOut: a
	// real log file destination always gets the plain, byte-exact
	// format spec.md §8 depends on.
	color := stdout && isatty.IsTerminal(os.Stdout.Fd())

	shmSize := shm.SizeForRing(l.ringSize)
	name, err := shm.NewName(os.Getpid())
	if err != nil {
		return err
	}
	region, err := shm.Create(name, shmSize)
	if err != nil {
		return err
	}

	r := ring.New(region.Bytes(), l.ringSize, true)

	args := proc.WriterArgs{
		ParentPID:   os.Getpid(),
		ShmName:     name,
		ShmSize:     shmSize,
		RingSize:    l.ringSize,
		Path:        path,
		Stdout:      stdout,
		Color:       color,
		MaxFileSize: l.maxFileSize,
		MaxArchives: l.maxArchives,
	}
	handle, err := proc.Spawn(args)
	if err != nil {
		_ = region.Close(true)
		return err
	}

	// The shared-memory name must stay valid for the Logger's entire
	// lifetime, not just until this first writer attaches: a later
	// best-effort restart (awaitSpace) spawns a brand-new writer that can
	// only find the region by this same name, and POSIX shm names, once
	// unlinked, can never be reattached to. original_source/uberlog.cpp's
	// SetupSharedMemory/CloseSharedMemory never unlink the name at all for
	// exactly this reason; here it is unlinked once, in Close, after the
	// final writer has exited.
	if !handle.AwaitReady(readyTimeout) {
		_ = handle.WaitForExit(0)
		_ = region.Close(true)
		return ErrWriterUnavailable
	}

	l.shmName = name
	l.region = region
	l.buf = r
	l.handle = handle
	l.path = path
	l.stdout = stdout
	l.color = color
	l.open = true
	l.restarted = false
	return nil
}

// Close submits a Close frame and waits for the writer to exit, bounded
// by the configured close timeout (floor 2s per spec.md §4.1); on
// timeout the writer is force-killed. After Close, the handle may be
// reopened.
func (l *Logger) Close() error {
	l.mu.Lock()
	if !l.open {
		l.mu.Unlock()
		return nil
	}
	region := l.region
	name := l.shmName
	l.mu.Unlock()

	_ = l.submitFrame(proto.CmdClose, nil)

	// Read the handle only now: submitting the Close frame may itself
	// have restarted a dead writer.
	l.mu.Lock()
	handle := l.handle
	l.mu.Unlock()

	timeout := l.closeTimeout
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	handle.WaitForExit(timeout)

	// Every writer this Logger ever spawned (the original plus any
	// best-effort restart) has now exited, so the shared-memory name can
	// finally be removed from the namespace — see open_'s comment on why
	// this cannot happen any earlier.
	shm.Unlink(name)

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = region.Close(false)
	l.open = false
	l.buf = nil
	l.region = nil
	l.handle = nil
	return nil
}

// LogRaw submits buf as one frame with no prefix prepended. len(buf)
// must not exceed the ring's usable capacity, or the call fails and the
// message is dropped.
func (l *Logger) LogRaw(buf []byte) error {
	return l.submitFrame(proto.CmdLogMsg, buf)
}

// submitFrame implements spec.md §4.1's frame submission algorithm: skip
// the unused ring tail with Pad bytes when a frame cannot be placed
// contiguously before wrap, then spin-then-yield under backpressure when
// the ring is full, probing writer liveness and attempting one
// best-effort restart before giving up and silently dropping the
// message.
func (l *Logger) submitFrame(cmd proto.Command, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		return ErrNotOpen
	}

	need := uint64(proto.HeaderSize) + uint64(len(payload))
	if need > l.buf.Size()-1 {
		return ErrMessageTooLarge
	}

	deadline := time.Now().Add(backpressureTimeout)
	for {
		tail := l.buf.TailFromWrite()
		if tail < need {
			if l.buf.Free() < tail {
				if !l.awaitSpace(&deadline, tail) {
					return nil
				}
				continue
			}
			l.padTail(tail)
			continue
		}

		if l.buf.Free() < need {
			if !l.awaitSpace(&deadline, need) {
				return nil
			}
			continue
		}

		hdr := make([]byte, proto.HeaderSize)
		proto.PutHeader(hdr, cmd, uint32(len(payload)))
		l.buf.PlaceAtWrite(0, hdr)
		if len(payload) > 0 {
			l.buf.PlaceAtWrite(uint64(len(hdr)), payload)
		}
		l.buf.CommitWrite(need)
		return nil
	}
}

// padTail writes Pad sentinel bytes across the unused tail of the ring
// so the next frame always starts at a fresh wrap boundary.
func (l *Logger) padTail(tail uint64) {
	pad := [1]byte{byte(proto.CmdPad)}
	for i := uint64(0); i < tail; i++ {
		l.buf.PlaceAtWrite(i, pad[:])
	}
	l.buf.CommitWrite(tail)
}

// awaitSpace spins briefly, then yields, while the ring has fewer than
// need free bytes. If the deadline passes, it probes the writer's
// liveness; a dead writer gets one best-effort restart attempt, after
// which further full-ring conditions are reported as "can't submit, drop
// the message" (returns false) rather than blocking indefinitely —
// spec.md §4.1's backpressure point combined with §4.1's "best-effort
// restart once" failure policy.
func (l *Logger) awaitSpace(deadline *time.Time, need uint64) bool {
	for i := 0; i < maxSpinIterations; i++ {
		if l.buf.Free() >= need {
			return true
		}
	}
	runtime.Gosched()
	if time.Now().Before(*deadline) {
		return true
	}

	if l.handle.Alive() {
		*deadline = time.Now().Add(backpressureTimeout)
		return true
	}

	if l.restarted {
		l.warnOnce("velocilog: writer process is dead, dropping message")
		return false
	}
	l.restarted = true

	newHandle, err := proc.Spawn(proc.WriterArgs{
		ParentPID:   os.Getpid(),
		ShmName:     l.shmName,
		ShmSize:     shm.SizeForRing(l.buf.Size()),
		RingSize:    l.buf.Size(),
		Path:        l.path,
		Stdout:      l.stdout,
		Color:       l.color,
		MaxFileSize: l.maxFileSize,
		MaxArchives: l.maxArchives,
	})
	if err != nil || !newHandle.AwaitReady(readyTimeout) {
		if newHandle != nil {
			_ = newHandle.WaitForExit(0)
		}
		l.warnOnce("velocilog: writer restart failed, dropping message")
		return false
	}
	l.handle = newHandle
	*deadline = time.Now().Add(backpressureTimeout)
	return true
}

// warnOnce emits a rate-limited diagnostic to standard error, matching
// spec.md §7's "optionally diagnosed to standard error once per
// occurrence" for producer-side submission errors, which must never
// propagate as an observable failure to the caller.
func (l *Logger) warnOnce(msg string) {
	if l.diagLimiter.Allow() {
		os.Stderr.WriteString(msg + "\n")
	}
}
