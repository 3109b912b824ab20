package writer

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nyxlabs/velocilog/internal/proc"
	"github.com/nyxlabs/velocilog/internal/proto"
	"github.com/nyxlabs/velocilog/internal/ring"
	"github.com/nyxlabs/velocilog/internal/shm"
)

// stagingSize is the size of the coalescing buffer frames are appended
// to before a single flush to the sink, pinned by spec.md §3 ("Staging
// buffer of exactly 1024 bytes").
const stagingSize = 1024

// State is the writer's lifecycle, named exactly as spec.md §4.2 lists
// it: Starting → Running → Draining → Exited.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateExited
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// exitCorruptFrame is the process exit code for framing corruption (an
// unknown command byte, or a payload length that could never fit the
// ring), per spec.md §4.2/§6/§7: "Unknown codes are framing errors" /
// "Framing corruption: fatal to the writer; causes clean exit with
// non-zero status" — distinct from the ordinary exitOK a Close frame or
// parent death produces.
const exitCorruptFrame = 2

// parentPollInterval bounds how often the writer re-checks that its
// parent is still alive, per spec.md's "periodically (≤ 1 s)".
const parentPollInterval = 250 * time.Millisecond

// idleSleepMax bounds the exponential backoff the writer applies while
// the ring is empty, grounded on LoggerSlave::MaxSleepMS in
// original_source/uberlogger.cpp.
const idleSleepMax = 1024 * time.Millisecond

// sink is the destination the writer flushes the staging buffer to:
// either a rotating logFile or standard output.
type sink interface {
	write(b []byte) error
	close()
}

type stdoutSink struct {
	w     io.Writer
	color bool
}

func (s stdoutSink) write(b []byte) error {
	if s.color {
		b = colorize(b)
	}
	_, err := s.w.Write(b)
	return err
}
func (s stdoutSink) close() {}

type logFileSink struct{ lf *logFile }

func (s logFileSink) write(b []byte) error { return s.lf.write(b) }
func (s logFileSink) close()               { s.lf.close() }

// signalReady closes the writer's end of the readiness pipe proc.Spawn
// attached at fd, telling the parent it has successfully attached to the
// shared region. The parent keeps the shared-memory name linked until
// Logger.Close, so a restarted writer can attach by the same name.
// fd is 0 (disabled) when Run is invoked outside a real proc.Spawn re-exec,
// e.g. directly in a test, so nothing here ever closes an unrelated
// descriptor by guessing at a fixed fd number.
func signalReady(fd int) {
	if fd <= 0 {
		return
	}
	if f := os.NewFile(uintptr(fd), "velocilog-writer-ready"); f != nil {
		f.Close()
	}
}

// Run attaches to the shared ring described by args and drains it until
// a Close frame arrives or the parent process dies, then returns a
// process exit code. Grounded on LoggerSlave::Run in
// original_source/uberlogger.cpp.
func Run(args proc.WriterArgs) int {
	st := StateStarting

	region, err := shm.Open(args.ShmName, args.ShmSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "velocilog writer: attach shared memory: %v\n", err)
		return 1
	}
	signalReady(args.ReadyFD)
	r := ring.New(region.Bytes(), args.RingSize, false)

	var sk sink
	if args.Stdout {
		sk = stdoutSink{w: os.Stdout, color: args.Color}
	} else {
		sk = logFileSink{lf: newLogFile(args.Path, args.MaxFileSize, args.MaxArchives)}
	}
	defer sk.close()
	defer region.Close(false)

	st = StateRunning
	buf := make([]byte, 0, stagingSize)
	closeReceived := false
	corrupt := false
	parentDead := false
	sleep := time.Duration(0)
	lastParentCheck := time.Now()

	for !parentDead && !closeReceived && !corrupt {
		var drained int
		buf, drained, closeReceived, corrupt = drainFrames(r, sk, buf)
		if drained == 0 {
			if sleep == 0 {
				sleep = time.Millisecond
			} else if sleep *= 2; sleep > idleSleepMax {
				sleep = idleSleepMax
			}
		} else {
			sleep = 0
		}

		if time.Since(lastParentCheck) >= parentPollInterval {
			lastParentCheck = time.Now()
			if !proc.ParentAlive(args.ParentPID) {
				parentDead = true
			}
		}

		if !closeReceived && !corrupt && !parentDead && sleep > 0 {
			time.Sleep(sleep)
		}
	}

	st = StateDraining
	if parentDead {
		buf, _, _, _ = drainFrames(r, sk, buf)
	}
	if len(buf) > 0 {
		_ = sk.write(buf)
	}
	st = StateExited

	switch {
	case corrupt:
		fmt.Fprintf(os.Stderr, "velocilog writer: stopping (%s): corrupt frame\n", st)
		return exitCorruptFrame
	case parentDead:
		fmt.Fprintf(os.Stderr, "velocilog writer: stopping (%s): parent is dead\n", st)
	default:
		fmt.Fprintf(os.Stderr, "velocilog writer: stopping (%s): received close\n", st)
	}

	return 0
}

// drainFrames consumes every frame currently available in r, appending
// LogMsg payloads to buf (flushing to sk whenever buf would overflow, or
// writing a too-large payload straight from the ring via ReadNoCopy), and
// reports whether a Close frame was seen or the framing was found corrupt
// (an unknown command byte, or a payload length that could never fit in
// the ring). Grounded on LoggerSlave::ReadMessages, extended per spec.md
// §4.2 step 1's "if framing is corrupt ... treat as fatal" — a corrupt
// header's length field cannot be trusted, so draining stops immediately
// rather than waiting for r.Used() to satisfy a length that may never be
// reachable, which would otherwise stall forever without making progress.
func drainFrames(r *ring.Ring, sk sink, buf []byte) (_ []byte, drained int, closeReceived bool, corrupt bool) {
	maxPayload := r.Size() - 1 - uint64(proto.HeaderSize)

	for {
		if r.Used() < 1 {
			break
		}
		var cmdByte [1]byte
		r.ReadExact(cmdByte[:])
		cmd := proto.Command(cmdByte[0])

		if cmd == proto.CmdPad {
			r.CommitRead(1)
			continue
		}

		if cmd != proto.CmdLogMsg && cmd != proto.CmdClose {
			return buf, drained, false, true
		}

		if r.Used() < uint64(proto.HeaderSize) {
			break
		}
		var hdr [proto.HeaderSize]byte
		r.ReadExact(hdr[:])
		_, payloadLen := proto.ParseHeader(hdr[:])

		if uint64(payloadLen) > maxPayload {
			return buf, drained, false, true
		}

		if r.Used() < uint64(proto.HeaderSize)+uint64(payloadLen) {
			break
		}

		switch cmd {
		case proto.CmdClose:
			closeReceived = true
			r.CommitRead(uint64(proto.HeaderSize))
		case proto.CmdLogMsg:
			drained++
			if int(payloadLen) > cap(buf)-len(buf) {
				if len(buf) > 0 {
					_ = sk.write(buf)
					buf = buf[:0]
				}
			}
			if int(payloadLen) <= cap(buf)-len(buf) {
				off := uint64(len(buf))
				buf = buf[:off+uint64(payloadLen)]
				r.ReadInto(uint64(proto.HeaderSize), buf[off:])
			} else {
				p1, p2 := r.ReadNoCopy(uint64(proto.HeaderSize), uint64(payloadLen))
				_ = sk.write(p1)
				if len(p2) > 0 {
					_ = sk.write(p2)
				}
			}
			r.CommitRead(uint64(proto.HeaderSize) + uint64(payloadLen))
		}
	}

	return buf, drained, closeReceived, false
}
