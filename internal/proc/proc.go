// Package proc manages the writer child process: spawning it as a
// private re-exec of the host binary, encoding its bootstrap arguments,
// and watching it for liveness and exit — grounded on the
// ProcessCreate/WaitForProcessToDie pair and the PollForParentProcessDeath
// loop in original_source/uberlog.cpp and original_source/uberlogger.cpp.
package proc

import (
	"encoding/json"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"
)

// EnvMarker is the environment variable whose presence identifies a
// process as a velocilog writer re-exec rather than a normal run of the
// host binary. original_source/uberlog.h describes this as "a private
// argv marker"; an environment variable is used here instead of an argv
// position so that the host binary's own flag parsing is never disturbed.
const EnvMarker = "VELOCILOG_WRITER_ARGS"

// readyFD is the file descriptor the writer's readiness signal arrives on.
// Spawn always passes exactly one entry in Cmd.ExtraFiles, which Go places
// immediately after the inherited stdin/stdout/stderr (fds 0-2), so it is
// always fd 3 in the child.
const readyFD = 3

// WriterArgs is everything the writer side needs to attach to the shared
// ring and start serving, equivalent to the argv uberlogger's main()
// parses in original_source/uberlogger.cpp (parentpid, ringsize,
// logfilename, maxlogsize, maxarchives) plus the shared-memory name and
// stdout-mode flag this design adds.
type WriterArgs struct {
	ParentPID   int    `json:"parent_pid"`
	ShmName     string `json:"shm_name"`
	ShmSize     uint64 `json:"shm_size"`
	RingSize    uint64 `json:"ring_size"`
	Path        string `json:"path"`
	Stdout      bool   `json:"stdout"`
	Color       bool   `json:"color"`
	MaxFileSize int64  `json:"max_file_size"`
	MaxArchives int    `json:"max_archives"`

	// ReadyFD is the descriptor the writer should close once it has
	// successfully attached to the shared region (see
	// internal/writer.Run's signalReady), or 0 if no caller is waiting
	// for a readiness signal. Set by Spawn; callers never set it directly.
	ReadyFD int `json:"ready_fd"`
}

// Encode serializes a to the form stashed in EnvMarker.
func (a WriterArgs) Encode() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", ewrap.Wrap(err, "proc: encode writer args")
	}
	return string(b), nil
}

// DecodeSelfArgs reports whether the current process was re-exec'd as a
// writer (EnvMarker is set) and, if so, decodes its arguments. Meant to
// be called once, early, from the root package's process-entry hook —
// analogous to checking a private argv marker before the host
// application's own main ever runs.
func DecodeSelfArgs() (WriterArgs, bool, error) {
	raw, ok := os.LookupEnv(EnvMarker)
	if !ok {
		return WriterArgs{}, false, nil
	}
	var a WriterArgs
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return WriterArgs{}, true, ewrap.Wrap(err, "proc: decode writer args")
	}
	return a, true, nil
}

// Handle is a spawned writer process together with an asynchronous reaper
// and a readiness pipe. Grounded on the ProcessCreate/WaitForProcessToDie
// pair in original_source/uberlog.cpp, extended with the Go idiom of
// reaping a child as soon as it exits (a background goroutine blocked in
// Wait) instead of polling its liveness with a signal-0 probe, which a
// zombie — a child that exited but was never Wait()-ed — would answer as
// if it were still running.
type Handle struct {
	Cmd *exec.Cmd

	ready  *os.File
	done   chan struct{}
	exited atomic.Bool
}

// Spawn launches the writer by re-executing the current binary with
// EnvMarker set to args' encoded form. The child's stdin is always the
// null device and its stderr is always inherited from the parent, so
// operators can still see writer-side error output. When stdout is false
// the child's stdout is the null device (it only ever talks to its log
// file); when stdout is true the child inherits the parent's stdout,
// matching OpenStdOut's "never rotate, write to standard output" contract.
//
// Spawn also attaches a readiness pipe (args.ReadyFD, fd 3 in the child)
// and starts an asynchronous Wait immediately: the returned Handle reaps
// the child the moment it exits, and AwaitReady/WaitForExit give the
// caller bounded ways to observe both ends of the child's lifetime without
// ever leaving a zombie behind or unlinking the shared-memory name before
// the child has actually attached to it.
func Spawn(args WriterArgs) (*Handle, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, ewrap.Wrap(err, "proc: resolve self executable")
	}

	readyR, readyW, err := os.Pipe()
	if err != nil {
		return nil, ewrap.Wrap(err, "proc: create readiness pipe")
	}

	args.ReadyFD = readyFD
	encoded, err := args.Encode()
	if err != nil {
		readyR.Close()
		readyW.Close()
		return nil, err
	}

	cmd := exec.Command(exe)
	cmd.Env = append(os.Environ(), EnvMarker+"="+encoded)
	cmd.Stdin = nil
	if args.Stdout {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{readyW}

	if err := cmd.Start(); err != nil {
		readyR.Close()
		readyW.Close()
		return nil, ewrap.Wrap(err, "proc: start writer process")
	}
	// Our copy of the write end must be closed so readyR sees EOF exactly
	// when the child's copy closes (on its readiness signal, or on exit),
	// not only when this process' own copy happens to go away too.
	readyW.Close()

	h := &Handle{Cmd: cmd, ready: readyR, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		h.exited.Store(true)
		close(h.done)
	}()
	return h, nil
}
