package proc

import (
	"golang.org/x/sys/unix"
)

// Alive reports whether h's process is still running. It reflects the
// asynchronous reaper Spawn starts, not a live signal-0 probe: kill(pid, 0)
// still succeeds against a zombie — a child that has exited but was never
// Wait()-ed — which would otherwise make a dead writer look alive for as
// long as nothing happened to reap it. Grounded on the same intent as
// original_source/uberlogger.cpp's WatchForParentProcessDeath (there
// implemented with OpenProcess/WaitForSingleObject on Windows), adapted to
// Go's idiom of reaping a child the moment it exits instead of polling it.
func (h *Handle) Alive() bool {
	return !h.exited.Load()
}

// ParentAlive reports whether the calling process' parent is still
// expectedParentPID, grounded on PollForParentProcessDeath in
// original_source/uberlogger.cpp: "if our parent process dies, then our
// parent process becomes a process with PID equal to 0 or 1" (or, under
// a subreaper, some other ancestor) — so once getppid() no longer
// matches the PID recorded at startup, the original parent is gone.
func ParentAlive(expectedParentPID int) bool {
	return unix.Getppid() == expectedParentPID
}

// MyTID returns the OS-level thread id of the calling goroutine's
// current OS thread, used for the 8-hex-digit tid field of the dated
// prefix. Grounded on GetMyTID() in original_source/uberlog.cpp, which
// wraps the gettid() syscall the same way unix.Gettid does here.
//
// Go reuses OS threads across goroutines, so this value identifies the
// thread executing the call at this instant, not a stable per-goroutine
// identity — the same trade-off the C original makes, since it also
// reports the OS thread, not a higher-level task id.
func MyTID() uint32 {
	return uint32(unix.Gettid())
}
