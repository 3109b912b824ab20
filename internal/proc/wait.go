package proc

import "time"

// AwaitReady waits up to timeout for the writer to signal that it has
// attached to the shared region (internal/writer.Run's signalReady
// closing its end of the readiness pipe), or for the writer to exit
// first without ever signaling. It reports true only when the pipe
// closed while the process was still alive — false on timeout, on the
// process exiting before signaling, or on any read error, all of which
// mean the caller must not trust the shared-memory name has a reader
// and must not unlink it out from under a writer that is still starting.
func (h *Handle) AwaitReady(timeout time.Duration) bool {
	result := make(chan bool, 1)
	go func() {
		var b [1]byte
		_, err := h.ready.Read(b[:])
		result <- err != nil
	}()

	select {
	case ready := <-result:
		h.ready.Close()
		return ready && h.Alive()
	case <-time.After(timeout):
		return false
	}
}

// WaitForExit waits up to timeout for h's process to exit, relying on
// the background reaper Spawn already started rather than calling
// Cmd.Wait itself (which must only ever be invoked once). If the
// deadline passes first, the process is force-killed and WaitForExit
// still waits for the reaper to observe the exit before returning
// false, so no zombie is ever left behind. Grounded on
// WaitForProcessToDie's waitpid/WNOHANG polling loop in
// original_source/uberlog.cpp, translated into Go's idiomatic
// goroutine-plus-channel shape rather than a manual poll loop.
func (h *Handle) WaitForExit(timeout time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		_ = h.Cmd.Process.Kill()
		<-h.done
		return false
	}
}
