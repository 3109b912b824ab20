package velocilog

import (
	"github.com/hyp3rd/ewrap"
)

// Sentinel errors returned by Logger's configuration and lifecycle
// operations, grounded on the package-level error-variable style of
// _examples/hyp3rd-hyperlogger/internal/output/errors.go.
var (
	// ErrAlreadyOpen is returned by Open/OpenStdOut when the Logger is
	// already open. spec.md §9 leaves the double-Open behavior as an open
	// question; SPEC_FULL.md resolves it as idempotent no-op for a second
	// call with identical target, and this error for a second call that
	// asks for a different target or mode while already open.
	ErrAlreadyOpen = ewrap.New("velocilog: logger is already open")

	// ErrNotOpen is returned by LogRaw and the formatted helpers if the
	// caller never called Open/OpenStdOut — they do not implicitly open.
	ErrNotOpen = ewrap.New("velocilog: logger is not open")

	// ErrMessageTooLarge is returned by LogRaw when len exceeds the ring's
	// usable capacity (spec.md §4.1: "len must be ≤ N − frameHeader −
	// wrapSlack; otherwise the call fails").
	ErrMessageTooLarge = ewrap.New("velocilog: message exceeds ring buffer capacity")

	// ErrWriterUnavailable is returned by Open/OpenStdOut when the writer
	// process was spawned but never confirmed attaching to the shared
	// region within readyTimeout, so the shared-memory name cannot be
	// trusted to have a reader.
	ErrWriterUnavailable = ewrap.New("velocilog: writer process did not become ready")
)
