// Package shm manages the POSIX shared-memory region backing the ring
// buffer between the Logger and its writer process, grounded on the
// SetupSharedMemory/CloseSharedMemory pair in original_source/uberlog.cpp.
package shm

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/nyxlabs/velocilog/internal/ring"
)

const pageSize = 4096

// Region is a mapped shared-memory segment holding a ring buffer.
type Region struct {
	Name string
	buf  []byte
}

// Bytes returns the raw mapped region (header + ring data).
func (r *Region) Bytes() []byte { return r.buf }

// SizeForRing returns the total shared-memory size needed for a ring of
// ringSize data bytes, rounded up to a full page — matching
// SharedMemSizeFromRingSize in original_source/uberlog.cpp, which rounds
// up so that off-by-one errors are more likely to fault rather than
// silently corrupt an adjacent mapping.
func SizeForRing(ringSize uint64) uint64 {
	total := ringSize + ring.HeaderSize
	return (total + pageSize - 1) &^ (pageSize - 1)
}

// NewName derives a shared-memory object name from the parent PID and a
// random nonce, so that concurrent Loggers in the same parent process
// never collide. original_source/uberlog.cpp derives the name
// deterministically from a siphash of the log path; this module has no
// siphash implementation available in its dependency stack, and
// determinism buys nothing here since the name is always told to every
// writer a Logger spawns — the original one and any later best-effort
// restart — via bootstrap arguments rather than rediscovered independently.
// A random nonce is therefore sufficient and simpler.
func NewName(parentPID int) (string, error) {
	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("/velocilog-shm-%d-%s", parentPID, hex.EncodeToString(nonce[:])), nil
}

// Create allocates a fresh shared-memory region of the given size under
// name and maps it into this process. The caller (the Logger) owns
// unlinking the name, and only once it is done with it for good — see
// Unlink's doc comment.
func Create(name string, size uint64) (*Region, error) {
	return create(name, size)
}

// Open attaches to an existing shared-memory region previously made with
// Create. Used by the writer process.
func Open(name string, size uint64) (*Region, error) {
	return open(name, size)
}

// Close unmaps the region. If unlink is true, the name is also removed
// from the shared-memory namespace; the writer itself never passes true
// here, since another writer (a best-effort restart) may still need to
// attach to the same name later.
func (r *Region) Close(unlink bool) error {
	return r.close(unlink)
}

// Unlink removes a shared-memory name without requiring it to be mapped
// in this process. Called by Logger.Close once every writer the Logger
// ever spawned — the original and any best-effort restart — has exited;
// never earlier, since a restarted writer can only reattach to the region
// by this same name and a POSIX shared-memory name can never be reused
// once unlinked. Also used defensively on setup failure, where no writer
// ever attached at all.
func Unlink(name string) {
	_ = unlinkName(name)
}
