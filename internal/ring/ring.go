// Package ring implements the memory-mapped single-producer/single-consumer
// ring buffer shared between the Logger and the writer process.
//
// The ring occupies a contiguous byte region of HeaderSize+Size bytes,
// grounded on the layout of original_source/uberlog.h's RingBuffer: a small
// header holding the write and read cursors, followed by the data bytes
// themselves. Size must be a power of two; position within the data region
// is always cursor&(Size-1). Cursors are 64-bit counters that only ever
// increase, so Used() is simply write-read with no special-case wrap
// arithmetic, matching the original's approach.
//
// The write cursor is owned exclusively by the producer side, the read
// cursor exclusively by the writer side. Each side publishes its cursor
// with atomic.StoreUint64 and observes the other's with atomic.LoadUint64;
// on amd64/arm64 these compile to the same barriers as C++'s
// release/acquire atomics, which is the acquire/release contract spec.md
// asks for. Go's sync/atomic has no separate acquire/release API, so this
// is the strongest portable primitive the standard library offers — and
// the examples pack has no third-party library that implements weaker
// atomics, so sync/atomic is used directly here.
package ring

import (
	"sync/atomic"
)

// HeaderSize is the size, in bytes, of the ring's shared-memory header:
// an 8-byte write cursor, 8-byte read cursor, 8-byte size, and 8 reserved
// bytes (kept for future epoch/sanity use, per spec.md's "sequence/epoch
// for sanity" field).
const HeaderSize = 32

// Ring is a view over a shared byte region: the first HeaderSize bytes are
// the header, the rest is the circular data area.
type Ring struct {
	region []byte
	data   []byte
	size   uint64
}

// New wraps region (which must be at least HeaderSize+size bytes) as a
// ring of the given size, which must be a power of two. If reset is true,
// both cursors are zeroed; reset is true for the side that creates the
// shared region (the Logger) and false for the side that attaches to an
// existing one (the writer).
func New(region []byte, size uint64, reset bool) *Ring {
	if size == 0 || size&(size-1) != 0 {
		panic("ring: size must be a non-zero power of two")
	}
	if uint64(len(region)) < HeaderSize+size {
		panic("ring: region too small for requested size")
	}
	r := &Ring{region: region, data: region[HeaderSize : HeaderSize+size], size: size}
	if reset {
		atomic.StoreUint64(r.writeCursorPtr(), 0)
		atomic.StoreUint64(r.readCursorPtr(), 0)
	}
	return r
}

func (r *Ring) writeCursorPtr() *uint64 {
	return (*uint64)(sliceAt(r.region, 0))
}

func (r *Ring) readCursorPtr() *uint64 {
	return (*uint64)(sliceAt(r.region, 8))
}

// Size returns the capacity of the data area, in bytes.
func (r *Ring) Size() uint64 { return r.size }

// WriteCursor returns the current write cursor, observed with acquire
// semantics (only meaningful when called from the reader side).
func (r *Ring) WriteCursor() uint64 { return atomic.LoadUint64(r.writeCursorPtr()) }

// ReadCursor returns the current read cursor, observed with acquire
// semantics (only meaningful when called from the writer side).
func (r *Ring) ReadCursor() uint64 { return atomic.LoadUint64(r.readCursorPtr()) }

// Used returns the number of bytes currently available for reading.
func (r *Ring) Used() uint64 {
	w := atomic.LoadUint64(r.writeCursorPtr())
	rd := atomic.LoadUint64(r.readCursorPtr())
	return w - rd
}

// Free returns the number of bytes currently available for writing. One
// byte of the ring is always kept empty so that write==read is
// unambiguously "empty" rather than "full".
func (r *Ring) Free() uint64 {
	return r.size - 1 - r.Used()
}

func (r *Ring) pos(cursor uint64) uint64 {
	return cursor & (r.size - 1)
}

// TailFromWrite returns the number of contiguous bytes between the current
// write position and the end of the data area.
func (r *Ring) TailFromWrite() uint64 {
	return r.size - r.pos(r.WriteCursor())
}

// TailFromRead returns the number of contiguous bytes between the current
// read position and the end of the data area.
func (r *Ring) TailFromRead() uint64 {
	return r.size - r.pos(r.ReadCursor())
}

// PlaceAtWrite copies data into the ring starting offset bytes past the
// current write cursor, without publishing the new cursor. Used to write
// a frame in pieces (header, then payload) before a single Commit.
// Data may wrap around the end of the buffer.
func (r *Ring) PlaceAtWrite(offset uint64, data []byte) {
	pos := (r.WriteCursor() + offset) & (r.size - 1)
	r.copyIn(pos, data)
}

func (r *Ring) copyIn(pos uint64, data []byte) {
	n := uint64(len(data))
	if pos+n > r.size {
		part1 := r.size - pos
		copy(r.data[pos:], data[:part1])
		copy(r.data[:n-part1], data[part1:])
	} else {
		copy(r.data[pos:pos+n], data)
	}
}

// CommitWrite publishes a new write cursor, n bytes past the current one,
// with release semantics. The caller must have placed exactly n bytes of
// valid frame content via PlaceAtWrite before calling this.
func (r *Ring) CommitWrite(n uint64) {
	atomic.StoreUint64(r.writeCursorPtr(), r.WriteCursor()+n)
}

// ReadExact copies exactly len(dst) bytes from the current read position
// into dst, without advancing the read cursor. Used for header reads,
// which the producer always places contiguously.
func (r *Ring) ReadExact(dst []byte) {
	pos := r.pos(r.ReadCursor())
	n := uint64(len(dst))
	if pos+n > r.size {
		part1 := r.size - pos
		copy(dst[:part1], r.data[pos:])
		copy(dst[part1:], r.data[:n-part1])
	} else {
		copy(dst, r.data[pos:pos+n])
	}
}

// ReadInto copies exactly len(dst) bytes starting offset bytes past the
// current read position into dst, without advancing the read cursor.
func (r *Ring) ReadInto(offset uint64, dst []byte) {
	pos := (r.ReadCursor() + offset) & (r.size - 1)
	n := uint64(len(dst))
	if pos+n > r.size {
		part1 := r.size - pos
		copy(dst[:part1], r.data[pos:])
		copy(dst[part1:], r.data[:n-part1])
	} else {
		copy(dst, r.data[pos:pos+n])
	}
}

// ReadNoCopy returns up to two slices pointing directly into the ring's
// backing storage, covering offset..offset+length bytes past the current
// read position, without copying and without advancing the read cursor.
// The second slice is non-nil only when the region wraps. This lets the
// writer flush large payloads straight from shared memory to the file,
// bypassing the staging buffer (spec.md §4.2).
func (r *Ring) ReadNoCopy(offset, length uint64) (p1, p2 []byte) {
	pos := (r.ReadCursor() + offset) & (r.size - 1)
	if pos+length <= r.size {
		return r.data[pos : pos+length], nil
	}
	part1 := r.size - pos
	return r.data[pos:], r.data[:length-part1]
}

// CommitRead advances the read cursor by n bytes, with release semantics.
func (r *Ring) CommitRead(n uint64) {
	atomic.StoreUint64(r.readCursorPtr(), r.ReadCursor()+n)
}
