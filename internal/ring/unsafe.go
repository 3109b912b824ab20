package ring

import "unsafe"

// sliceAt returns a pointer to the 8-byte-aligned word starting at byte
// offset off within buf. Shared-memory regions obtained via mmap are
// always page-aligned, so offsets that are multiples of 8 are always
// naturally aligned for atomic 64-bit access.
func sliceAt(buf []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&buf[off])
}
