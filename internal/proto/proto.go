// Package proto defines the wire format used on the shared-memory ring
// between the producer Logger and the writer process: command bytes and
// the length-prefixed frame header.
package proto

import "encoding/binary"

// Command identifies the kind of frame written into the ring.
type Command byte

const (
	// CmdPad marks a single scratch byte inserted by the producer when it
	// skips the unused tail of the ring rather than splitting a frame
	// across the wrap boundary. A Pad frame is exactly one byte long (the
	// command byte itself, no length, no payload) so that it can never
	// fail to fit contiguously, however few bytes remain before the wrap.
	// This is not one of the two commands in the wire-format table;
	// it exists purely so both sides can agree, byte for byte, on where
	// skipped tail space ends and the next real frame begins. The writer
	// discards it without touching the log file.
	CmdPad Command = 0x00
	// CmdLogMsg carries a fully prepared log line as its payload.
	CmdLogMsg Command = 0x01
	// CmdClose tells the writer to flush and exit. Its payload is empty.
	CmdClose Command = 0x02
)

// HeaderSize is the size, in bytes, of a LogMsg/Close frame header:
// one command byte plus a 4-byte little-endian payload length.
const HeaderSize = 5

// PutHeader encodes cmd and payloadLen into buf[:HeaderSize].
func PutHeader(buf []byte, cmd Command, payloadLen uint32) {
	buf[0] = byte(cmd)
	binary.LittleEndian.PutUint32(buf[1:5], payloadLen)
}

// ParseHeader decodes a frame header previously written by PutHeader.
func ParseHeader(buf []byte) (cmd Command, payloadLen uint32) {
	cmd = Command(buf[0])
	payloadLen = binary.LittleEndian.Uint32(buf[1:5])
	return
}
