package writer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxlabs/velocilog/internal/proto"
	"github.com/nyxlabs/velocilog/internal/ring"
)

type recordingSink struct {
	chunks []string
}

func (s *recordingSink) write(b []byte) error {
	s.chunks = append(s.chunks, string(b))
	return nil
}
func (s *recordingSink) close() {}

func newTestRing(t *testing.T, size uint64) *ring.Ring {
	t.Helper()
	region := make([]byte, ring.HeaderSize+size)
	return ring.New(region, size, true)
}

func pushFrame(r *ring.Ring, cmd proto.Command, payload []byte) {
	if cmd == proto.CmdPad {
		r.PlaceAtWrite(0, []byte{byte(proto.CmdPad)})
		r.CommitWrite(1)
		return
	}
	hdr := make([]byte, proto.HeaderSize)
	proto.PutHeader(hdr, cmd, uint32(len(payload)))
	r.PlaceAtWrite(0, hdr)
	r.PlaceAtWrite(uint64(len(hdr)), payload)
	r.CommitWrite(uint64(len(hdr)) + uint64(len(payload)))
}

func TestDrainFramesCoalescesSmallMessages(t *testing.T) {
	r := newTestRing(t, 4096)
	pushFrame(r, proto.CmdLogMsg, []byte("hello "))
	pushFrame(r, proto.CmdLogMsg, []byte("world"))

	sk := &recordingSink{}
	buf, n, closed, corrupt := drainFrames(r, sk, make([]byte, 0, stagingSize))

	assert.Equal(t, 2, n)
	assert.False(t, closed)
	assert.False(t, corrupt)
	assert.Equal(t, "hello world", string(buf))
	assert.Empty(t, sk.chunks)
}

func TestDrainFramesDetectsCloseFrame(t *testing.T) {
	r := newTestRing(t, 4096)
	pushFrame(r, proto.CmdLogMsg, []byte("last message"))
	pushFrame(r, proto.CmdClose, nil)

	sk := &recordingSink{}
	buf, _, closed, corrupt := drainFrames(r, sk, make([]byte, 0, stagingSize))

	assert.True(t, closed)
	assert.False(t, corrupt)
	assert.Equal(t, "last message", string(buf))
}

func TestDrainFramesSkipsPadByte(t *testing.T) {
	r := newTestRing(t, 4096)
	pushFrame(r, proto.CmdPad, nil)
	pushFrame(r, proto.CmdPad, nil)
	pushFrame(r, proto.CmdLogMsg, []byte("after pad"))

	sk := &recordingSink{}
	buf, n, _, corrupt := drainFrames(r, sk, make([]byte, 0, stagingSize))

	assert.Equal(t, 1, n)
	assert.False(t, corrupt)
	assert.Equal(t, "after pad", string(buf))
}

func TestDrainFramesFlushesOversizedPayloadDirectly(t *testing.T) {
	r := newTestRing(t, 16384)
	big := strings.Repeat("x", stagingSize+200)
	pushFrame(r, proto.CmdLogMsg, []byte(big))

	sk := &recordingSink{}
	buf, n, _, corrupt := drainFrames(r, sk, make([]byte, 0, stagingSize))

	require.Equal(t, 1, n)
	assert.False(t, corrupt)
	assert.Empty(t, buf)
	assert.Equal(t, big, strings.Join(sk.chunks, ""))
}

func TestDrainFramesFlushesBufferedDataBeforeOversizedPayload(t *testing.T) {
	r := newTestRing(t, 16384)
	big := strings.Repeat("y", stagingSize+50)
	pushFrame(r, proto.CmdLogMsg, []byte("small"))
	pushFrame(r, proto.CmdLogMsg, []byte(big))

	sk := &recordingSink{}
	buf, n, _, corrupt := drainFrames(r, sk, make([]byte, 0, stagingSize))

	require.Equal(t, 2, n)
	assert.False(t, corrupt)
	assert.Empty(t, buf)
	assert.Equal(t, "small"+big, strings.Join(sk.chunks, ""))
}

func TestDrainFramesDetectsUnknownCommandByte(t *testing.T) {
	r := newTestRing(t, 4096)
	pushFrame(r, proto.CmdLogMsg, []byte("ok before corruption"))
	hdr := make([]byte, proto.HeaderSize)
	proto.PutHeader(hdr, proto.Command(0x7f), 0)
	r.PlaceAtWrite(0, hdr)
	r.CommitWrite(uint64(len(hdr)))

	sk := &recordingSink{}
	buf, n, closed, corrupt := drainFrames(r, sk, make([]byte, 0, stagingSize))

	assert.Equal(t, 1, n)
	assert.False(t, closed)
	assert.True(t, corrupt)
	assert.Equal(t, "ok before corruption", string(buf))
}

func TestDrainFramesDetectsOversizedPayloadLength(t *testing.T) {
	r := newTestRing(t, 4096)
	hdr := make([]byte, proto.HeaderSize)
	proto.PutHeader(hdr, proto.CmdLogMsg, 1<<20)
	r.PlaceAtWrite(0, hdr)
	r.CommitWrite(uint64(len(hdr)))

	sk := &recordingSink{}
	_, n, closed, corrupt := drainFrames(r, sk, make([]byte, 0, stagingSize))

	assert.Equal(t, 0, n)
	assert.False(t, closed)
	assert.True(t, corrupt)
}
