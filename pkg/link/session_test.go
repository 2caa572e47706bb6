package link

import (
	"testing"

	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/protocol"
	"gotest.tools/assert"
)

var testGlove = models.NewPeripheral("d0:39:72:bf:c6:51", "Beetle Glove", models.Glove)

func newTestFrame(t *testing.T, header, seq byte) protocol.Frame {
	payload := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120}
	f, err := protocol.Encode(header, seq, payload)
	assert.NilError(t, err)
	return f
}

func TestAckToken(t *testing.T) {
	s := NewSession(testGlove, nil)
	assert.Assert(t, !s.HandshakeAcked())
	r := s.OnNotification([]byte{'A'})
	assert.Equal(t, r.Outcome, Acknowledged)
	assert.Assert(t, s.HandshakeAcked())
	assert.Equal(t, s.BufferLen(), 0)
	s.ClearAck()
	assert.Assert(t, !s.HandshakeAcked())
}

func TestAckTokenIndependentOfHeader(t *testing.T) {
	for _, role := range []models.Role{models.Gun, models.Glove, models.Vest} {
		s := NewSession(models.NewPeripheral("addr", "b", role), nil)
		assert.Equal(t, s.OnNotification([]byte{65}).Outcome, Acknowledged)
	}
}

func TestAckTokenMidFragment(t *testing.T) {
	s := NewSession(testGlove, nil)
	f := newTestFrame(t, 77, 1)
	assert.Equal(t, s.OnNotification(f[:6]).Outcome, FrameFragmenting)
	assert.Equal(t, s.OnNotification([]byte{'A'}).Outcome, Acknowledged)
	assert.Equal(t, s.BufferLen(), 6)
	r := s.OnNotification(f[6:])
	assert.Equal(t, r.Outcome, FrameAccepted)
	assert.DeepEqual(t, r.Frame, f)
}

// scenario A
func TestAcceptThenDuplicate(t *testing.T) {
	s := NewSession(testGlove, nil)
	f := newTestFrame(t, 77, 1)
	r := s.OnNotification(f)
	assert.Equal(t, r.Outcome, FrameAccepted)
	assert.DeepEqual(t, r.Frame, f)
	assert.DeepEqual(t, s.Buffer(), []byte(f))
	s.Consume()

	r = s.OnNotification(f)
	assert.Equal(t, r.Outcome, FrameRejected)
	assert.Equal(t, r.Decision, protocol.RejectDuplicate)
	assert.Equal(t, s.BufferLen(), 0)
	assert.Equal(t, s.Counters().Snapshot().Duplicates, uint64(1))
}

// scenario B
func TestFragmentedFrame(t *testing.T) {
	s := NewSession(testGlove, nil)
	f := newTestFrame(t, 77, 2)
	assert.Equal(t, s.OnNotification(f[:5]).Outcome, FrameFragmenting)
	assert.Assert(t, s.Fragmenting())
	assert.Equal(t, s.OnNotification(f[5:10]).Outcome, FrameFragmenting)
	r := s.OnNotification(f[10:])
	assert.Equal(t, r.Outcome, FrameAccepted)
	assert.DeepEqual(t, r.Frame, f)
	seq, ok := s.LastSeq()
	assert.Assert(t, ok)
	assert.Equal(t, seq, byte(2))
	assert.Equal(t, s.Counters().Snapshot().Fragments, uint64(2))
}

// scenario C
func TestCorruptThenRecover(t *testing.T) {
	s := NewSession(testGlove, nil)
	bad := newTestFrame(t, 77, 3)
	bad[14] ^= 0x01
	r := s.OnNotification(bad)
	assert.Equal(t, r.Outcome, FrameRejected)
	assert.Equal(t, r.Decision, protocol.RejectChecksum)
	assert.Equal(t, s.BufferLen(), 0)

	r = s.OnNotification(newTestFrame(t, 77, 4))
	assert.Equal(t, r.Outcome, FrameAccepted)
	assert.Equal(t, s.Counters().Snapshot().Corrupt, uint64(1))
}

func TestForeignHeaderIgnored(t *testing.T) {
	s := NewSession(testGlove, nil)
	r := s.OnNotification(newTestFrame(t, 86, 1))
	assert.Equal(t, r.Outcome, Ignored)
	assert.Equal(t, s.BufferLen(), 0)
	_, ok := s.LastSeq()
	assert.Assert(t, !ok)
	assert.Equal(t, s.OnNotification(nil).Outcome, Ignored)
	assert.Equal(t, s.Counters().Snapshot().Noise, uint64(2))
}

func TestContinuationNotCheckedAgainstHeader(t *testing.T) {
	s := NewSession(testGlove, nil)
	f := newTestFrame(t, 77, 9)
	assert.Equal(t, s.OnNotification(f[:2]).Outcome, FrameFragmenting)
	// continuation bytes start with arbitrary payload values
	assert.Assert(t, f[2] != 77)
	assert.Equal(t, s.OnNotification(f[2:]).Outcome, FrameAccepted)
}

func TestOverflowRejected(t *testing.T) {
	s := NewSession(testGlove, nil)
	f := newTestFrame(t, 77, 9)
	assert.Equal(t, s.OnNotification(f[:8]).Outcome, FrameFragmenting)
	r := s.OnNotification(f[:8])
	assert.Equal(t, r.Outcome, FrameRejected)
	assert.Equal(t, r.Decision, protocol.RejectOverflow)
	assert.Equal(t, s.BufferLen(), 0)
}

func TestDiscardKeepsSequence(t *testing.T) {
	s := NewSession(testGlove, nil)
	f := newTestFrame(t, 77, 5)
	assert.Equal(t, s.OnNotification(f).Outcome, FrameAccepted)
	s.Discard()
	assert.Equal(t, s.BufferLen(), 0)
	seq, _ := s.LastSeq()
	assert.Equal(t, seq, byte(5))
}
