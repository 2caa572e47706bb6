package protocol

import (
	"testing"

	"github.com/Krajiyah/beetle-relay/pkg/util"
	"gotest.tools/assert"
)

const testHeader = 77

func newTestFrame(t *testing.T, seq byte) Frame {
	payload := make([]byte, PayloadSize)
	for i := range payload {
		payload[i] = byte(i*7) + seq
	}
	f, err := Encode(testHeader, seq, payload)
	assert.NilError(t, err)
	return f
}

func feedAll(a *Assembler, seq *Sequence, chunks ...[]byte) Decision {
	var d Decision
	for _, c := range chunks {
		d = a.Feed(c, seq)
	}
	return d
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, Checksum(nil), byte(0))
	assert.Equal(t, Checksum([]byte{0x0f, 0xf0}), byte(0xff))
	assert.Equal(t, Checksum([]byte{77, 1, 77, 1}), byte(0))
}

func TestAcceptCompleteFrame(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 1)
	assert.Equal(t, a.Feed(f, seq), AcceptComplete)
	assert.DeepEqual(t, a.Bytes(), []byte(f))
	last, ok := seq.Last()
	assert.Assert(t, ok)
	assert.Equal(t, last, byte(1))
}

func TestDuplicateRejected(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 1)
	assert.Equal(t, a.Feed(f, seq), AcceptComplete)
	a.Reset()
	assert.Equal(t, a.Feed(f, seq), RejectDuplicate)
	assert.Equal(t, a.Len(), 0)
	last, _ := seq.Last()
	assert.Equal(t, last, byte(1))
}

func TestFirstFrameNeverDuplicate(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	assert.Equal(t, a.Feed(newTestFrame(t, 0), seq), AcceptComplete)
}

func TestCorruptChecksumRejected(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 4)
	f[len(f)-1] ^= 0x01
	assert.Equal(t, a.Feed(f, seq), RejectChecksum)
	assert.Equal(t, a.Len(), 0)
	assert.Equal(t, a.Checksum(), byte(0))
	_, ok := seq.Last()
	assert.Assert(t, !ok)

	assert.Equal(t, a.Feed(newTestFrame(t, 5), seq), AcceptComplete)
}

func TestCorruptPayloadRejected(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 4)
	f[6] ^= 0x80
	assert.Equal(t, a.Feed(f, seq), RejectChecksum)
}

func TestChecksumCheckedBeforeDuplicate(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 9)
	assert.Equal(t, a.Feed(f, seq), AcceptComplete)
	a.Reset()
	bad := append(Frame{}, f...)
	bad[len(bad)-1] ^= 0x02
	assert.Equal(t, a.Feed(bad, seq), RejectChecksum)
}

func TestReassembleFiveFiveFive(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 2)
	assert.Equal(t, a.Feed(f[:5], seq), Accumulate)
	assert.Assert(t, a.Fragmented())
	assert.Equal(t, a.Feed(f[5:10], seq), Accumulate)
	assert.Equal(t, a.Len(), 10)
	assert.Equal(t, a.Feed(f[10:], seq), AcceptComplete)
	assert.Assert(t, !a.Fragmented())
	assert.Assert(t, a.Complete())
	assert.DeepEqual(t, a.Bytes(), []byte(f))
}

func TestReassembledCorruptRejected(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 2)
	f[12] ^= 0x10
	assert.Equal(t, feedAll(a, seq, f[:7], f[7:]), RejectChecksum)
	assert.Equal(t, a.Len(), 0)
	assert.Equal(t, a.Checksum(), byte(0))
	assert.Assert(t, !a.Fragmented())
}

func TestReassembledDuplicateRejected(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 3)
	assert.Equal(t, a.Feed(f, seq), AcceptComplete)
	a.Reset()
	assert.Equal(t, feedAll(a, seq, f[:3], f[3:]), RejectDuplicate)
	assert.Equal(t, a.Len(), 0)
}

func TestOverflowRejected(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 3)
	assert.Equal(t, a.Feed(f[:10], seq), Accumulate)
	assert.Equal(t, a.Feed(f[:10], seq), RejectOverflow)
	assert.Equal(t, a.Len(), 0)
	assert.Equal(t, a.Feed(make([]byte, util.PacketSize+1), seq), RejectOverflow)
	assert.Equal(t, a.Feed(f, seq), AcceptComplete)
}

func TestFullFrameReplacesPartialBuffer(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	f := newTestFrame(t, 6)
	assert.Equal(t, a.Feed(f[:4], seq), Accumulate)
	assert.Equal(t, a.Feed(f, seq), AcceptComplete)
	assert.DeepEqual(t, a.Bytes(), []byte(f))
	assert.Assert(t, !a.Fragmented())
}

func TestEmptyFragmentIgnored(t *testing.T) {
	a := NewAssembler()
	seq := &Sequence{}
	assert.Equal(t, a.Feed(nil, seq), Accumulate)
	assert.Equal(t, a.Len(), 0)
	assert.Assert(t, !a.Fragmented())
}

// every composition of the frame into consecutive chunks must decide like the whole frame
func TestReassemblyAssociative(t *testing.T) {
	frames := map[string]func() (Frame, *Sequence){
		"fresh": func() (Frame, *Sequence) { return newTestFrame(t, 8), &Sequence{} },
		"duplicate": func() (Frame, *Sequence) {
			s := &Sequence{}
			s.Set(8)
			return newTestFrame(t, 8), s
		},
		"corrupt": func() (Frame, *Sequence) {
			f := newTestFrame(t, 8)
			f[3] ^= 0x04
			return f, &Sequence{}
		},
	}
	for name, build := range frames {
		t.Run(name, func(t *testing.T) {
			f, seq := build()
			expected := NewAssembler().Feed(f, seq)
			for mask := 0; mask < 1<<(util.PacketSize-1); mask++ {
				f, seq := build()
				a := NewAssembler()
				start := 0
				var d Decision
				for i := 1; i <= util.PacketSize; i++ {
					if i == util.PacketSize || mask&(1<<(i-1)) != 0 {
						d = a.Feed(f[start:i], seq)
						start = i
					}
				}
				if d != expected {
					t.Fatalf("mask %b: got %s, want %s", mask, d, expected)
				}
				if expected == AcceptComplete {
					assert.DeepEqual(t, a.Bytes(), []byte(f))
				} else {
					assert.Equal(t, a.Len(), 0)
				}
			}
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, RejectDuplicate.String(), "RejectDuplicate")
	assert.Assert(t, RejectOverflow.Rejected())
	assert.Assert(t, !AcceptComplete.Rejected())
	assert.Assert(t, !Accumulate.Rejected())
}
