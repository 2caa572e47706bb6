package protocol

import (
	"errors"

	"github.com/Krajiyah/beetle-relay/pkg/util"
)

var ErrChecksum = errors.New("protocol: checksum mismatch")

// Decision is the outcome of feeding one fragment into an Assembler
type Decision int

const (
	// Accumulate means the fragment was buffered and the frame is still incomplete
	Accumulate Decision = iota
	// AcceptComplete means the buffer now holds a valid frame with a fresh sequence number
	AcceptComplete
	// RejectDuplicate means a well formed frame repeated the last accepted sequence number
	RejectDuplicate
	// RejectChecksum means the trailing checksum did not match
	RejectChecksum
	// RejectOverflow means the fragments added up to more than one frame
	RejectOverflow
)

func (d Decision) String() string {
	return []string{"Accumulate", "AcceptComplete", "RejectDuplicate", "RejectChecksum", "RejectOverflow"}[d]
}

// Rejected reports whether the decision discarded the buffer
func (d Decision) Rejected() bool { return d >= RejectDuplicate }

// Sequence remembers the last accepted sequence number of a link
type Sequence struct {
	last byte
	set  bool
}

// Last returns the last accepted sequence number, ok is false before the first accept
func (s *Sequence) Last() (seq byte, ok bool) { return s.last, s.set }

// Is reports whether seq repeats the last accepted sequence number
func (s *Sequence) Is(seq byte) bool { return s.set && s.last == seq }

func (s *Sequence) Set(seq byte) {
	s.last = seq
	s.set = true
}

// Assembler accumulates fragments into a single fixed size frame.
// It never holds more than util.PacketSize bytes.
type Assembler struct {
	buf        []byte
	checksum   byte
	fragmented bool
}

func NewAssembler() *Assembler {
	return &Assembler{buf: make([]byte, 0, util.PacketSize)}
}

// Feed applies one fragment against the last accepted sequence number.
// Empty fragments leave the assembler untouched.
func (a *Assembler) Feed(fragment []byte, seq *Sequence) Decision {
	switch {
	case len(fragment) == 0:
		return Accumulate
	case len(fragment) == util.PacketSize:
		return a.feedFrame(fragment, seq)
	case len(fragment) > util.PacketSize:
		a.Reset()
		return RejectOverflow
	}
	total := len(a.buf) + len(fragment)
	if total < util.PacketSize {
		a.buf = append(a.buf, fragment...)
		a.checksum ^= Checksum(fragment)
		a.fragmented = true
		return Accumulate
	}
	if total > util.PacketSize {
		a.Reset()
		return RejectOverflow
	}
	a.buf = append(a.buf, fragment...)
	a.checksum ^= Checksum(fragment[:len(fragment)-1])
	a.fragmented = false
	return a.finalize(seq)
}

func (a *Assembler) feedFrame(frame []byte, seq *Sequence) Decision {
	a.buf = append(a.buf[:0], frame...)
	a.checksum = Checksum(frame[:len(frame)-1])
	a.fragmented = false
	return a.finalize(seq)
}

func (a *Assembler) finalize(seq *Sequence) Decision {
	f := Frame(a.buf)
	if a.checksum != f.Trailer() {
		a.Reset()
		return RejectChecksum
	}
	if seq.Is(f.Seq()) {
		a.Reset()
		return RejectDuplicate
	}
	seq.Set(f.Seq())
	return AcceptComplete
}

// Bytes returns a copy of the buffered bytes
func (a *Assembler) Bytes() []byte {
	out := make([]byte, len(a.buf))
	copy(out, a.buf)
	return out
}

func (a *Assembler) Len() int         { return len(a.buf) }
func (a *Assembler) Fragmented() bool { return a.fragmented }
func (a *Assembler) Checksum() byte   { return a.checksum }
func (a *Assembler) Complete() bool   { return len(a.buf) == util.PacketSize }

// Reset empties the buffer and the running checksum
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.checksum = 0
	a.fragmented = false
}
