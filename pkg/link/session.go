package link

import (
	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/protocol"
	"github.com/Krajiyah/beetle-relay/pkg/util"
)

// Outcome classifies one notification after the session has processed it
type Outcome int

const (
	// Acknowledged means the notification was the single ack token
	Acknowledged Outcome = iota
	// FrameAccepted means the buffer now holds a complete, fresh, valid frame
	FrameAccepted
	// FrameFragmenting means a partial frame was buffered
	FrameFragmenting
	// FrameRejected means a corrupt, duplicate or oversized frame was discarded
	FrameRejected
	// Ignored means the bytes did not start with this link's header and no frame was in progress
	Ignored
)

func (o Outcome) String() string {
	return []string{"Acknowledged", "FrameAccepted", "FrameFragmenting", "FrameRejected", "Ignored"}[o]
}

// Result is what OnNotification reports back to the dispatcher
type Result struct {
	Outcome  Outcome
	Decision protocol.Decision
	// Frame is set only for FrameAccepted
	Frame protocol.Frame
}

// Session holds the protocol state of one link. It is owned by a single worker goroutine.
type Session struct {
	peripheral models.Peripheral
	header     byte
	seq        protocol.Sequence
	assembler  *protocol.Assembler
	handAck    bool
	counters   *models.Counters
}

func NewSession(p models.Peripheral, counters *models.Counters) *Session {
	if counters == nil {
		counters = &models.Counters{}
	}
	return &Session{
		peripheral: p,
		header:     p.Header(),
		assembler:  protocol.NewAssembler(),
		counters:   counters,
	}
}

// OnNotification classifies and applies one chunk of bytes delivered by the transport
func (s *Session) OnNotification(data []byte) Result {
	if len(data) == 1 && data[0] == util.AckToken {
		s.handAck = true
		s.counters.IncAcks()
		return Result{Outcome: Acknowledged}
	}
	if len(data) == 0 || (!s.assembler.Fragmented() && data[util.HeaderIndex] != s.header) {
		s.counters.IncNoise()
		return Result{Outcome: Ignored}
	}
	d := s.assembler.Feed(data, &s.seq)
	switch d {
	case protocol.AcceptComplete:
		s.counters.IncAccepted()
		return Result{Outcome: FrameAccepted, Decision: d, Frame: protocol.Frame(s.assembler.Bytes())}
	case protocol.Accumulate:
		s.counters.IncFragments()
		return Result{Outcome: FrameFragmenting, Decision: d}
	case protocol.RejectDuplicate:
		s.counters.IncDuplicates()
	case protocol.RejectChecksum:
		s.counters.IncCorrupt()
	case protocol.RejectOverflow:
		s.counters.IncOverflow()
	}
	return Result{Outcome: FrameRejected, Decision: d}
}

// Consume clears a forwarded frame out of the buffer and resets the running checksum
func (s *Session) Consume() { s.assembler.Reset() }

// Discard drops whatever is buffered without touching the sequence number
func (s *Session) Discard() { s.assembler.Reset() }

// HandshakeAcked reports whether an ack token arrived since the last ClearAck
func (s *Session) HandshakeAcked() bool { return s.handAck }

// ClearAck forgets earlier acks so a new handshake needs a fresh one
func (s *Session) ClearAck() { s.handAck = false }

// Buffer returns a copy of the assembly buffer
func (s *Session) Buffer() []byte { return s.assembler.Bytes() }

func (s *Session) BufferLen() int                { return s.assembler.Len() }
func (s *Session) Fragmenting() bool             { return s.assembler.Fragmented() }
func (s *Session) LastSeq() (byte, bool)         { return s.seq.Last() }
func (s *Session) Peripheral() models.Peripheral { return s.peripheral }
func (s *Session) Counters() *models.Counters    { return s.counters }
