package beetle

import (
	"context"
	"sync"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/protocol"
	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/rs/zerolog"
)

// DefaultRetransmits is how many times an unacknowledged frame is sent again before moving on
const DefaultRetransmits = 2

// PayloadFunc produces the 12 payload bytes for a sequence number
type PayloadFunc func(seq byte) []byte

type Option func(*Emulator)

func WithPayload(fn PayloadFunc) Option { return func(e *Emulator) { e.payload = fn } }

// WithFragmentation splits every frame into two notifications at byte offset split
func WithFragmentation(split int) Option { return func(e *Emulator) { e.split = split } }

// WithCorruption breaks the checksum of the first transmission of every nth frame
func WithCorruption(every int) Option { return func(e *Emulator) { e.corruptEvery = every } }

func WithRetransmits(n int) Option { return func(e *Emulator) { e.retransmits = n } }

func WithLogger(logger zerolog.Logger) Option { return func(e *Emulator) { e.logger = logger } }

// Emulator plays the Beetle side of the serial protocol: it answers handshakes and
// streams sequenced frames, waiting for an ack before advancing the sequence.
type Emulator struct {
	role         models.Role
	payload      PayloadFunc
	split        int
	corruptEvery int
	retransmits  int
	logger       zerolog.Logger
	out          chan []byte

	mutex      sync.Mutex
	seq        byte
	greeted    bool
	handshaked bool
	unacked    protocol.Frame
	attempts   int
	sent       int
}

func NewEmulator(role models.Role, opts ...Option) *Emulator {
	e := &Emulator{
		role:        role,
		payload:     counterPayload,
		retransmits: DefaultRetransmits,
		logger:      zerolog.Nop(),
		out:         make(chan []byte, util.NotificationBuffer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func counterPayload(seq byte) []byte {
	p := make([]byte, protocol.PayloadSize)
	for i := range p {
		p[i] = seq + byte(i)
	}
	return p
}

// Notifications carries every chunk the emulator wants pushed to the central
func (e *Emulator) Notifications() <-chan []byte { return e.out }

func (e *Emulator) Role() models.Role { return e.role }

func (e *Emulator) Handshaked() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.handshaked
}

// Sent counts frame transmissions, retransmissions included
func (e *Emulator) Sent() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.sent
}

// OnWrite handles bytes the central wrote to the serial characteristic
func (e *Emulator) OnWrite(data []byte) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	switch {
	case len(data) == 1 && data[0] == util.HandshakeToken:
		e.greeted, e.handshaked = true, false
		e.unacked, e.attempts = nil, 0
		e.emit([]byte{util.AckToken})
	case len(data) == 1 && data[0] == util.AckToken:
		if e.greeted && !e.handshaked {
			e.handshaked = true
			e.logger.Info().Str("role", e.role.String()).Msg("handshake complete")
			return
		}
		e.unacked, e.attempts = nil, 0
	default:
		e.logger.Debug().Bytes("data", data).Msg("ignoring write")
	}
}

// Tick sends the pending frame again, or the next one once the last was acked
func (e *Emulator) Tick() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if !e.handshaked {
		return nil
	}
	if e.unacked != nil && e.attempts > e.retransmits {
		e.unacked, e.attempts = nil, 0
	}
	if e.unacked == nil {
		e.seq++
		f, err := protocol.Encode(e.role.Header(), e.seq, e.payload(e.seq))
		if err != nil {
			return err
		}
		e.unacked = f
	}
	wire := append([]byte{}, e.unacked...)
	if e.attempts == 0 && e.corruptEvery > 0 && int(e.seq)%e.corruptEvery == 0 {
		wire[len(wire)-1] ^= 0xFF
	}
	e.attempts++
	e.sent++
	if e.split > 0 && e.split < len(wire) {
		e.emit(wire[:e.split])
		e.emit(wire[e.split:])
		return nil
	}
	e.emit(wire)
	return nil
}

// Reset forgets the handshake, as a Beetle does when the central goes away
func (e *Emulator) Reset() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.greeted, e.handshaked = false, false
	e.unacked, e.attempts = nil, 0
}

// Run ticks every interval until ctx is done
func (e *Emulator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				return err
			}
		}
	}
}

func (e *Emulator) emit(data []byte) {
	select {
	case e.out <- data:
	default:
		e.logger.Warn().Bytes("data", data).Msg("notification backlog full, dropping")
	}
}
