package protocol

import (
	"errors"

	"github.com/Krajiyah/beetle-relay/pkg/util"
)

// PayloadSize is the number of application bytes carried by one frame
const PayloadSize = util.PacketSize - 3

var (
	ErrFrameLength   = errors.New("protocol: frame must be exactly 15 bytes")
	ErrPayloadLength = errors.New("protocol: payload must be exactly 12 bytes")
)

// Frame is one complete wire packet: [header][sequence][payload:12][checksum]
type Frame []byte

// Checksum XORs every byte of data together
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Encode builds a frame with a valid trailing checksum
func Encode(header, seq byte, payload []byte) (Frame, error) {
	if len(payload) != PayloadSize {
		return nil, ErrPayloadLength
	}
	f := make(Frame, 0, util.PacketSize)
	f = append(f, header, seq)
	f = append(f, payload...)
	f = append(f, Checksum(f))
	return f, nil
}

// Parse checks length and checksum of raw bytes and returns them as a Frame
func Parse(raw []byte) (Frame, error) {
	if len(raw) != util.PacketSize {
		return nil, ErrFrameLength
	}
	f := Frame(raw)
	if !f.Valid() {
		return nil, ErrChecksum
	}
	return f, nil
}

func (f Frame) Header() byte { return f[util.HeaderIndex] }
func (f Frame) Seq() byte    { return f[util.SeqIndex] }

// Payload returns the bytes between the sequence number and the checksum
func (f Frame) Payload() []byte { return f[util.SeqIndex+1 : len(f)-1] }

// Trailer returns the checksum byte the peripheral sent
func (f Frame) Trailer() byte { return f[len(f)-1] }

// Valid reports whether the trailing byte equals the XOR of all bytes before it
func (f Frame) Valid() bool {
	return len(f) == util.PacketSize && Checksum(f[:len(f)-1]) == f.Trailer()
}
