package upstream

import (
	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/pkg/errors"
)

var (
	// ErrQueueFull is returned by Queue.Forward when the sender has fallen behind
	ErrQueueFull = errors.New("upstream queue full")
	// ErrClosed is returned once the queue has been closed
	ErrClosed = errors.New("upstream queue closed")
)

// Forwarder hands a complete frame to the aggregator. Implementations must not block
// one link's processing on another link.
type Forwarder interface {
	Forward(p models.Peripheral, frame []byte) error
}

// Sink delivers envelopes to the aggregator. Send is only ever called from one goroutine.
type Sink interface {
	Send(models.Envelope) error
	Close() error
}
