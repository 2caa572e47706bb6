package upstream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/golang-collections/go-datastructures/queue"
	"github.com/rs/zerolog"
)

const (
	getBatch     = 16
	drainPoll    = 5 * time.Millisecond
	drainTimeout = 2 * time.Second
)

// Queue is the Forwarder shared by all links. Forward only enqueues; a single sender
// goroutine delivers to the sink so sink writes are serialized.
type Queue struct {
	items     *queue.Queue
	size      int64
	sink      Sink
	relayID   string
	logger    zerolog.Logger
	closed    atomic.Bool
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	sent      atomic.Uint64
	failed    atomic.Uint64
}

func NewQueue(sink Sink, size int, relayID string, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		items:   queue.New(int64(size)),
		size:    int64(size),
		sink:    sink,
		relayID: relayID,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the sender goroutine
func (q *Queue) Start() {
	q.startOnce.Do(func() { go q.run() })
}

// Forward wraps frame in an envelope and enqueues it without blocking. The bound is
// checked before insertion, so concurrent links may overshoot it by at most one item each.
func (q *Queue) Forward(p models.Peripheral, frame []byte) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if q.items.Len() >= q.size {
		return ErrQueueFull
	}
	env := models.Envelope{
		RelayID:    q.relayID,
		Peripheral: p.Name,
		Address:    p.Address,
		Role:       p.Role.String(),
		Frame:      append([]byte{}, frame...),
		ReceivedAt: util.UnixTS(),
	}
	if len(frame) > util.SeqIndex {
		env.Seq = frame[util.SeqIndex]
	}
	if err := q.items.Put(env); err != nil {
		return ErrClosed
	}
	return nil
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		batch, err := q.items.Get(getBatch)
		if err != nil {
			return
		}
		for _, item := range batch {
			env := item.(models.Envelope)
			if err := q.sink.Send(env); err != nil {
				q.failed.Add(1)
				q.logger.Warn().Err(err).Str("peripheral", env.Peripheral).Uint8("seq", env.Seq).Msg("upstream send failed")
				continue
			}
			q.sent.Add(1)
		}
	}
}

func (q *Queue) Len() int       { return int(q.items.Len()) }
func (q *Queue) Sent() uint64   { return q.sent.Load() }
func (q *Queue) Failed() uint64 { return q.failed.Load() }

// Close stops accepting frames, gives the sender a short while to drain what is queued,
// then stops it and closes the sink.
func (q *Queue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		deadline := time.Now().Add(drainTimeout)
		for q.items.Len() > 0 && time.Now().Before(deadline) {
			time.Sleep(drainPoll)
		}
		q.items.Dispose()
		q.Start()
		<-q.done
		err = q.sink.Close()
	})
	return err
}
