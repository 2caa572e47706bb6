package internal

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/ble"
	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/pkg/errors"
)

// TestHandle is the characteristic handle ScriptedTransport hands out
const TestHandle ble.Handle = 0x25

// Event is one scripted result of WaitForNotification
type Event struct {
	Data       []byte
	Timeout    bool
	Disconnect bool
	Err        error
}

// ScriptedTransport is a ble.Transport that replays scripted events
type ScriptedTransport struct {
	mutex       sync.Mutex
	connectErrs []error
	events      []Event
	writes      [][]byte
	connects    int
	closes      int
	waits       int
	connected   bool
	autoAck     bool
	drained     chan struct{}
	drainedOnce sync.Once
}

// NewScriptedTransport returns a transport that answers every handshake request with an ack when autoAck is set
func NewScriptedTransport(autoAck bool) *ScriptedTransport {
	return &ScriptedTransport{autoAck: autoAck, drained: make(chan struct{})}
}

// FailConnects makes the next Connect calls return errs in order, nil entries succeed
func (t *ScriptedTransport) FailConnects(errs ...error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.connectErrs = append(t.connectErrs, errs...)
}

func (t *ScriptedTransport) Push(events ...Event) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.events = append(t.events, events...)
}

// PushData queues one notification per chunk
func (t *ScriptedTransport) PushData(chunks ...[]byte) {
	for _, c := range chunks {
		t.Push(Event{Data: c})
	}
}

// Drained is closed the first time a wait finds the script empty
func (t *ScriptedTransport) Drained() <-chan struct{} { return t.drained }

func (t *ScriptedTransport) Connect(ctx context.Context, addr string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.connects++
	if len(t.connectErrs) > 0 {
		err := t.connectErrs[0]
		t.connectErrs = t.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	t.connected = true
	return nil
}

func (t *ScriptedTransport) DiscoverCharacteristic(uuid string) (ble.Handle, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.connected {
		return 0, ble.ErrNotConnected
	}
	return TestHandle, nil
}

func (t *ScriptedTransport) Write(h ble.Handle, data []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.connected {
		return ble.ErrDisconnected
	}
	if h != TestHandle {
		return errors.Wrapf(ble.ErrNoCharacteristic, "handle %d", h)
	}
	t.writes = append(t.writes, append([]byte{}, data...))
	if t.autoAck && bytes.Equal(data, []byte{util.HandshakeToken}) {
		t.events = append([]Event{{Data: []byte{util.AckToken}}}, t.events...)
	}
	return nil
}

func (t *ScriptedTransport) WaitForNotification(ctx context.Context, timeout time.Duration) (ble.Notification, bool, error) {
	t.mutex.Lock()
	t.waits++
	if !t.connected {
		t.mutex.Unlock()
		return ble.Notification{}, false, ble.ErrDisconnected
	}
	if len(t.events) == 0 {
		t.mutex.Unlock()
		t.drainedOnce.Do(func() { close(t.drained) })
		select {
		case <-time.After(time.Millisecond):
			return ble.Notification{}, false, nil
		case <-ctx.Done():
			return ble.Notification{}, false, ctx.Err()
		}
	}
	e := t.events[0]
	t.events = t.events[1:]
	defer t.mutex.Unlock()
	switch {
	case e.Err != nil:
		return ble.Notification{}, false, e.Err
	case e.Disconnect:
		t.connected = false
		return ble.Notification{}, false, ble.ErrDisconnected
	case e.Timeout:
		return ble.Notification{}, false, nil
	}
	return ble.Notification{Handle: TestHandle, Data: e.Data}, true, nil
}

func (t *ScriptedTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.closes++
	t.connected = false
	return nil
}

// Writes returns a copy of every payload written so far
func (t *ScriptedTransport) Writes() [][]byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([][]byte{}, t.writes...)
}

// CountWrites counts writes equal to data
func (t *ScriptedTransport) CountWrites(data []byte) int {
	n := 0
	for _, w := range t.Writes() {
		if bytes.Equal(w, data) {
			n++
		}
	}
	return n
}

func (t *ScriptedTransport) Connects() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.connects
}

func (t *ScriptedTransport) Closes() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.closes
}

func (t *ScriptedTransport) Waits() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.waits
}

func (t *ScriptedTransport) Pending() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.events)
}
