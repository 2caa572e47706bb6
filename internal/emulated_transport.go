package internal

import (
	"context"
	"sync"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/beetle"
	"github.com/Krajiyah/beetle-relay/pkg/ble"
)

// EmulatedTransport is a ble.Transport wired straight to a beetle.Emulator.
// Each idle wait ticks the emulator once so it streams at the relay's pace.
type EmulatedTransport struct {
	emulator  *beetle.Emulator
	mutex     sync.Mutex
	connected bool
	dropped   bool
	connects  int
}

func NewEmulatedTransport(e *beetle.Emulator) *EmulatedTransport {
	return &EmulatedTransport{emulator: e}
}

func (t *EmulatedTransport) Connect(ctx context.Context, addr string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.connects++
	t.connected, t.dropped = true, false
	return nil
}

func (t *EmulatedTransport) DiscoverCharacteristic(uuid string) (ble.Handle, error) {
	return TestHandle, nil
}

func (t *EmulatedTransport) Write(h ble.Handle, data []byte) error {
	if err := t.check(); err != nil {
		return err
	}
	t.emulator.OnWrite(data)
	return nil
}

func (t *EmulatedTransport) WaitForNotification(ctx context.Context, timeout time.Duration) (ble.Notification, bool, error) {
	if err := t.check(); err != nil {
		return ble.Notification{}, false, err
	}
	select {
	case data := <-t.emulator.Notifications():
		return ble.Notification{Handle: TestHandle, Data: data}, true, nil
	default:
	}
	if err := t.emulator.Tick(); err != nil {
		return ble.Notification{}, false, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-t.emulator.Notifications():
		return ble.Notification{Handle: TestHandle, Data: data}, true, nil
	case <-timer.C:
		return ble.Notification{}, false, nil
	case <-ctx.Done():
		return ble.Notification{}, false, ctx.Err()
	}
}

// Drop simulates the Beetle going out of range
func (t *EmulatedTransport) Drop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.dropped = true
	t.emulator.Reset()
}

func (t *EmulatedTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.connected = false
	t.emulator.Reset()
	return nil
}

func (t *EmulatedTransport) Connects() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.connects
}

func (t *EmulatedTransport) check() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.dropped {
		t.connected = false
		return ble.ErrDisconnected
	}
	if !t.connected {
		return ble.ErrNotConnected
	}
	return nil
}
