package ble

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrDisconnected is returned by Write and WaitForNotification once the peripheral dropped the link
	ErrDisconnected = errors.New("peripheral disconnected")
	// ErrNotConnected is returned when an operation needs a connection that was never made
	ErrNotConnected = errors.New("not connected")
	// ErrNoCharacteristic is returned when the peripheral does not expose the requested characteristic
	ErrNoCharacteristic = errors.New("characteristic not found")
)

// Handle identifies a discovered characteristic on the current connection
type Handle uint16

// Notification is one chunk of bytes pushed by the peripheral
type Notification struct {
	Handle Handle
	Data   []byte
}

// Transport is everything the relay needs from the wireless link to one peripheral.
// A Transport is used by a single link worker at a time.
type Transport interface {
	Connect(ctx context.Context, addr string) error
	DiscoverCharacteristic(uuid string) (Handle, error)
	Write(h Handle, data []byte) error
	// WaitForNotification blocks up to timeout. ok is false on timeout.
	WaitForNotification(ctx context.Context, timeout time.Duration) (n Notification, ok bool, err error)
	Close() error
}

// IsDisconnect reports whether err means the link was lost
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
