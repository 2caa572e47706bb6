package ble

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Write sends data to the characteristic without waiting for a write response
func (c *RealConnection) Write(h Handle, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.cln == nil {
		return ErrNotConnected
	}
	if c.isDisconnected() {
		return ErrDisconnected
	}
	char, ok := c.characteristics[h]
	if !ok {
		return errors.Wrapf(ErrNoCharacteristic, "handle %d", h)
	}
	if err := c.cln.WriteCharacteristic(char, data, true); err != nil {
		return c.classify(errors.Wrap(err, "WriteCharacteristic issue"))
	}
	return nil
}

// WaitForNotification returns the next pending notification, a disconnect, or ok=false after timeout
func (c *RealConnection) WaitForNotification(ctx context.Context, timeout time.Duration) (Notification, bool, error) {
	c.mutex.Lock()
	notifications, disconnected := c.notifications, c.disconnected
	c.mutex.Unlock()
	if notifications == nil {
		return Notification{}, false, ErrNotConnected
	}
	select {
	case n := <-notifications:
		return n, true, nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case n := <-notifications:
		return n, true, nil
	case <-disconnected:
		return Notification{}, false, ErrDisconnected
	case <-timer.C:
		return Notification{}, false, nil
	case <-ctx.Done():
		return Notification{}, false, ctx.Err()
	}
}
