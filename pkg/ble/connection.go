package ble

import (
	"context"
	"sync"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RealConnection is a Transport backed by the host's HCI controller
type RealConnection struct {
	timeout         time.Duration
	methods         coreMethods
	logger          zerolog.Logger
	mutex           sync.Mutex
	cln             gattClient
	disconnected    <-chan struct{}
	characteristics map[Handle]*ble.Characteristic
	notifications   chan Notification
}

// NewRealConnection sets up the default HCI device (once per process) and returns an unconnected transport
func NewRealConnection(timeout time.Duration, logger zerolog.Logger) (*RealConnection, error) {
	return newRealConnection(timeout, logger, &realCoreMethods{})
}

func newRealConnection(timeout time.Duration, logger zerolog.Logger, methods coreMethods) (*RealConnection, error) {
	if err := methods.SetDefaultDevice(timeout); err != nil {
		return nil, errors.Wrap(err, "SetDefaultDevice issue")
	}
	return &RealConnection{
		timeout:         timeout,
		methods:         methods,
		logger:          logger,
		characteristics: map[Handle]*ble.Characteristic{},
	}, nil
}

// Connect dials addr, dropping any previous connection first
func (c *RealConnection) Connect(ctx context.Context, addr string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cancelLocked()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	cln, err := c.methods.Dial(ble.WithSigHandler(ctx, cancel), ble.NewAddr(addr))
	if err != nil {
		return errors.Wrap(err, "Dial issue")
	}
	c.cln = cln
	c.disconnected = cln.Disconnected()
	c.characteristics = map[Handle]*ble.Characteristic{}
	c.notifications = make(chan Notification, util.NotificationBuffer)
	return nil
}

// DiscoverCharacteristic finds uuid in the peripheral's profile and subscribes to its notifications
func (c *RealConnection) DiscoverCharacteristic(uuid string) (Handle, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.cln == nil {
		return 0, ErrNotConnected
	}
	var p *ble.Profile
	err := util.Timeout(func() error {
		return util.CatchErrs(func() error {
			var e error
			p, e = c.cln.DiscoverProfile(true)
			return e
		})
	}, util.DiscoverTimeout)
	if err != nil {
		return 0, c.classify(errors.Wrap(err, "DiscoverProfile issue"))
	}
	char := findCharacteristic(p, uuid)
	if char == nil {
		return 0, errors.Wrap(ErrNoCharacteristic, uuid)
	}
	h := Handle(char.ValueHandle)
	c.characteristics[h] = char
	if char.CCCD == nil {
		c.logger.Warn().Str("uuid", uuid).Msg("characteristic has no CCCD, relying on unsolicited notifications")
		return h, nil
	}
	notifications := c.notifications
	err = c.cln.Subscribe(char, false, func(req []byte) {
		data := make([]byte, len(req))
		copy(data, req)
		enqueue(notifications, Notification{Handle: h, Data: data})
	})
	if err != nil {
		return 0, c.classify(errors.Wrap(err, "Subscribe issue"))
	}
	return h, nil
}

// Close drops the current connection, if any
func (c *RealConnection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cancelLocked()
}

func (c *RealConnection) cancelLocked() error {
	if c.cln == nil {
		return nil
	}
	cln := c.cln
	c.cln = nil
	return util.CatchErrs(cln.CancelConnection)
}

func (c *RealConnection) isDisconnected() bool {
	if c.disconnected == nil {
		return false
	}
	select {
	case <-c.disconnected:
		return true
	default:
		return false
	}
}

func (c *RealConnection) classify(err error) error {
	if c.isDisconnected() {
		return errors.Wrap(ErrDisconnected, err.Error())
	}
	return err
}

func findCharacteristic(p *ble.Profile, uuid string) *ble.Characteristic {
	if p == nil {
		return nil
	}
	for _, s := range p.Services {
		for _, char := range s.Characteristics {
			if util.UuidEqualStr(char.UUID, uuid) {
				return char
			}
		}
	}
	return nil
}

// enqueue never blocks the HCI goroutine: when the link worker falls behind the oldest chunk is dropped
func enqueue(ch chan Notification, n Notification) {
	for {
		select {
		case ch <- n:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
