package ble

import (
	"context"
	"sync"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
)

// gattClient is the part of ble.Client the relay uses
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	CancelConnection() error
	Disconnected() <-chan struct{}
}

type coreMethods interface {
	SetDefaultDevice(time.Duration) error
	Dial(context.Context, ble.Addr) (gattClient, error)
}

var (
	deviceOnce sync.Once
	deviceErr  error
	// the HCI controller handles one pending connection at a time
	dialMutex sync.Mutex
)

type realCoreMethods struct{}

func (bc *realCoreMethods) SetDefaultDevice(timeout time.Duration) error {
	deviceOnce.Do(func() {
		deviceErr = util.CatchErrs(func() error {
			device, err := linux.NewDevice(ble.OptDialerTimeout(timeout))
			if err != nil {
				return errors.Wrap(err, "newLinuxDevice issue")
			}
			ble.SetDefaultDevice(device)
			return nil
		})
	})
	return deviceErr
}

func (bc *realCoreMethods) Dial(ctx context.Context, addr ble.Addr) (gattClient, error) {
	dialMutex.Lock()
	defer dialMutex.Unlock()
	var client ble.Client
	err := util.CatchErrs(func() error {
		c, e := ble.Dial(ctx, addr)
		client = c
		return e
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
