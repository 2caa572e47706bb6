package beetle

import (
	"context"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Serve exposes e as a Bluno serial service on the local HCI device and advertises
// name until ctx is done. Frames are ticked out every interval.
func Serve(ctx context.Context, name string, e *Emulator, interval time.Duration, logger zerolog.Logger) error {
	d, err := linux.NewDevice()
	if err != nil {
		return errors.Wrap(err, "NewDevice issue")
	}
	ble.SetDefaultDevice(d)
	defer ble.Stop()

	svc := ble.NewService(ble.MustParse(util.SerialServiceUUID))
	svc.AddCharacteristic(newSerialChar(e, logger))
	if err := ble.AddService(svc); err != nil {
		return errors.Wrap(err, "AddService issue")
	}
	go func() {
		if err := e.Run(ctx, interval); err != nil && errors.Cause(err) != context.Canceled {
			logger.Error().Err(err).Msg("emulator stopped")
		}
	}()
	logger.Info().Str("name", name).Str("role", e.Role().String()).Msg("advertising")
	err = ble.AdvertiseNameAndServices(ctx, name, svc.UUID)
	if ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(err, "Advertise issue")
}
