package beetle

import (
	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/go-ble/ble"
	"github.com/rs/zerolog"
)

func newSerialChar(e *Emulator, logger zerolog.Logger) *ble.Characteristic {
	c := ble.NewCharacteristic(ble.MustParse(util.SerialCharUUID))
	c.HandleWrite(ble.WriteHandlerFunc(generateWriteHandler(e)))
	c.HandleNotify(ble.NotifyHandlerFunc(generateNotifyHandler(e, logger)))
	return c
}

func generateWriteHandler(e *Emulator) func(req ble.Request, rsp ble.ResponseWriter) {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		e.OnWrite(append([]byte{}, req.Data()...))
	}
}

// the handler lives as long as the central stays subscribed
func generateNotifyHandler(e *Emulator, logger zerolog.Logger) func(req ble.Request, n ble.Notifier) {
	return func(req ble.Request, n ble.Notifier) {
		logger.Info().Msg("central subscribed")
		defer e.Reset()
		for {
			select {
			case <-n.Context().Done():
				logger.Info().Msg("central unsubscribed")
				return
			case data := <-e.Notifications():
				if _, err := n.Write(data); err != nil {
					logger.Warn().Err(err).Msg("notify failed")
					return
				}
			}
		}
	}
}
