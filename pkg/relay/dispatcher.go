package relay

import (
	"context"

	"github.com/Krajiyah/beetle-relay/pkg/ble"
	"github.com/Krajiyah/beetle-relay/pkg/link"
	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/protocol"
	"github.com/Krajiyah/beetle-relay/pkg/supervisor"
	"github.com/Krajiyah/beetle-relay/pkg/upstream"
	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/rs/zerolog"
)

// Dispatcher is the steady state worker of one link. It owns the link's session and
// supervisor for as long as it runs.
type Dispatcher struct {
	sup       *supervisor.Supervisor
	session   *link.Session
	forwarder upstream.Forwarder
	logger    zerolog.Logger
	listener  models.RelayListener
}

func NewDispatcher(sup *supervisor.Supervisor, forwarder upstream.Forwarder, logger zerolog.Logger, listener models.RelayListener) *Dispatcher {
	if listener == nil {
		listener = models.NopListener{}
	}
	return &Dispatcher{
		sup:       sup,
		session:   sup.Session(),
		forwarder: forwarder,
		logger:    logger,
		listener:  listener,
	}
}

// Run relays frames until ctx is done. Transport disconnects are always recovered.
func (d *Dispatcher) Run(ctx context.Context) error {
	p := d.session.Peripheral()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, ok, err := d.sup.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !ble.IsDisconnect(err) {
				d.logger.Warn().Err(err).Msg("notification wait failed")
				d.listener.OnInternalError(p, err)
				continue
			}
			if err := d.recover(ctx, err); err != nil {
				return err
			}
			continue
		}
		if !ok {
			continue
		}
		if err := d.handle(n.Data); err != nil {
			if err := d.recover(ctx, err); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) recover(ctx context.Context, cause error) error {
	d.logger.Warn().Err(cause).Msg("disconnected, attempting reconnection")
	d.sup.MarkDisconnected()
	return d.sup.Recover(ctx)
}

// handle applies one notification. It only returns an error for a disconnect.
func (d *Dispatcher) handle(data []byte) error {
	p := d.session.Peripheral()
	r := d.session.OnNotification(data)
	switch r.Outcome {
	case link.Acknowledged:
		d.logger.Debug().Msg("acknowledgement received")
		return nil
	case link.Ignored:
		d.logger.Warn().Hex("data", data).Msg("notification without link header dropped")
		d.listener.OnFrameDropped(p, "noise")
		return nil
	case link.FrameRejected:
		d.logger.Warn().Str("reason", r.Decision.String()).Hex("data", data).Msg("invalid data, packet dropped")
		d.listener.OnFrameDropped(p, reason(r.Decision))
		return nil
	case link.FrameFragmenting:
		d.logger.Debug().Int("buffered", d.session.BufferLen()).Msg("appending fragmented data into buffer")
		return nil
	}
	return d.relay(r.Frame)
}

func (d *Dispatcher) relay(frame protocol.Frame) error {
	p := d.session.Peripheral()
	defer d.session.Consume()
	if err := d.forwarder.Forward(p, frame); err != nil {
		d.session.Counters().IncDropped()
		d.logger.Warn().Err(err).Uint8("seq", frame.Seq()).Msg("upstream rejected frame")
		d.listener.OnFrameDropped(p, "upstream")
	} else {
		d.session.Counters().IncForwarded()
		d.logger.Info().Uint8("seq", frame.Seq()).Msg("valid data relayed")
		d.listener.OnFrameForwarded(p, frame)
	}
	if err := d.sup.Write([]byte{util.AckToken}); err != nil {
		if ble.IsDisconnect(err) {
			return err
		}
		d.logger.Warn().Err(err).Msg("ack write failed")
		d.listener.OnInternalError(p, err)
	}
	return nil
}

func reason(d protocol.Decision) string {
	switch d {
	case protocol.RejectDuplicate:
		return "duplicate"
	case protocol.RejectChecksum:
		return "checksum"
	case protocol.RejectOverflow:
		return "overflow"
	}
	return d.String()
}
