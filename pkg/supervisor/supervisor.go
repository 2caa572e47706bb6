package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/ble"
	"github.com/Krajiyah/beetle-relay/pkg/link"
	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrRetriesExhausted means no connect attempt in a round succeeded
var ErrRetriesExhausted = errors.New("connect retries exhausted")

// Config tunes the connect and handshake loops
type Config struct {
	RetryCount     int
	WaitTimeout    time.Duration
	ReconnectDelay time.Duration
	CharUUID       string
}

func DefaultConfig() Config {
	return Config{
		RetryCount:     util.RetryCount,
		WaitTimeout:    util.WaitTimeout,
		ReconnectDelay: util.ReconnectDelay,
		CharUUID:       util.SerialCharUUID,
	}
}

// Supervisor owns the connection state of one peripheral. Only the link's worker goroutine
// drives it; State may be read from anywhere.
type Supervisor struct {
	peripheral models.Peripheral
	transport  ble.Transport
	session    *link.Session
	cfg        Config
	logger     zerolog.Logger
	listener   models.RelayListener
	state      atomic.Int32
	handle     ble.Handle
}

func NewSupervisor(p models.Peripheral, t ble.Transport, s *link.Session, cfg Config, logger zerolog.Logger, listener models.RelayListener) *Supervisor {
	if listener == nil {
		listener = models.NopListener{}
	}
	return &Supervisor{
		peripheral: p,
		transport:  t,
		session:    s,
		cfg:        cfg,
		logger:     logger,
		listener:   listener,
	}
}

func (s *Supervisor) State() models.ConnectionState { return models.ConnectionState(s.state.Load()) }
func (s *Supervisor) Session() *link.Session        { return s.session }
func (s *Supervisor) Peripheral() models.Peripheral { return s.peripheral }
func (s *Supervisor) Config() Config                { return s.cfg }

func (s *Supervisor) setState(state models.ConnectionState) {
	if models.ConnectionState(s.state.Swap(int32(state))) == state {
		return
	}
	s.logger.Info().Str("state", state.String()).Msg("connection state changed")
	s.listener.OnStateChanged(s.peripheral, state)
}

// MarkDisconnected records a link loss noticed outside the supervisor
func (s *Supervisor) MarkDisconnected() { s.setState(models.Disconnected) }

// ConnectWithRetries makes up to maxAttempts connect attempts. Each attempt dials the
// peripheral and discovers the serial characteristic.
func (s *Supervisor) ConnectWithRetries(ctx context.Context, maxAttempts int) error {
	s.setState(models.Connecting)
	err := retry(ctx, maxAttempts, func(left int, err error) {
		s.logger.Warn().Err(err).Int("attempts_left", left).Msg("connect attempt failed")
	}, func() error {
		return s.connect(ctx)
	})
	if err != nil {
		s.setState(models.Disconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error().Err(err).Int("attempts", maxAttempts).Msg("could not connect")
		return errors.Wrapf(ErrRetriesExhausted, "%s after %d attempts: %v", s.peripheral, maxAttempts, err)
	}
	s.setState(models.ConnectedNoHandshake)
	return nil
}

func (s *Supervisor) connect(ctx context.Context) error {
	s.logger.Info().Msg("connecting")
	if err := s.transport.Connect(ctx, s.peripheral.Address); err != nil {
		return err
	}
	h, err := s.transport.DiscoverCharacteristic(s.cfg.CharUUID)
	if err != nil {
		s.transport.Close()
		return err
	}
	s.handle = h
	s.logger.Info().Msg("connected")
	return nil
}

// InitHandshake keeps requesting a handshake until the Beetle acks it. There is no attempt
// cap: a powered Beetle always answers. A disconnect ends the handshake with ErrDisconnected.
func (s *Supervisor) InitHandshake(ctx context.Context) error {
	s.session.ClearAck()
	s.session.Discard()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.logger.Debug().Msg("handshake in progress")
		if err := s.Write([]byte{util.HandshakeToken}); err != nil {
			if ble.IsDisconnect(err) {
				return s.handshakeLost(err)
			}
			s.logger.Warn().Err(err).Msg("handshake request write failed")
		}
		n, ok, err := s.Wait(ctx)
		if err != nil {
			if ble.IsDisconnect(err) {
				return s.handshakeLost(err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("handshake wait failed")
			continue
		}
		if !ok {
			continue
		}
		if !isAck(n.Data) {
			s.logger.Debug().Hex("data", n.Data).Msg("ignoring data before handshake")
			continue
		}
		s.session.OnNotification(n.Data)
		if !s.session.HandshakeAcked() {
			continue
		}
		s.logger.Info().Msg("handshake ack received")
		if err := s.Write([]byte{util.AckToken}); err != nil {
			if ble.IsDisconnect(err) {
				return s.handshakeLost(err)
			}
			s.logger.Warn().Err(err).Msg("handshake confirm write failed")
			s.session.ClearAck()
			continue
		}
		s.setState(models.ConnectedHandshaked)
		return nil
	}
}

func (s *Supervisor) handshakeLost(err error) error {
	s.logger.Warn().Err(err).Msg("disconnected while handshaking")
	s.setState(models.Disconnected)
	return err
}

// Establish brings the link up for the first time. Running out of connect retries is
// fatal here: it means the Beetle is absent or misconfigured.
func (s *Supervisor) Establish(ctx context.Context) error {
	if err := s.ConnectWithRetries(ctx, s.cfg.RetryCount); err != nil {
		return err
	}
	for {
		err := s.InitHandshake(ctx)
		if err == nil || !ble.IsDisconnect(err) {
			return err
		}
		if err := s.ConnectWithRetries(ctx, s.cfg.RetryCount); err != nil {
			return err
		}
	}
}

// Recover re-establishes a link lost during steady state. It never gives up; it only
// returns early when ctx is done.
func (s *Supervisor) Recover(ctx context.Context) error {
	s.session.Counters().IncReconnects()
	s.setState(models.Disconnected)
	for {
		err := s.ConnectWithRetries(ctx, s.cfg.RetryCount)
		if err == nil {
			s.logger.Info().Msg("reconnected, reinitialising handshake")
			if err = s.InitHandshake(ctx); err == nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.listener.OnInternalError(s.peripheral, err)
		if !errors.Is(err, ErrRetriesExhausted) {
			continue
		}
		if err := sleep(ctx, s.cfg.ReconnectDelay); err != nil {
			return err
		}
	}
}

// Write sends data to the discovered serial characteristic
func (s *Supervisor) Write(data []byte) error {
	return s.transport.Write(s.handle, data)
}

// Wait blocks for the next notification for at most the configured wait timeout
func (s *Supervisor) Wait(ctx context.Context) (ble.Notification, bool, error) {
	return s.transport.WaitForNotification(ctx, s.cfg.WaitTimeout)
}

// Close releases the transport
func (s *Supervisor) Close() error {
	s.setState(models.Disconnected)
	return s.transport.Close()
}

func isAck(data []byte) bool { return len(data) == 1 && data[0] == util.AckToken }
