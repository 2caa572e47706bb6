package fleet

import (
	"context"
	"sync"

	"github.com/Krajiyah/beetle-relay/pkg/ble"
	"github.com/Krajiyah/beetle-relay/pkg/link"
	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/relay"
	"github.com/Krajiyah/beetle-relay/pkg/supervisor"
	"github.com/Krajiyah/beetle-relay/pkg/upstream"
	"github.com/bradfitz/slice"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TransportFactory opens a fresh transport for one peripheral
type TransportFactory func(models.Peripheral) (ble.Transport, error)

// Link bundles everything owned by one peripheral's worker
type Link struct {
	Peripheral models.Peripheral
	Supervisor *supervisor.Supervisor
	Dispatcher *relay.Dispatcher
}

// Coordinator brings up every configured peripheral and runs one dispatcher per link.
// Links share nothing except the upstream forwarder.
type Coordinator struct {
	peripherals  []models.Peripheral
	newTransport TransportFactory
	forwarder    upstream.Forwarder
	cfg          supervisor.Config
	logger       zerolog.Logger
	listener     models.RelayListener
	mutex        sync.RWMutex
	links        []*Link
}

func NewCoordinator(peripherals []models.Peripheral, factory TransportFactory, forwarder upstream.Forwarder,
	cfg supervisor.Config, logger zerolog.Logger, listener models.RelayListener) *Coordinator {
	if listener == nil {
		listener = models.NopListener{}
	}
	return &Coordinator{
		peripherals:  peripherals,
		newTransport: factory,
		forwarder:    forwarder,
		cfg:          cfg,
		logger:       logger,
		listener:     listener,
	}
}

// Init connects and handshakes every peripheral in order. Any failure is fatal for the
// whole fleet: links already up are closed and the error names the failing peripheral.
func (c *Coordinator) Init(ctx context.Context) error {
	links := make([]*Link, 0, len(c.peripherals))
	for _, p := range c.peripherals {
		l, err := c.establish(ctx, p)
		if err != nil {
			for _, up := range links {
				up.Supervisor.Close()
			}
			return errors.Wrapf(err, "%s could not connect", p)
		}
		links = append(links, l)
	}
	c.mutex.Lock()
	c.links = links
	c.mutex.Unlock()
	return nil
}

func (c *Coordinator) establish(ctx context.Context, p models.Peripheral) (*Link, error) {
	t, err := c.newTransport(p)
	if err != nil {
		return nil, errors.Wrap(err, "transport issue")
	}
	logger := c.logger.With().Str("peripheral", p.Name).Str("addr", p.Address).Logger()
	sup := supervisor.NewSupervisor(p, t, link.NewSession(p, nil), c.cfg, logger, c.listener)
	if err := sup.Establish(ctx); err != nil {
		sup.Close()
		return nil, err
	}
	return &Link{
		Peripheral: p,
		Supervisor: sup,
		Dispatcher: relay.NewDispatcher(sup, c.forwarder, logger, c.listener),
	}, nil
}

// Run initialises the fleet if needed and relays until ctx is done
func (c *Coordinator) Run(ctx context.Context) error {
	if len(c.Links()) == 0 {
		if err := c.Init(ctx); err != nil {
			return err
		}
	}
	links := c.Links()
	defer func() {
		for _, l := range links {
			l.Supervisor.Close()
		}
	}()
	c.logger.Info().Int("links", len(links)).Msg("relaying")
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range links {
		l := l
		g.Go(func() error { return l.Dispatcher.Run(gctx) })
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Coordinator) Links() []*Link {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return append([]*Link{}, c.links...)
}

// Snapshot reports every link ordered by peripheral name
func (c *Coordinator) Snapshot() []models.LinkStatus {
	links := c.Links()
	out := make([]models.LinkStatus, 0, len(links))
	for _, l := range links {
		out = append(out, models.LinkStatus{
			Peripheral: l.Peripheral,
			State:      l.Supervisor.State(),
			Stats:      l.Supervisor.Session().Counters().Snapshot(),
		})
	}
	slice.Sort(out, func(i, j int) bool {
		return out[i].Peripheral.Name < out[j].Peripheral.Name
	})
	return out
}
