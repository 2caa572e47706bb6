package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/supervisor"
	"github.com/Krajiyah/beetle-relay/pkg/upstream"
	"github.com/Krajiyah/beetle-relay/pkg/util"
	mapset "github.com/deckarep/golang-set"
	"github.com/pkg/errors"
)

const (
	UpstreamLog  = "log"
	UpstreamMQTT = "mqtt"

	// LogLevelEnv overrides relay.log_level when set
	LogLevelEnv = "RELAY_LOG_LEVEL"
)

var (
	ErrNoPeripherals    = errors.New("no peripherals configured")
	ErrDuplicateAddress = errors.New("duplicate peripheral address")
	ErrDuplicateHeader  = errors.New("duplicate peripheral header")
	ErrInvalid          = errors.New("invalid config")
)

type Relay struct {
	RetryCount     int           `toml:"retry_count"`
	WaitTimeout    time.Duration `toml:"wait_timeout"`
	ReconnectDelay time.Duration `toml:"reconnect_delay"`
	QueueSize      int           `toml:"queue_size"`
	LogLevel       string        `toml:"log_level"`
	LogPretty      bool          `toml:"log_pretty"`
	MetricsAddr    string        `toml:"metrics_addr"`
}

type Upstream struct {
	Kind     string `toml:"kind"`
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
}

type Peripheral struct {
	Address string `toml:"address"`
	Name    string `toml:"name"`
	Role    string `toml:"role"`
}

// Config is the whole relay configuration file
type Config struct {
	Relay       Relay        `toml:"relay"`
	Upstream    Upstream     `toml:"upstream"`
	Peripherals []Peripheral `toml:"peripheral"`
}

// DefaultFleet is the glove and vest pair the relay was first deployed with
func DefaultFleet() []Peripheral {
	return []Peripheral{
		{Address: "d0:39:72:bf:c6:51", Name: "Beetle Glove", Role: "glove"},
		{Address: "d0:39:72:bf:c6:47", Name: "Beetle Vest", Role: "vest"},
	}
}

func Default() Config {
	return Config{
		Relay: Relay{
			RetryCount:     util.RetryCount,
			WaitTimeout:    util.WaitTimeout,
			ReconnectDelay: util.ReconnectDelay,
			QueueSize:      256,
			LogLevel:       "info",
			LogPretty:      true,
		},
		Upstream: Upstream{
			Kind:  UpstreamLog,
			Topic: "beetle/relay",
		},
		Peripherals: DefaultFleet(),
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults.
// The peripheral list in a file replaces the default fleet entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cfg, err = decode(func(v interface{}) (toml.MetaData, error) { return toml.DecodeFile(path, v) })
			if err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, errors.Wrap(err, "Stat config issue")
		}
	}
	if lvl := os.Getenv(LogLevelEnv); lvl != "" {
		cfg.Relay.LogLevel = lvl
	}
	return cfg, cfg.Validate()
}

// Parse decodes a TOML document on top of the defaults, without the env override
func Parse(doc string) (Config, error) {
	cfg, err := decode(func(v interface{}) (toml.MetaData, error) { return toml.Decode(doc, v) })
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decode(fn func(interface{}) (toml.MetaData, error)) (Config, error) {
	cfg := Default()
	cfg.Peripherals = nil
	md, err := fn(&cfg)
	if err != nil {
		return cfg, errors.Wrap(err, "Decode config issue")
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return cfg, errors.Wrapf(ErrInvalid, "unknown key %s", keys[0])
	}
	if len(cfg.Peripherals) == 0 {
		cfg.Peripherals = DefaultFleet()
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Relay.RetryCount < 1 {
		return errors.Wrap(ErrInvalid, "retry_count must be at least 1")
	}
	if c.Relay.WaitTimeout <= 0 {
		return errors.Wrap(ErrInvalid, "wait_timeout must be positive")
	}
	if c.Relay.ReconnectDelay < 0 {
		return errors.Wrap(ErrInvalid, "reconnect_delay must not be negative")
	}
	if c.Relay.QueueSize < 1 {
		return errors.Wrap(ErrInvalid, "queue_size must be at least 1")
	}
	switch c.Upstream.Kind {
	case UpstreamLog:
	case UpstreamMQTT:
		if c.Upstream.Broker == "" {
			return errors.Wrap(ErrInvalid, "mqtt upstream needs a broker")
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown upstream kind %q", c.Upstream.Kind)
	}
	_, err := c.Fleet()
	return err
}

// Fleet turns the peripheral entries into descriptors, rejecting duplicates
func (c Config) Fleet() ([]models.Peripheral, error) {
	if len(c.Peripherals) == 0 {
		return nil, ErrNoPeripherals
	}
	addrs, headers := mapset.NewSet(), mapset.NewSet()
	fleet := make([]models.Peripheral, 0, len(c.Peripherals))
	for _, entry := range c.Peripherals {
		if entry.Address == "" {
			return nil, errors.Wrap(ErrInvalid, "peripheral without address")
		}
		role, err := models.ParseRole(entry.Role)
		if err != nil {
			return nil, errors.Wrapf(err, "peripheral %s", entry.Address)
		}
		if !addrs.Add(strings.ToLower(entry.Address)) {
			return nil, errors.Wrap(ErrDuplicateAddress, entry.Address)
		}
		if !headers.Add(role.Header()) {
			return nil, errors.Wrapf(ErrDuplicateHeader, "%s (%s)", entry.Address, role)
		}
		name := entry.Name
		if name == "" {
			r := role.String()
			name = "Beetle " + strings.ToUpper(r[:1]) + r[1:]
		}
		fleet = append(fleet, models.NewPeripheral(strings.ToLower(entry.Address), name, role))
	}
	return fleet, nil
}

func (c Config) Supervisor() supervisor.Config {
	cfg := supervisor.DefaultConfig()
	cfg.RetryCount = c.Relay.RetryCount
	cfg.WaitTimeout = c.Relay.WaitTimeout
	cfg.ReconnectDelay = c.Relay.ReconnectDelay
	return cfg
}

// MQTT builds the sink settings, falling back to clientID when none is configured
func (c Config) MQTT(clientID string) upstream.MQTTConfig {
	id := c.Upstream.ClientID
	if id == "" {
		id = clientID
	}
	return upstream.MQTTConfig{Broker: c.Upstream.Broker, Topic: c.Upstream.Topic, ClientID: id}
}
