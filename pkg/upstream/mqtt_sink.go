package upstream

import (
	"fmt"
	"strings"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/models"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
	mqttQuiesceMillis  = 250
)

// MQTTConfig points the sink at a broker
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each envelope as JSON to <topic>/<peripheral>
type MQTTSink struct {
	client publisher
	topic  string
	logger zerolog.Logger
}

// NewMQTTSink connects to the broker. The client reconnects on its own afterwards.
func NewMQTTSink(cfg MQTTConfig, logger zerolog.Logger) (*MQTTSink, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = fmt.Sprintf("tcp://%s", broker)
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", broker).Str("client_id", cfg.ClientID).Msg("mqtt connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost, will auto-reconnect")
	}
	client := mqtt.NewClient(opts)
	logger.Info().Str("broker", broker).Msg("connecting to mqtt broker")
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "mqtt connection failed")
	}
	return newMQTTSink(client, cfg.Topic, logger), nil
}

func newMQTTSink(client publisher, topic string, logger zerolog.Logger) *MQTTSink {
	return &MQTTSink{client: client, topic: strings.TrimRight(topic, "/"), logger: logger}
}

// TopicFor returns the topic frames from the named peripheral are published on
func (s *MQTTSink) TopicFor(peripheral string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(peripheral), "-"))
	return s.topic + "/" + slug
}

func (s *MQTTSink) Send(env models.Envelope) error {
	payload, err := env.Data()
	if err != nil {
		return errors.Wrap(err, "envelope encode issue")
	}
	token := s.client.Publish(s.TopicFor(env.Peripheral), 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.New("mqtt publish timeout")
	}
	return errors.Wrap(token.Error(), "mqtt publish issue")
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(mqttQuiesceMillis)
	return nil
}
