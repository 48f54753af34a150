package mqttclient

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler receives the raw payload of every message on a subscribed topic.
type Handler func(topic string, payload []byte)

// Options configures the broker connection.
type Options struct {
	Broker   string
	Topics   []string
	ClientID string
	Username string
	Password string
}

// Subscriber consumes telemetry deliveries published to an external MQTT broker.
type Subscriber struct {
	client  mqtt.Client
	opts    Options
	handler Handler
	logger  *slog.Logger
}

// New prepares a subscriber; nothing is dialled until Connect.
func New(opts Options, handler Handler, logger *slog.Logger) (*Subscriber, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt broker address cannot be empty")
	}
	if len(opts.Topics) == 0 {
		return nil, errors.New("at least one mqtt topic is required")
	}
	if handler == nil {
		return nil, errors.New("mqtt handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ClientID == "" {
		opts.ClientID = fmt.Sprintf("beaconwatch-%d", time.Now().Unix())
	}

	s := &Subscriber{opts: opts, handler: handler, logger: logger}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	clientOpts.SetAutoReconnect(true)
	clientOpts.SetCleanSession(true)
	clientOpts.SetOnConnectHandler(s.onConnect)
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("mqtt connection lost", "error", err)
	})
	clientOpts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("reconnecting to mqtt broker", "broker", opts.Broker)
	})

	s.client = mqtt.NewClient(clientOpts)
	return s, nil
}

// Connect dials the broker. Subscriptions are (re)established on every successful connect.
func (s *Subscriber) Connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("connection to mqtt broker timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect mqtt broker: %w", err)
	}

	s.logger.Info("connected to mqtt broker", "broker", s.opts.Broker, "client_id", s.opts.ClientID)
	return nil
}

// Disconnect closes the broker connection.
func (s *Subscriber) Disconnect() {
	s.client.Disconnect(250)
	s.logger.Info("disconnected from mqtt broker")
}

func (s *Subscriber) onConnect(c mqtt.Client) {
	for _, topic := range s.opts.Topics {
		token := c.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			s.deliver(msg)
		})
		if !token.WaitTimeout(5 * time.Second) {
			s.logger.Warn("mqtt subscribe timed out", "topic", topic)
			continue
		}
		if err := token.Error(); err != nil {
			s.logger.Warn("mqtt subscribe failed", "topic", topic, "error", err)
			continue
		}
		s.logger.Info("subscribed to mqtt topic", "topic", topic)
	}
}

func (s *Subscriber) deliver(msg mqtt.Message) {
	s.logger.Debug("mqtt message received", "topic", msg.Topic(), "device", DeviceFromTopic(msg.Topic()), "bytes", len(msg.Payload()))
	s.handler(msg.Topic(), msg.Payload())
}

// DeviceFromTopic extracts the device id from a flespi-style
// ".../devices/{id}" topic, or returns "" when the topic has no such segment.
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "devices" && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}
