package notify

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bassista/go_datastore/internal/logger"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// ChangedPayload is the only message an MQTTSink ever publishes.
	ChangedPayload = "changed"
)

var (
	ErrInvalidTopic     = errors.New("mqtt: topic is required")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
)

// MQTTConfig describes the broker a sink publishes to.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
}

// Publisher is the part of a paho client the sink needs.
// pahomqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTSink republishes change signals to an MQTT topic so processes outside
// this one can observe them.
type MQTTSink struct {
	pub      Publisher
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
}

// NewMQTTSink creates a sink publishing to cfg.Topic through pub.
func NewMQTTSink(pub Publisher, cfg MQTTConfig) (*MQTTSink, error) {
	if pub == nil {
		return nil, errors.New("mqtt: publisher is nil")
	}
	if cfg.Topic == "" {
		return nil, ErrInvalidTopic
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: invalid qos %d", cfg.QoS)
	}
	return &MQTTSink{
		pub:      pub,
		topic:    cfg.Topic,
		qos:      cfg.QoS,
		retained: cfg.Retained,
		timeout:  defaultPublishTimeout,
	}, nil
}

// Publish sends a single change message and waits for the broker.
func (s *MQTTSink) Publish() error {
	token := s.pub.Publish(s.topic, s.qos, s.retained, []byte(ChangedPayload))
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Attach subscribes the sink to sig. Publish failures are logged, never
// propagated back into the mutating call.
func (s *MQTTSink) Attach(sig *Signal) *Subscription {
	return sig.Subscribe(func() {
		if err := s.Publish(); err != nil {
			logger.WithComponent("mqtt").Errorf("change publish to %s failed: %v", s.topic, err)
			return
		}
		logger.WithComponent("mqtt").Tracef("change published to %s", s.topic)
	})
}

// NewMQTTClient builds and connects a paho client from cfg.
func NewMQTTClient(cfg MQTTConfig) (pahomqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%w: broker is required", ErrConnectionFailed)
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "go-datastore"
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.WithComponent("mqtt").Warnf("connection lost: %v", err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	logger.WithComponent("mqtt").Infof("connected to broker %s as %s", cfg.Broker, clientID)
	return client, nil
}
