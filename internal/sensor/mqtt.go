package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	logx "pirbot/pkg/logx"
)

// MQTTConfig points the bus source at a broker topic carrying motion
// events.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// mqttPayload is the wire format published by remote sensor nodes.
//
//	{"active": 2}
type mqttPayload struct {
	Active int `json:"active"`
}

// MQTTSource subscribes to a broker topic and re-emits motion events.
type MQTTSource struct {
	cfg    MQTTConfig
	client paho.Client
	log    logx.Logger
}

func NewMQTTSource(cfg MQTTConfig, log logx.Logger) (*MQTTSource, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "pirbot"
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout (%s)", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return &MQTTSource{cfg: cfg, client: client, log: log}, nil
}

func (m *MQTTSource) Run(ctx context.Context, out chan<- Event) error {
	handler := func(_ paho.Client, msg paho.Message) {
		var p mqttPayload
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			m.log.Warn("bad sensor payload", logx.String("topic", msg.Topic()), logx.Err(err))
			return
		}
		if p.Active <= 0 {
			return
		}
		ev := NewEvent(p.Active)
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	// QoS 1: a missed motion event is worse than a duplicate one.
	token := m.client.Subscribe(m.cfg.Topic, 1, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt subscribe timeout (%s)", m.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", m.cfg.Topic, err)
	}
	m.log.Info("subscribed to sensor feed", logx.String("broker", m.cfg.Broker), logx.String("topic", m.cfg.Topic))

	<-ctx.Done()
	return nil
}

func (m *MQTTSource) Close() error {
	m.client.Disconnect(1000) // milliseconds
	return nil
}
