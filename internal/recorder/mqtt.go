package recorder

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sifilabs/sifi-bridge-go/internal/record"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttKeepAlive      = 60 * time.Second

	defaultMQTTTopicPrefix = "sifi/frames"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	// BrokerURL is the full broker address, e.g. "tcp://localhost:1883".
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// TopicPrefix is prepended to the channel ID to form the publish topic,
	// e.g. "sifi/frames/ch0". Empty means "sifi/frames".
	TopicPrefix string

	// QoS is the publish quality of service (0, 1, or 2).
	QoS byte
}

// mqttFramePayload is the JSON body published per frame.
type mqttFramePayload struct {
	Channel   string    `json:"channel"`
	Timestamp int64     `json:"timestamp"`
	Samples   []float64 `json:"samples"`
}

// MQTTSink publishes each frame as a JSON message on
// <prefix>/<channel-id>. Publishes wait for broker acknowledgment up to a
// bounded timeout, so this sink belongs behind the client's sink queue, never
// on the read path.
type MQTTSink struct {
	client pahomqtt.Client
	prefix string
	qos    byte

	mu     sync.Mutex
	closed bool
}

var _ FrameSink = (*MQTTSink)(nil)

// NewMQTTSink connects to the broker with auto-reconnect enabled.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("%w: QoS %d (must be 0, 1, or 2)", ErrConnectFailed, cfg.QoS)
	}

	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = defaultMQTTTopicPrefix
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetKeepAlive(mqttKeepAlive)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectFailed, mqttConnectTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	return &MQTTSink{
		client: client,
		prefix: prefix,
		qos:    cfg.QoS,
	}, nil
}

// WriteFrame implements FrameSink.
func (s *MQTTSink) WriteFrame(frame *record.DataFrame) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed || !s.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(mqttFramePayload{
		Channel:   frame.ChannelID,
		Timestamp: frame.Timestamp,
		Samples:   frame.Samples,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	topic := s.prefix + "/" + frame.ChannelID

	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("%w: publish timeout after %v", ErrWriteFailed, mqttPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return nil
}

// Close disconnects from the broker after a short quiesce for in-flight
// publishes. Safe to call twice.
func (s *MQTTSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	s.client.Disconnect(uint(time.Second.Milliseconds()))

	return nil
}
