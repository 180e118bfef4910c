package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/berfenger/rover2mqtt/internal/config"
	"github.com/berfenger/rover2mqtt/internal/core/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
)

func OptsFromConfig(cfg config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(fmt.Sprintf("rover_%d", rand.IntN(1000)))
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg config.MQTTConfig, opts *mqtt.ClientOptions) *MQTTClient {
	return &MQTTClient{
		client:  mqtt.NewClient(opts),
		cfg:     cfg,
		timeout: 2 * time.Second,
	}
}

// MQTTClient publishes poll readings under the configured base topic.
type MQTTClient struct {
	client     mqtt.Client
	cfg        config.MQTTConfig
	timeout    time.Duration
	lock       sync.Mutex
	discovered bool
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) ReadingStateTopic() string {
	return fmt.Sprintf("%s/reading/state", c.baseTopic())
}

func (c *MQTTClient) BlockStateTopic(block string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), block)
}

func (c *MQTTClient) Connect() error {
	if err := wait(c.client.Connect(), c.timeout, "connect"); err != nil {
		return err
	}
	return c.publish(c.BridgeStateTopic(), MQTT_PAYLOAD_ONLINE, true)
}

func (c *MQTTClient) Disconnect() {
	_ = c.publish(c.BridgeStateTopic(), MQTT_PAYLOAD_OFFLINE, true)
	c.client.Disconnect(uint(c.timeout.Milliseconds()))
}

func (c *MQTTClient) Name() string {
	return "mqtt"
}

// Publish sends the whole reading plus one message per successfully read block. Home
// Assistant discovery configs go out with the first reading. Concurrent calls are
// serialised.
func (c *MQTTClient) Publish(reading domain.Reading) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	messages, err := ReadingMessages(c, reading)
	if err != nil {
		return err
	}
	var errs []error
	if c.cfg.HADiscoveryEnable && !c.discovered {
		discovery, err := c.DiscoveryMessages(reading.Model)
		if err != nil {
			return err
		}
		for _, m := range discovery {
			errs = append(errs, c.publish(m.Topic, m.Payload, true))
		}
		c.discovered = errors.Join(errs...) == nil
	}
	for _, m := range messages {
		errs = append(errs, c.publish(m.Topic, m.Payload, false))
	}
	return errors.Join(errs...)
}

func (c *MQTTClient) publish(topic string, payload any, retain bool) error {
	return wait(c.client.Publish(topic, 0, retain, payload), c.timeout, "publish")
}

type Message struct {
	Topic   string
	Payload []byte
}

type topics interface {
	ReadingStateTopic() string
	BlockStateTopic(block string) string
}

func ReadingMessages(t topics, reading domain.Reading) ([]Message, error) {
	full, err := json.Marshal(reading)
	if err != nil {
		return nil, err
	}
	messages := []Message{{Topic: t.ReadingStateTopic(), Payload: full}}

	blocks := []blockState{
		blockStateOf("panel", reading.Panel),
		blockStateOf("battery", reading.Battery),
		blockStateOf("historical", reading.Historical),
	}
	for _, b := range blocks {
		if !b.ok {
			continue
		}
		payload, err := json.Marshal(b.value)
		if err != nil {
			return nil, err
		}
		messages = append(messages, Message{Topic: t.BlockStateTopic(b.name), Payload: payload})
	}
	return messages, nil
}

type blockState struct {
	name  string
	value any
	ok    bool
}

func blockStateOf[T any](name string, slot domain.Slot[T]) blockState {
	v, ok := slot.Value()
	return blockState{name: name, value: v, ok: ok}
}

func wait(token mqtt.Token, timeout time.Duration, op string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("MQTT %s timed out", op)
	}
	return token.Error()
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
