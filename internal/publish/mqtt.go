package publish

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/logger"
	"codeberg.org/mutker/rpimonitor/internal/metric"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// QoS 0: at most once.
	mqttQoS      byte = 0
	mqttRetained      = false

	connectTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// MQTTConfig addresses the broker.
type MQTTConfig struct {
	Host      string
	Port      int
	ClientID  string
	KeepAlive time.Duration
}

// MQTTClient is the part of mqtt.Client used for publishing.
type MQTTClient interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// DialMQTT connects to the broker. The client keeps retrying in the
// background when the broker is unreachable, so a failed first attempt is
// logged and not fatal.
func DialMQTT(cfg MQTTConfig, log logger.Logger) mqtt.Client {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info().Str("broker", broker).Msg("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Str("broker", broker).Msg("Lost connection to MQTT broker")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.WarnWithCode(errors.New().WithMessage(errors.ErrSinkConnect, "timed out connecting to "+broker)).
			Msg("MQTT broker not reachable yet, retrying in background")
	} else if err := token.Error(); err != nil {
		log.WarnWithCode(errors.New().Wrap(errors.ErrSinkConnect, err)).
			Str("broker", broker).
			Msg("MQTT broker not reachable yet, retrying in background")
	}

	return client
}

// CloseMQTT disconnects client if it is connected.
func CloseMQTT(client mqtt.Client) {
	if client.IsConnected() {
		client.Disconnect(disconnectQuiesce)
	}
}

// MQTT emits one message per metric on "<namespace>/<category>/<name>".
// Messages are fire-and-forget: a publish is never awaited or retried.
type MQTT struct {
	client    MQTTClient
	namespace string
	log       logger.Logger
}

func NewMQTT(client MQTTClient, namespace string, log logger.Logger) *MQTT {
	return &MQTT{client: client, namespace: namespace, log: log}
}

// Topic returns the topic for a metric.
func Topic(namespace, category, name string) string {
	return namespace + "/" + category + "/" + name
}

// Publish emits every metric. Failed messages are logged and skipped; the
// returned error counts them.
func (p *MQTT) Publish(ctx context.Context, reg *metric.Registry) error {
	errFactory := errors.New()
	failed := 0

	err := reg.Each(func(c *metric.Category, m *metric.Metric) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		topic := Topic(p.namespace, c.Name(), m.Name())
		if err := p.publishOne(topic, m.Payload()); err != nil {
			failed++
			p.log.WarnWithCode(errFactory.Wrap(errors.ErrPublishFailed, err)).
				Str("topic", topic).
				Msg("Failed to publish metric")
		}

		return nil
	})
	if err != nil {
		return err
	}

	if failed > 0 {
		return errFactory.WithData(errors.ErrPublishFailed, struct {
			Failed int
			Total  int
		}{
			Failed: failed,
			Total:  reg.Len(),
		})
	}

	return nil
}

func (p *MQTT) publishOne(topic, payload string) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("not connected")
	}

	token := p.client.Publish(topic, mqttQoS, mqttRetained, payload)
	select {
	case <-token.Done():
		return token.Error()
	default:
		return nil
	}
}
