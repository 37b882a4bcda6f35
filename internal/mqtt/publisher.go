// Package mqtt publishes vehicle telemetry to an MQTT broker so other
// home automation consumers can subscribe alongside Domoticz.
package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"mgbridge/internal/config"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	keepAlive      = 60 * time.Second
)

// Publisher wraps a paho client. A nil Publisher is a no-op, which
// keeps call sites free of enabled-checks.
type Publisher struct {
	client pahomqtt.Client
	prefix string
	qos    byte
	log    zerolog.Logger
}

// Connect dials the broker and announces availability. Returns nil
// (no publisher) when MQTT is disabled in config.
func Connect(cfg config.MQTTConfig, log zerolog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "mgbridge"
	}

	opts := pahomqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetClientID("mgbridge")
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(prefix+"/availability", "offline", 1, true)

	p := &Publisher{
		client: pahomqtt.NewClient(opts),
		prefix: prefix,
		qos:    byte(cfg.QoS),
		log:    log.With().Str("component", "mqtt").Logger(),
	}

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	if err := p.publish(prefix+"/availability", []byte("online"), true); err != nil {
		p.log.Warn().Err(err).Msg("availability announcement failed")
	}
	return p, nil
}

// PublishTelemetry publishes a retained JSON document under
// <prefix>/<vin>/telemetry.
func (p *Publisher) PublishTelemetry(vin string, payload any) error {
	if p == nil {
		return nil
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	return p.publish(fmt.Sprintf("%s/%s/telemetry", p.prefix, vin), blob, true)
}

// PublishEvent publishes a non-retained event message such as a
// charge session transition.
func (p *Publisher) PublishEvent(vin, event string) error {
	if p == nil {
		return nil
	}
	return p.publish(fmt.Sprintf("%s/%s/event", p.prefix, vin), []byte(event), false)
}

func (p *Publisher) publish(topic string, payload []byte, retained bool) error {
	token := p.client.Publish(topic, p.qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// Close announces offline and disconnects.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.publish(p.prefix+"/availability", []byte("offline"), true); err != nil {
		p.log.Debug().Err(err).Msg("offline announcement failed")
	}
	p.client.Disconnect(1000)
}
