package devices

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Pods publish a retained JSON document when they join the network:
//
//	growpod/<name>/presence  {"name":"pod-a","address":"10.0.0.12","port":8443}
//
// Their LWT clears the payload when they drop off, so an empty message
// means the device is gone. Retained messages replay on subscribe, which
// is how the controller relearns the fleet after a restart.
const presenceTopic = "growpod/+/presence"

// PresenceListener keeps a Registry current from the presence topic.
type PresenceListener struct {
	registry *Registry
	client   mqtt.Client
}

// StartPresenceListener connects to the broker and subscribes to device
// presence announcements. The subscription is re-established on every
// reconnect.
func StartPresenceListener(brokerURL, clientID string, registry *Registry) (*PresenceListener, error) {
	l := &PresenceListener{registry: registry}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(c mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
		if token := c.Subscribe(presenceTopic, 1, l.handleMessage); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Msg("failed to subscribe to presence topic")
		}
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	l.client = mqtt.NewClient(opts)
	if token := l.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return l, nil
}

func (l *PresenceListener) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	applyPresence(l.registry, msg.Topic(), msg.Payload())
}

// applyPresence folds one presence message into the registry.
func applyPresence(registry *Registry, topic string, payload []byte) {
	name := deviceNameFromTopic(topic)
	if name == "" {
		return
	}

	if len(payload) == 0 {
		registry.MarkAbsent(name)
		log.Info().Str("device", name).Msg("device left")
		return
	}

	var announce struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Port    int    `json:"port"`
	}
	if err := json.Unmarshal(payload, &announce); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("unparseable presence announcement")
		return
	}
	if announce.Name == "" {
		announce.Name = name
	}

	registry.MarkPresent(Device{Name: announce.Name, Address: announce.Address, Port: announce.Port})
	log.Info().
		Str("device", announce.Name).
		Str("address", announce.Address).
		Int("port", announce.Port).
		Msg("device present")
}

func deviceNameFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "growpod" || parts[2] != "presence" {
		return ""
	}
	return parts[1]
}

// Close drops the broker connection.
func (l *PresenceListener) Close() {
	l.client.Disconnect(250)
}
