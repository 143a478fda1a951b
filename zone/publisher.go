package zone

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes computed zone indices to MQTT: one retained message
// per zone plus a combined snapshot topic.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	mu            sync.RWMutex
	last          []IndexEntry
}

// NewPublisher creates an index publisher. The topic prefix comes from the
// MQTT_PUBLISH_PREFIX env var, then the config value, defaulting to
// "zoneindex". A nil client disables publishing (for testing).
func NewPublisher(client mqtt.Client, configPrefix string) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = configPrefix
	}
	if prefix == "" {
		prefix = "zoneindex"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // index snapshots are fire and forget
		retain:        true, // retain so late subscribers get the latest index
	}
}

// zoneIndexMessage is the per-zone wire format.
type zoneIndexMessage struct {
	ZoneID        string  `json:"zoneId"`
	SecurityIndex float64 `json:"securityIndex"`
	Timestamp     int64   `json:"timestamp"`
}

// PublishIndex publishes every zone's index to its individual topic
// (<prefix>/zones/<id>) and the full report to the combined topic
// (<prefix>/index).
func (p *Publisher) PublishIndex(entries []IndexEntry) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	now := time.Now().Unix()
	for _, e := range entries {
		msg := zoneIndexMessage{
			ZoneID:        e.ZoneID,
			SecurityIndex: e.SecurityIndex,
			Timestamp:     now,
		}
		if err := p.publishJSON(fmt.Sprintf("%s/zones/%s", p.publishPrefix, e.ZoneID), msg); err != nil {
			return err
		}
	}

	combined := map[string]any{
		"zones":     entries,
		"timestamp": now,
	}
	if err := p.publishJSON(fmt.Sprintf("%s/index", p.publishPrefix), combined); err != nil {
		return err
	}

	p.mu.Lock()
	p.last = append([]IndexEntry(nil), entries...)
	p.mu.Unlock()

	return nil
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling index message: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// LastPublished returns a copy of the most recently published report.
func (p *Publisher) LastPublished() []IndexEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]IndexEntry(nil), p.last...)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2).
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker.
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
