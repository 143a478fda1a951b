package zone

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/paulmach/orb"
)

// EventHandler is called when a point event arrives on a dataset feed.
// Parameters: dataset ID, the decoded record, and a decode error (the record
// is zero-valued when err is non-nil).
type EventHandler func(datasetID string, rec Record, err error)

// MQTTClient manages the MQTT connection and the per-dataset feed
// subscriptions.
type MQTTClient struct {
	client       mqtt.Client
	config       *Config
	eventHandler EventHandler
	isConnected  bool
	mu           sync.RWMutex
}

// pointEvent is the wire format for live point events.
type pointEvent struct {
	Longitude  float64        `json:"longitude"`
	Latitude   float64        `json:"latitude"`
	Attributes map[string]any `json:"attributes"`
}

// InitMQTT initializes an MQTT client subscribed to every dataset feed topic
// in the config. The broker comes from the MQTT_BROKER env var or the config;
// when neither is set MQTT is disabled and (nil, nil) is returned.
func InitMQTT(config *Config, handler EventHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || len(config.Datasets) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no dataset feeds configured")
	}

	c := &MQTTClient{
		config:       config,
		eventHandler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "zoneindex"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // preserve subscriptions on reconnect
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)

	go c.connectWithRetry()

	return c, nil
}

// connectWithRetry attempts to connect to the broker with exponential backoff.
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to every configured dataset feed.
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to dataset feeds...")
	c.setConnected(true)

	for _, dc := range c.config.Datasets {
		if dc.Topic == "" {
			continue
		}

		log.Printf("Subscribing to %s for dataset %s", dc.Topic, dc.ID)
		token := client.Subscribe(dc.Topic, 0, c.createMessageHandler(dc.ID))

		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", dc.Topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", dc.Topic)
		}
	}
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createMessageHandler creates the handler for one dataset feed topic.
func (c *MQTTClient) createMessageHandler(datasetID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()

		rec, err := DecodePointEvent(payload)
		if err != nil {
			log.Printf("Error decoding point event for %s: %v", datasetID, err)
			if c.eventHandler != nil {
				c.eventHandler(datasetID, Record{}, err)
			}
			return
		}

		if c.eventHandler != nil {
			c.eventHandler(datasetID, rec, nil)
		}
	}
}

// DecodePointEvent parses a live point event payload into a Record.
func DecodePointEvent(payload []byte) (Record, error) {
	var ev pointEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Record{}, fmt.Errorf("parsing point event: %w", err)
	}
	attrs := ev.Attributes
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return Record{
		Point: orb.Point{ev.Longitude, ev.Latitude},
		Attrs: attrs,
	}, nil
}

// DatasetByTopic returns the dataset ID for a given feed topic.
func (c *MQTTClient) DatasetByTopic(topic string) (string, bool) {
	for _, dc := range c.config.Datasets {
		if dc.Topic == topic {
			return dc.ID, true
		}
	}
	return "", false
}

// IsConnected returns true if the MQTT client is connected.
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection.
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing.
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client.
// Used in tests with the mock client.
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler EventHandler) *MQTTClient {
	return &MQTTClient{
		client:       client,
		config:       config,
		eventHandler: handler,
	}
}
