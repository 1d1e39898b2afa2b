// Package bridge connects the keyer to its remote peer over MQTT.
//
// Topic layout, for prefix "morse" and device id ESP32_MORSE_001:
//
//	morse/ESP32_MORSE_001/from_web     inbound commands (DOT, DASH, SPACE, VALIDATE, CLEAR, TRANSLATION:<text>)
//	morse/ESP32_MORSE_001/from_device  outbound notifications (MORSE:, CHAR:, SPACE, CLEARED, TRANSLATION_RECEIVED:)
//	morse/ESP32_MORSE_001/status       DEVICE_READY once subscribed
//
// Paho delivers messages on its own goroutines. The handler only parses and
// enqueues; keyer state is touched exclusively by the scheduler tick.
package bridge

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"morsepad/gesture"
	"morsepad/protocol"
	"morsepad/stats"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/zeebo/xxh3"
)

const (
	DefaultBroker         = "broker.hivemq.com"
	DefaultPort           = 1883
	DefaultTopicPrefix    = "morse"
	DefaultDeviceID       = "ESP32_MORSE_001"
	DefaultClientIDPrefix = "ESP32Client"

	// maxPayload caps inbound payloads; translations are short text lines.
	maxPayload = 4096
)

// ErrNotConnected is returned by Publish while the broker link is down.
var ErrNotConnected = errors.New("mqtt not connected")

// Publisher accepts outbound notifications.
type Publisher interface {
	Publish(protocol.Notification) error
}

// Topics is the per-device topic set.
type Topics struct {
	Inbound  string
	Outbound string
	Status   string
}

// TopicsFor builds the topic set for a device.
func TopicsFor(prefix, deviceID string) Topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}
	base := prefix + "/" + deviceID + "/"
	return Topics{
		Inbound:  base + "from_web",
		Outbound: base + "from_device",
		Status:   base + "status",
	}
}

// For routes a notification to its topic.
func (t Topics) For(n protocol.Notification) string {
	if n.Status() {
		return t.Status
	}
	return t.Outbound
}

// hostClientID derives a broker client id that is stable per host and device, so
// a restart replaces the previous session instead of piling up new ones.
func hostClientID(prefix, deviceID string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return clientIDFor(prefix, deviceID, host)
}

func clientIDFor(prefix, deviceID, host string) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultClientIDPrefix
	}
	sum := xxh3.HashString(host + "\x00" + deviceID)
	return fmt.Sprintf("%s-%04X", prefix, sum&0xffff)
}

// Config holds the broker connection settings.
type Config struct {
	Broker         string
	Port           int
	TopicPrefix    string
	DeviceID       string
	ClientID       string // empty derives one via ClientID
	Username       string
	Password       string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Broker) == "" {
		c.Broker = DefaultBroker
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 60 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	if c.QoS > 2 {
		c.QoS = 0
	}
	return c
}

// Client is the MQTT side of the bridge.
//
// Thread Safety:
//   - paho invokes handlers on its own goroutines; they only touch the queue
//   - Publish may be called from the scheduler while paho reconnects
type Client struct {
	cfg      Config
	topics   Topics
	clientID string
	queue    *Queue
	tracker  *stats.Tracker

	mu     sync.Mutex
	client mqtt.Client
	ready  func() protocol.Notification
}

// NewClient builds an unconnected client feeding queue. tracker may be nil.
func NewClient(cfg Config, queue *Queue, tracker *stats.Tracker) *Client {
	cfg = cfg.withDefaults()
	id := strings.TrimSpace(cfg.ClientID)
	if id == "" {
		id = hostClientID(DefaultClientIDPrefix, cfg.DeviceID)
	}
	return &Client{
		cfg:      cfg,
		topics:   TopicsFor(cfg.TopicPrefix, cfg.DeviceID),
		clientID: id,
		queue:    queue,
		tracker:  tracker,
		ready:    func() protocol.Notification { return protocol.Notification{Kind: protocol.DeviceReady} },
	}
}

// OnReady sets the notification published on the status topic after every
// (re)subscription.
func (c *Client) OnReady(fn func() protocol.Notification) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.ready = fn
	c.mu.Unlock()
}

// Topics returns the topic set in use.
func (c *Client) Topics() Topics { return c.topics }

// ClientID returns the broker client id in use.
func (c *Client) ClientID() string { return c.clientID }

// Connect establishes the broker connection, blocking until the first
// successful connect. Subscription and the ready announcement happen in the
// on-connect handler so they repeat after every automatic reconnect.
func (c *Client) Connect() error {
	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.clientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	opts.SetKeepAlive(c.cfg.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	// Keep retrying the first connect too; the keyer works offline meanwhile.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	client := mqtt.NewClient(opts)
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	log.Printf("Bridge: connecting to %s as %s", brokerURL, c.clientID)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to %s: %w", brokerURL, token.Error())
	}
	return nil
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Printf("Bridge: connected, subscribing to %s", c.topics.Inbound)
	token := client.Subscribe(c.topics.Inbound, c.cfg.QoS, c.messageHandler)
	if token.Wait() && token.Error() != nil {
		log.Printf("Bridge: subscribe failed: %v", token.Error())
		return
	}
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if err := c.publishOn(client, ready()); err != nil {
		log.Printf("Bridge: ready announcement failed: %v", err)
		return
	}
	log.Printf("Bridge: ready on %s", c.topics.Status)
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("Bridge: connection lost: %v (will reconnect)", err)
}

func (c *Client) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	if len(payload) > maxPayload {
		if c.tracker != nil {
			c.tracker.IncrementIgnoredCommands()
		}
		log.Printf("Bridge: dropping %d-byte payload (limit %d)", len(payload), maxPayload)
		return
	}
	if c.queue == nil {
		return
	}
	c.queue.OfferRaw(gesture.Remote, string(payload))
}

// Publish sends a notification to its topic. It fails fast with
// ErrNotConnected while the link is down rather than queueing stale state.
func (c *Client) Publish(n protocol.Notification) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	return c.publishOn(client, n)
}

func (c *Client) publishOn(client mqtt.Client, n protocol.Notification) error {
	topic := c.topics.For(n)
	token := client.Publish(topic, c.cfg.QoS, false, n.Encode())
	if !token.WaitTimeout(c.cfg.PublishTimeout) {
		return fmt.Errorf("publish %s: timed out after %s", topic, c.cfg.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil && c.client.IsConnected()
}

// Stop unsubscribes and disconnects.
func (c *Client) Stop() {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return
	}
	if client.IsConnected() {
		client.Unsubscribe(c.topics.Inbound)
	}
	// Disconnect also aborts a connect still retrying in the background.
	client.Disconnect(250)
	log.Println("Bridge: stopped")
}

// LogPublisher stands in for the broker when MQTT is disabled.
type LogPublisher struct{}

func (LogPublisher) Publish(n protocol.Notification) error {
	log.Printf("Bridge (offline): %s", n.Encode())
	return nil
}
