package mq

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	TopicBookingCreated = "roombook/bookings/created"
	TopicBookingDeleted = "roombook/bookings/deleted"
	TopicRoomChanged    = "roombook/rooms/changed"
	TopicUserDeleted    = "roombook/users/deleted"

	TopicAll = "roombook/#"
)

// Event is the payload published after a successful mutation.
type Event struct {
	ID       string    `json:"id"`
	Event    string    `json:"event"`
	RoomID   int64     `json:"room_id,omitempty"`
	EntityID int64     `json:"entity_id,omitempty"`
	At       time.Time `json:"at"`
	Detail   any       `json:"detail,omitempty"`
}

func NewEvent(name string, roomID, entityID int64, detail any) Event {
	return Event{
		ID:       uuid.NewString(),
		Event:    name,
		RoomID:   roomID,
		EntityID: entityID,
		At:       time.Now().UTC(),
		Detail:   detail,
	}
}

// Publisher is what components publish activity through.
type Publisher interface {
	Publish(topic string, ev Event)
}

// Nop drops events; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(string, Event) {}

type Config struct {
	BrokerURL string
	ClientID  string
	Logger    *log.Logger
	// ConnectWait bounds how long Connect blocks on the first connection.
	// Past it the client keeps retrying in the background. Default 10s.
	ConnectWait time.Duration
	// OnConnect runs after every (re)connect, so subscriptions made there
	// survive a broker that was down at startup.
	OnConnect func(mqtt.Client)
}

func Connect(cfg Config) (mqtt.Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("MQTT broker URL is empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "roombook"
	}
	if cfg.ConnectWait <= 0 {
		cfg.ConnectWait = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	// brokers drop an older connection that reuses a client id
	cfg.ClientID += "-" + uuid.NewString()[:8]

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		cfg.Logger.Printf("mqtt connection lost: %v", err)
	}
	opts.OnConnect = func(c mqtt.Client) {
		cfg.Logger.Printf("mqtt connected broker=%s client_id=%s", cfg.BrokerURL, cfg.ClientID)
		if cfg.OnConnect != nil {
			cfg.OnConnect(c)
		}
	}

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(cfg.ConnectWait) {
		cfg.Logger.Printf("mqtt broker=%s not reachable after %s; retrying in background", cfg.BrokerURL, cfg.ConnectWait)
		return c, nil
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// ClientPublisher publishes JSON events over an MQTT connection. A
// disconnected client skips the publish; activity is best effort.
type ClientPublisher struct {
	client mqtt.Client
	logger *log.Logger
}

func NewPublisher(c mqtt.Client, logger *log.Logger) *ClientPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &ClientPublisher{client: c, logger: logger}
}

func (p *ClientPublisher) Publish(topic string, ev Event) {
	if p.client == nil || !p.client.IsConnected() {
		p.logger.Printf("mqtt not connected; skipping publish topic=%s", topic)
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		p.logger.Printf("marshal event: %v", err)
		return
	}
	tok := p.client.Publish(topic, 1, false, b)
	tok.WaitTimeout(3 * time.Second)
	if err := tok.Error(); err != nil {
		p.logger.Printf("publish error topic=%s: %v", topic, err)
	}
}

// Subscribe registers handler for each topic and logs the outcome.
func Subscribe(logger *log.Logger, c mqtt.Client, handler func(topic string, payload []byte), topics ...string) {
	for _, topic := range topics {
		token := c.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		})
		if !token.WaitTimeout(5 * time.Second) {
			logger.Printf("mqtt subscribe timed out topic=%s", topic)
			continue
		}
		if err := token.Error(); err != nil {
			logger.Printf("mqtt subscribe error topic=%s: %v", topic, err)
		} else {
			logger.Printf("mqtt subscribed topic=%s", topic)
		}
	}
}
