// Package telemetry publishes control loop reports to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/san-kum/robomower/internal/config"
	"github.com/san-kum/robomower/internal/loop"
)

const connectTimeout = 5 * time.Second

// Message is the JSON payload published for each tick.
type Message struct {
	Tick      int       `json:"tick"`
	Time      time.Time `json:"time"`
	Left      float64   `json:"left"`
	Right     float64   `json:"right"`
	M1        int       `json:"m1"`
	M2        int       `json:"m2"`
	Watchdog  string    `json:"watchdog"`
	Freewheel bool      `json:"freewheel"`
	Halted    bool      `json:"halted"`
	Events    int       `json:"events"`
}

func NewMessage(r loop.Report) Message {
	return Message{
		Tick:      r.Tick,
		Time:      r.Time,
		Left:      r.Command.Left,
		Right:     r.Command.Right,
		M1:        r.Values[0],
		M2:        r.Values[1],
		Watchdog:  r.Watchdog.String(),
		Freewheel: r.Freewheel,
		Halted:    r.Halted,
		Events:    len(r.Events),
	}
}

type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher is a loop.Observer. OnTick never waits on the broker; delivery
// failures are logged from a separate goroutine.
type Publisher struct {
	client client
	conn   mqtt.Client
	topic  string
	log    *log.Logger
}

func Dial(cfg config.TelemetryConfig, logger *log.Logger) (*Publisher, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("telemetry connected", "broker", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("telemetry connection lost", "err", err)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warn("telemetry broker not reachable yet, retrying in background", "broker", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}

	p := New(c, cfg.Topic, logger)
	p.conn = c
	return p, nil
}

func New(c client, topic string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Publisher{client: c, topic: topic, log: logger}
}

func (p *Publisher) OnTick(r loop.Report) {
	payload, err := json.Marshal(NewMessage(r))
	if err != nil {
		p.log.Error("encode telemetry", "err", err)
		return
	}
	token := p.client.Publish(p.topic, 0, false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			p.log.Debug("telemetry publish failed", "tick", r.Tick, "err", err)
		}
	}()
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Disconnect(250)
	}
}
