package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/icodeforyou/somenergia-go/slice"
	"github.com/icodeforyou/somenergia-go/types"
)

// StoreWritten describes a store that has just been saved.
type StoreWritten struct {
	Store  string    `json:"store"`
	Date   string    `json:"date"`
	Points int       `json:"points"`
	Nulls  int       `json:"nulls"`
	First  time.Time `json:"first,omitzero"`
	Last   time.Time `json:"last,omitzero"`
}

func NewStoreWritten(key types.StoreKey, identifier string, series types.PriceSeries) StoreWritten {
	msg := StoreWritten{
		Store:  identifier,
		Date:   key.Date,
		Points: len(series),
		Nulls:  slice.Count(series, func(p types.PricePoint) bool { return !p.Price.Valid }),
	}
	if p, ok := series.First(); ok {
		msg.First = p.Time
	}
	if p, ok := series.Last(); ok {
		msg.Last = p.Time
	}
	return msg
}

type Mqtt struct {
	client mqtt.Client
	logger *slog.Logger
	topic  string
}

func NewMqtt(broker string, port int16, username, password, clientId, topic string) *Mqtt {
	logger := slog.Default().With("module", "notify")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port))
	opts.SetClientID(clientId)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqttLogger := slog.Default().With("module", "mqtt")
	mqtt.CRITICAL = newMqttLogger(mqttLogger, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLogger, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLogger, slog.LevelWarn)

	return &Mqtt{
		client: mqtt.NewClient(opts),
		logger: logger,
		topic:  topic,
	}
}

func (m *Mqtt) Connect(ctx context.Context) error {
	m.logger.Debug("connecting MQTT client")
	return wait(ctx, m.client.Connect())
}

func (m *Mqtt) Disconnect() {
	m.client.Disconnect(250)
}

// Notify publishes msg as a retained message, so late subscribers see the
// latest store.
func (m *Mqtt) Notify(ctx context.Context, msg StoreWritten) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := wait(ctx, m.client.Publish(m.topic, 1, true, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	m.logger.Debug("published store notification", slog.String("topic", m.topic), slog.String("store", msg.Store))
	return nil
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return errors.Join(ctx.Err(), errors.New("mqtt operation did not complete"))
	}
}
