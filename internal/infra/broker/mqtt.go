package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/totegamma/healthvault/internal/domain"
)

const topicPrefix = "healthvault/events/"

const publishTimeout = 5 * time.Second

func Topic(patient string) string {
	return topicPrefix + patient
}

type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// MQTTPublisher mirrors registry events onto an MQTT broker.
type MQTTPublisher struct {
	client mqtt.Client
	qos    byte
}

func NewMQTTPublisher(opts MQTTOptions) (*MQTTPublisher, error) {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)

	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}

	o.SetAutoReconnect(true)
	o.SetCleanSession(true)

	client := mqtt.NewClient(o)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newMQTTPublisher(client, opts.QoS), nil
}

func newMQTTPublisher(client mqtt.Client, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, qos: qos}
}

func (p *MQTTPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Message())
	if err != nil {
		return err
	}

	topic := Topic(event.Patient.Hex())
	token := p.client.Publish(topic, p.qos, false, payload)

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return errors.Errorf("publish to %s timed out", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
