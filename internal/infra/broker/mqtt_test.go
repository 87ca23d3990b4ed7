package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/internal/domain"
)

type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient only implements Publish; other calls panic.
type fakeClient struct {
	mqtt.Client
	sent []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return fakeToken{err: c.err}
}

func TestMQTTPublisher(t *testing.T) {
	patient := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	client := &fakeClient{}
	p := newMQTTPublisher(client, 1)

	event := domain.Event{
		TxID:      "tx-1",
		Kind:      domain.EventDataUpdated,
		Patient:   patient,
		Pointer:   "bafkreiexample",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, client.sent, 1)
	assert.Equal(t, "healthvault/events/"+patient.Hex(), client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var msg healthvault.EventMessage
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &msg))
	assert.Equal(t, "DataUpdated", msg.Kind)
	assert.Equal(t, "bafkreiexample", msg.Pointer)

	client.err = errors.New("not connected")
	assert.Error(t, p.Publish(context.Background(), event))
}
