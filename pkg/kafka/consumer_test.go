package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	mu       sync.Mutex
	calls    int
	failures int
	panics   bool
}

func (h *stubHandler) Topic() string { return "requests" }

func (h *stubHandler) Handle(_ context.Context, _ []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.panics {
		panic("bad payload")
	}
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

type stubDLQ struct {
	msgs []kafka.Message
	err  error
}

func (d *stubDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if d.err != nil {
		return d.err
	}
	d.msgs = append(d.msgs, msgs...)
	return nil
}

func (d *stubDLQ) Close() error { return nil }

func testConsumer(retries int) *Consumer {
	return newConsumer(&ConsumerConfig{
		Brokers:    []string{"localhost:9092"},
		BufferSize: 1,
		RetryMax:   retries,
		BackoffMin: time.Millisecond,
		BackoffMax: 2 * time.Millisecond,
	})
}

func msgFor(topic string) *message {
	return &message{topic: topic, data: []byte(`{"symbol":"AAPL"}`), km: kafka.Message{Key: []byte("AAPL")}}
}

func TestProcessRetriesUntilSuccess(t *testing.T) {
	c := testConsumer(3)
	h := &stubHandler{failures: 2}
	c.RegisterHandler(h)

	assert.True(t, c.process(msgFor("requests")))
	assert.Equal(t, 3, h.calls)
}

func TestProcessWithoutDLQKeepsOffset(t *testing.T) {
	c := testConsumer(1)
	h := &stubHandler{failures: 10}
	c.RegisterHandler(h)

	assert.False(t, c.process(msgFor("requests")))
	assert.Equal(t, 2, h.calls)
}

func TestProcessSendsToDLQ(t *testing.T) {
	c := testConsumer(0)
	c.cfg.DLQTopic = "requests.dlq"
	dlq := &stubDLQ{}
	c.dlq = dlq
	c.RegisterHandler(&stubHandler{panics: true})

	assert.True(t, c.process(msgFor("requests")))
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "requests.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, []byte("AAPL"), dlq.msgs[0].Key)
	assert.Equal(t, "source_topic", dlq.msgs[0].Headers[0].Key)
	assert.Contains(t, string(dlq.msgs[0].Headers[1].Value), "bad payload")

	dlq.err = errors.New("broker down")
	assert.False(t, c.process(msgFor("requests")))
}

func TestProcessUnknownTopic(t *testing.T) {
	c := testConsumer(0)
	assert.True(t, c.process(msgFor("other")))
}

func TestRegisterHandlerKeepsFirst(t *testing.T) {
	c := testConsumer(0)
	first := &stubHandler{}
	c.RegisterHandler(first)
	c.RegisterHandler(&stubHandler{})
	assert.Same(t, first, c.handlers["requests"])
}

func TestStartRequiresHandler(t *testing.T) {
	c := testConsumer(0)
	assert.Error(t, c.Start())
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)
	_, err = NewProducer()
	assert.Error(t, err)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
	d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, 1)
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	_, err = encodeValue(func() {})
	assert.Error(t, err)
}
