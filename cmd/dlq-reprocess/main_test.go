package main

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmoralesdiaz/almacen/internal/messaging/kafka"
)

// --- фейковые реализации kafka-портов ---

type fakeClient struct {
	partitions []int32
	oldest     map[int32]int64
	newest     map[int32]int64
	closed     bool
}

func (c *fakeClient) GetOffset(_ string, partition int32, at int64) (int64, error) {
	if at == sarama.OffsetOldest {
		return c.oldest[partition], nil
	}
	return c.newest[partition], nil
}

func (c *fakeClient) Partitions(string) ([]int32, error) { return c.partitions, nil }
func (c *fakeClient) Close() error                       { c.closed = true; return nil }

type fakeReader struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (r *fakeReader) Messages() <-chan *sarama.ConsumerMessage { return r.messages }
func (r *fakeReader) Errors() <-chan *sarama.ConsumerError     { return r.errors }
func (r *fakeReader) Close() error                             { return nil }

type fakeSource struct {
	byPartition map[int32][]*sarama.ConsumerMessage
	startSeen   map[int32]int64
}

func (s *fakeSource) ConsumePartition(_ string, partition int32, offset int64) (partitionReader, error) {
	if s.startSeen == nil {
		s.startSeen = make(map[int32]int64)
	}
	s.startSeen[partition] = offset

	msgs := s.byPartition[partition]
	reader := &fakeReader{
		messages: make(chan *sarama.ConsumerMessage, len(msgs)+1),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	for _, m := range msgs {
		if m.Offset >= offset {
			reader.messages <- m
		}
	}
	close(reader.messages)
	return reader, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeSink struct {
	sent    []*sarama.ProducerMessage
	failErr error
}

func (s *fakeSink) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if s.failErr != nil {
		return 0, 0, s.failErr
	}
	s.sent = append(s.sent, msg)
	return 0, int64(len(s.sent)), nil
}

func (s *fakeSink) Close() error { return nil }

// --- фикстуры сообщений ---

func outboxDLQMessage(t *testing.T, offset int64, aggregateType, orderID string) *sarama.ConsumerMessage {
	t.Helper()
	inner, err := json.Marshal(outboxDLQPayload{
		OutboxID:      "out-1",
		AggregateType: aggregateType,
		AggregateID:   orderID,
		EventType:     "order.created",
		Payload:       json.RawMessage(fmt.Sprintf(`{"order_id":%q}`, orderID)),
	})
	require.NoError(t, err)

	value, err := json.Marshal(outboxDLQEnvelope{
		ID:            "out-1",
		AggregateType: aggregateType,
		AggregateID:   orderID,
		EventType:     "order.created",
		Payload:       inner,
	})
	require.NoError(t, err)

	return &sarama.ConsumerMessage{Topic: kafka.TopicDeadLetterQueue, Offset: offset, Value: value}
}

func consumerDLQMessage(t *testing.T, offset int64, originalTopic, key, value string) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"original_topic": originalTopic,
		"original_key":   key,
		"original_value": value,
		"error_message":  "handler failed",
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: kafka.TopicDeadLetterQueue, Offset: offset, Value: raw}
}

func defaultOptions() options {
	return options{
		brokers:     []string{"localhost:9092"},
		dlqTopic:    kafka.TopicDeadLetterQueue,
		limit:       100,
		idleTimeout: 200 * time.Millisecond,
	}
}

// --- декодирование ---

func TestDecodeConsumerEnvelope(t *testing.T) {
	msg := consumerDLQMessage(t, 0, kafka.TopicOrderEvents, "PED-1", `{"order_id":"PED-1"}`)

	c, ok, err := decodeDLQMessage(msg, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kafka.TopicOrderEvents, c.topic)
	assert.Equal(t, "PED-1", c.key)
	assert.JSONEq(t, `{"order_id":"PED-1"}`, string(c.value))
}

func TestDecodeConsumerEnvelopeOverride(t *testing.T) {
	msg := consumerDLQMessage(t, 0, kafka.TopicOrderEvents, "PED-1", `{}`)

	c, ok, err := decodeDLQMessage(msg, "almacen.replay")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "almacen.replay", c.topic)
}

func TestDecodeOutboxEnvelopeRoutesByAggregate(t *testing.T) {
	orderMsg := outboxDLQMessage(t, 0, "order", "PED-1")
	c, ok, err := decodeDLQMessage(orderMsg, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kafka.TopicOrderEvents, c.topic)
	assert.Equal(t, "PED-1", c.key)

	checkoutMsg := outboxDLQMessage(t, 1, "checkout", "PED-2")
	c, ok, err = decodeDLQMessage(checkoutMsg, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kafka.TopicCheckoutEvents, c.topic)

	var replay replayEnvelope
	require.NoError(t, json.Unmarshal(c.value, &replay))
	assert.Equal(t, "checkout", replay.AggregateType)
	assert.JSONEq(t, `{"order_id":"PED-2"}`, string(replay.Payload))
	assert.False(t, replay.PublishedAt.IsZero())
}

func TestDecodeGarbageSkipped(t *testing.T) {
	msg := &sarama.ConsumerMessage{Offset: 0, Value: []byte("not json at all")}

	_, ok, err := decodeDLQMessage(msg, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeOutboxEnvelopeWithoutInnerPayload(t *testing.T) {
	value, err := json.Marshal(outboxDLQEnvelope{
		ID:            "out-1",
		AggregateType: "order",
		EventType:     "order.created",
		Payload:       json.RawMessage(`{"outbox_id":"out-1"}`),
	})
	require.NoError(t, err)

	_, _, decodeErr := decodeDLQMessage(&sarama.ConsumerMessage{Value: value}, "")
	require.Error(t, decodeErr)
	assert.Contains(t, decodeErr.Error(), "original event payload")
}

func TestTargetTopicFor(t *testing.T) {
	assert.Equal(t, kafka.TopicOrderEvents, targetTopicFor("order", ""))
	assert.Equal(t, kafka.TopicCheckoutEvents, targetTopicFor("checkout", ""))
	assert.Equal(t, kafka.TopicOrderEvents, targetTopicFor("", ""))
	assert.Equal(t, "override", targetTopicFor("checkout", "override"))
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers("a:9092, b:9092,"))
	assert.Empty(t, splitBrokers("  ,  "))
	assert.Empty(t, splitBrokers(""))
}

// --- сканирование ---

func TestReplayerDryRunCountsCandidates(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 3},
	}
	source := &fakeSource{byPartition: map[int32][]*sarama.ConsumerMessage{
		0: {
			outboxDLQMessage(t, 0, "order", "PED-1"),
			outboxDLQMessage(t, 1, "checkout", "PED-2"),
			{Offset: 2, Value: []byte("garbage")},
		},
	}}

	r := &replayer{opts: defaultOptions(), client: client, source: source}
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, 3, r.processed)
	assert.Equal(t, 2, r.replayed)
	assert.Equal(t, 1, r.skipped)
}

func TestReplayerExecutePublishes(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 2},
	}
	source := &fakeSource{byPartition: map[int32][]*sarama.ConsumerMessage{
		0: {
			outboxDLQMessage(t, 0, "order", "PED-1"),
			outboxDLQMessage(t, 1, "checkout", "PED-2"),
		},
	}}
	sink := &fakeSink{}

	opts := defaultOptions()
	opts.execute = true

	r := &replayer{opts: opts, client: client, source: source, sink: sink}
	require.NoError(t, r.run(context.Background()))

	require.Len(t, sink.sent, 2)
	assert.Equal(t, kafka.TopicOrderEvents, sink.sent[0].Topic)
	assert.Equal(t, kafka.TopicCheckoutEvents, sink.sent[1].Topic)
	assert.Equal(t, 2, r.replayed)
}

func TestReplayerExecuteRequiresSink(t *testing.T) {
	opts := defaultOptions()
	opts.execute = true

	r := &replayer{opts: opts, client: &fakeClient{}, source: &fakeSource{}}
	err := r.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "producer is required")
}

func TestReplayerPublishErrorSkips(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 1},
	}
	source := &fakeSource{byPartition: map[int32][]*sarama.ConsumerMessage{
		0: {outboxDLQMessage(t, 0, "order", "PED-1")},
	}}
	sink := &fakeSink{failErr: fmt.Errorf("broker down")}

	opts := defaultOptions()
	opts.execute = true

	r := &replayer{opts: opts, client: client, source: source, sink: sink}
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, 0, r.replayed)
	assert.Equal(t, 1, r.skipped)
}

func TestReplayerHonorsLimit(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 5},
	}
	msgs := make([]*sarama.ConsumerMessage, 0, 5)
	for i := int64(0); i < 5; i++ {
		msgs = append(msgs, outboxDLQMessage(t, i, "order", fmt.Sprintf("PED-%d", i)))
	}
	source := &fakeSource{byPartition: map[int32][]*sarama.ConsumerMessage{0: msgs}}

	opts := defaultOptions()
	opts.limit = 2

	r := &replayer{opts: opts, client: client, source: source}
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, 2, r.processed)
}

func TestReplayerFromNewestAdjustsStart(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 10},
	}
	msgs := make([]*sarama.ConsumerMessage, 0, 10)
	for i := int64(0); i < 10; i++ {
		msgs = append(msgs, outboxDLQMessage(t, i, "order", fmt.Sprintf("PED-%d", i)))
	}
	source := &fakeSource{byPartition: map[int32][]*sarama.ConsumerMessage{0: msgs}}

	opts := defaultOptions()
	opts.limit = 3
	opts.fromNewest = true

	r := &replayer{opts: opts, client: client, source: source}
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, int64(7), source.startSeen[0])
	assert.Equal(t, 3, r.processed)
}

func TestReplayerEmptyPartition(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 4},
		newest:     map[int32]int64{0: 4},
	}

	r := &replayer{opts: defaultOptions(), client: client, source: &fakeSource{}}
	require.NoError(t, r.run(context.Background()))
	assert.Equal(t, 0, r.processed)
}

func TestReplayerNoPartitions(t *testing.T) {
	r := &replayer{opts: defaultOptions(), client: &fakeClient{}, source: &fakeSource{}}
	require.NoError(t, r.run(context.Background()))
}

func TestRunClosesDependencies(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{},
	}
	origConnect := connectKafka
	connectKafka = func(options) (clusterClient, partitionSource, eventSink, error) {
		return client, &fakeSource{}, nil, nil
	}
	defer func() { connectKafka = origConnect }()

	require.NoError(t, run(context.Background(), defaultOptions()))
	assert.True(t, client.closed)
}
