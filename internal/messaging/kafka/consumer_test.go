package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (g *stubConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if g.consumeFn != nil {
		return g.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (g *stubConsumerGroup) Errors() <-chan error { return g.errorsCh }

func (g *stubConsumerGroup) Close() error {
	if g.closeFn != nil {
		return g.closeFn()
	}
	if g.errorsCh != nil {
		close(g.errorsCh)
	}
	return nil
}

func (g *stubConsumerGroup) Pause(map[string][]int32)  {}
func (g *stubConsumerGroup) Resume(map[string][]int32) {}
func (g *stubConsumerGroup) PauseAll()                 {}
func (g *stubConsumerGroup) ResumeAll()                {}

type stubSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (s *stubSession) Claims() map[string][]int32               { return nil }
func (s *stubSession) MemberID() string                         { return "almacen-notifier-1" }
func (s *stubSession) GenerationID() int32                      { return 1 }
func (s *stubSession) MarkOffset(string, int32, int64, string)  {}
func (s *stubSession) Commit()                                  {}
func (s *stubSession) ResetOffset(string, int32, int64, string) {}
func (s *stubSession) Context() context.Context                 { return s.ctx }
func (s *stubSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg)
}

type stubClaim struct {
	topic    string
	messages chan *sarama.ConsumerMessage
}

func (c *stubClaim) Topic() string                            { return c.topic }
func (c *stubClaim) Partition() int32                         { return 0 }
func (c *stubClaim) InitialOffset() int64                     { return 0 }
func (c *stubClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *stubClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func testLogger(name string) *log.Entry {
	base := log.New()
	base.SetLevel(log.PanicLevel)
	return base.WithField("test", name)
}

func orderMessage(t *testing.T, retryCount string) *sarama.ConsumerMessage {
	t.Helper()
	msg := &sarama.ConsumerMessage{
		Topic:     TopicOrderEvents,
		Partition: 2,
		Offset:    77,
		Key:       []byte("PED-17000000000010001"),
		Value:     []byte(`{"event_type":"order.created","order_id":"PED-17000000000010001","status":"confirmado"}`),
	}
	if retryCount != "" {
		msg.Headers = []*sarama.RecordHeader{{Key: []byte(HeaderRetryCount), Value: []byte(retryCount)}}
	}
	return msg
}

func TestNewConsumerErrors(t *testing.T) {
	noop := func(context.Context, *sarama.ConsumerMessage) error { return nil }

	_, err := NewConsumer([]string{"unreachable:9092"}, "almacen-notifier", []string{TopicOrderEvents}, noop)
	assert.Error(t, err)

	_, err = NewConsumerWithDLQ([]string{"unreachable:9092"}, "almacen-notifier", []string{TopicOrderEvents}, noop, nil, 3)
	assert.Error(t, err)
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	errorsCh := make(chan error, 1)
	group := &stubConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, topics []string, _ sarama.ConsumerGroupHandler) error {
			consumeCalls++
			assert.Equal(t, []string{TopicOrderEvents, TopicCheckoutEvents}, topics)
			cancel()
			return nil
		},
		closeFn: func() error {
			close(errorsCh)
			return nil
		},
	}

	consumer := &Consumer{
		consumer:   group,
		topics:     []string{TopicOrderEvents, TopicCheckoutEvents},
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     testLogger("start-stop"),
		maxRetries: 2,
	}

	errorsCh <- errors.New("rebalance in progress")
	require.NoError(t, consumer.Start(ctx))
	require.NoError(t, consumer.Stop())
	assert.NotZero(t, consumeCalls)
}

func TestConsumerStopError(t *testing.T) {
	errorsCh := make(chan error)
	group := &stubConsumerGroup{errorsCh: errorsCh, closeFn: func() error {
		close(errorsCh)
		return errors.New("close failed")
	}}
	consumer := &Consumer{consumer: group, logger: testLogger("stop-error")}
	assert.Error(t, consumer.Stop())
}

func TestConsumerSetupCleanup(t *testing.T) {
	consumer := &Consumer{}
	assert.NoError(t, consumer.Setup(nil))
	assert.NoError(t, consumer.Cleanup(nil))
}

func TestConsumeClaimMarksHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:  testLogger("claim"),
	}

	session := &stubSession{ctx: ctx}
	claim := &stubClaim{topic: TopicOrderEvents, messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- orderMessage(t, "")
	close(claim.messages)

	require.NoError(t, consumer.ConsumeClaim(session, claim))
	assert.Len(t, session.marked, 1)
}

func TestConsumeClaimDoesNotMarkFailedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := &Consumer{
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return errors.New("handler rejected") },
		logger:     testLogger("claim-fail"),
		maxRetries: 1,
	}

	session := &stubSession{ctx: ctx}
	claim := &stubClaim{topic: TopicOrderEvents, messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- orderMessage(t, "")
	close(claim.messages)

	require.NoError(t, consumer.ConsumeClaim(session, claim))
	assert.Empty(t, session.marked)
}

func TestHandleMessageWithRetry(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		consumer := &Consumer{
			handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
			logger:     testLogger("retry-success"),
			maxRetries: 2,
		}
		assert.NoError(t, consumer.handleMessageWithRetry(context.Background(), orderMessage(t, "")))
	})

	t.Run("retries below the limit", func(t *testing.T) {
		attempts := 0
		consumer := &Consumer{
			handler: func(context.Context, *sarama.ConsumerMessage) error {
				attempts++
				return errors.New("temporary")
			},
			logger:     testLogger("retry"),
			maxRetries: 3,
			retryDelay: 0,
		}
		assert.Error(t, consumer.handleMessageWithRetry(context.Background(), orderMessage(t, "1")))
		assert.Equal(t, 2, attempts)
	})

	t.Run("retries exhausted without DLQ", func(t *testing.T) {
		consumer := &Consumer{
			handler:    func(context.Context, *sarama.ConsumerMessage) error { return errors.New("permanent") },
			logger:     testLogger("max-no-dlq"),
			maxRetries: 3,
		}
		assert.Error(t, consumer.handleMessageWithRetry(context.Background(), orderMessage(t, "3")))
	})

	t.Run("retries exhausted, DLQ accepts", func(t *testing.T) {
		mockProducer := mocks.NewSyncProducer(t, nil)
		mockProducer.ExpectSendMessageAndSucceed()
		consumer := &Consumer{
			handler:     func(context.Context, *sarama.ConsumerMessage) error { return errors.New("permanent") },
			dlqProducer: &Producer{producer: mockProducer, logger: testLogger("dlq")},
			logger:      testLogger("max-dlq"),
			maxRetries:  3,
		}
		assert.NoError(t, consumer.handleMessageWithRetry(context.Background(), orderMessage(t, "3")))
		require.NoError(t, mockProducer.Close())
	})

	t.Run("retries exhausted, DLQ down", func(t *testing.T) {
		mockProducer := mocks.NewSyncProducer(t, nil)
		mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		consumer := &Consumer{
			handler:     func(context.Context, *sarama.ConsumerMessage) error { return errors.New("permanent") },
			dlqProducer: &Producer{producer: mockProducer, logger: testLogger("dlq-fail")},
			logger:      testLogger("max-dlq-fail"),
			maxRetries:  3,
		}
		assert.Error(t, consumer.handleMessageWithRetry(context.Background(), orderMessage(t, "3")))
		require.NoError(t, mockProducer.Close())
	})
}

func TestGetRetryCount(t *testing.T) {
	consumer := &Consumer{}

	assert.Equal(t, 5, consumer.getRetryCount(orderMessage(t, "5")))
	assert.Equal(t, 0, consumer.getRetryCount(orderMessage(t, "not-a-number")))
	assert.Equal(t, 0, consumer.getRetryCount(orderMessage(t, "")))
}

func TestSendToDLQ(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	var dlqPayload consumerDLQEnvelope
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		value, err := pm.Value.Encode()
		if err != nil {
			return err
		}
		return json.Unmarshal(value, &dlqPayload)
	})

	consumer := &Consumer{
		dlqProducer: &Producer{producer: mockProducer, logger: testLogger("send-dlq")},
		logger:      testLogger("consumer-send-dlq"),
	}

	msg := orderMessage(t, "3")
	require.NoError(t, consumer.sendToDLQ(msg, errors.New("handler gave up")))
	require.NoError(t, mockProducer.Close())

	assert.Equal(t, TopicOrderEvents, dlqPayload.OriginalTopic)
	assert.Equal(t, int32(2), dlqPayload.OriginalPartition)
	assert.Equal(t, int64(77), dlqPayload.OriginalOffset)
	assert.Equal(t, "handler gave up", dlqPayload.ErrorMessage)
	assert.Equal(t, 3, dlqPayload.RetryCount)
}

func TestConsumeClaimStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &Consumer{
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     testLogger("claim-stop"),
		maxRetries: 1,
	}
	session := &stubSession{ctx: ctx}
	claim := &stubClaim{topic: TopicOrderEvents, messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan struct{})
	go func() {
		_ = consumer.ConsumeClaim(session, claim)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
}
