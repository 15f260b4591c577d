package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerPublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	var sentTopic, sentKey string
	var sent CheckoutEvent
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		sentTopic = pm.Topic
		key, err := pm.Key.Encode()
		if err != nil {
			return err
		}
		sentKey = string(key)
		value, err := pm.Value.Encode()
		if err != nil {
			return err
		}
		return json.Unmarshal(value, &sent)
	})

	producer := &Producer{
		producer: mockProducer,
		logger:   testLogger("producer"),
	}

	event := NewCheckoutEvent(EventTypeCheckoutCompleted, "PED-17000000000001234", 18440,
		map[string]interface{}{"session_id": "sess-1"})
	require.NoError(t, producer.PublishEvent(TopicCheckoutEvents, "PED-17000000000001234", event))
	require.NoError(t, mockProducer.Close())

	assert.Equal(t, TopicCheckoutEvents, sentTopic)
	assert.Equal(t, "PED-17000000000001234", sentKey)
	assert.Equal(t, EventTypeCheckoutCompleted, sent.EventType)
	assert.Equal(t, int64(18440), sent.Total)
}

func TestProducerPublishEventBrokerError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := &Producer{
		producer: mockProducer,
		logger:   testLogger("producer-error"),
	}

	event := NewCheckoutEvent(EventTypeCheckoutFailed, "PED-17000000000001234", 0, nil)
	assert.Error(t, producer.PublishEvent(TopicCheckoutEvents, "PED-17000000000001234", event))
	require.NoError(t, mockProducer.Close())
}

func TestProducerPublishEventUnserializable(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   testLogger("producer-marshal"),
	}

	assert.Error(t, producer.PublishEvent(TopicOrderEvents, "PED-1", func() {}))
	require.NoError(t, mockProducer.Close())
}
