// Command dlq-reprocess перечитывает almacen.dlq и возвращает застрявшие
// события обратно в рабочие topic'и. По умолчанию работает в режиме
// dry-run: печатает кандидатов, ничего не публикуя.
//
// В DLQ попадают сообщения двух форм: конверт consumer'а с original_*
// полями и конверт outbox-воркера с метаданными events. Обе формы
// распознаются и разворачиваются в исходное событие.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/messaging/kafka"
)

const (
	defaultScanLimit   = 100
	defaultIdleTimeout = 2 * time.Second
)

type options struct {
	brokers     []string
	dlqTopic    string
	targetTopic string // пусто = маршрутизация по aggregate_type
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// candidate — сообщение, восстановленное из DLQ и готовое к повторной
// публикации.
type candidate struct {
	topic string
	key   string
	value []byte
}

// clusterClient закрывает нужную нам часть sarama.Client.
type clusterClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionReader interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionReader, error)
	Close() error
}

type eventSink interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionReader, error) {
	pc, err := s.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (s saramaSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

// connectKafka подменяется в тестах фейковыми реализациями.
var connectKafka = func(opts options) (clusterClient, partitionSource, eventSink, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(opts.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	source := saramaSource{consumer: rawConsumer}

	// Producer нужен только в execute-режиме.
	if !opts.execute {
		return client, source, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(opts.brokers, producerConfig)
	if err != nil {
		_ = source.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, source, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	opts, err := parseFlags()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), opts); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func parseFlags() (options, error) {
	var (
		brokersRaw string
		opts       options
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers, comma-separated (fallback: KAFKA_BROKERS)")
	flag.StringVar(&opts.dlqTopic, "dlq-topic", kafka.TopicDeadLetterQueue, "DLQ topic to scan")
	flag.StringVar(&opts.targetTopic, "target-topic", "", "override target topic; default routes by aggregate type")
	flag.IntVar(&opts.limit, "limit", defaultScanLimit, "max messages to scan")
	flag.BoolVar(&opts.execute, "execute", false, "publish candidates; default is dry-run")
	flag.BoolVar(&opts.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flag.DurationVar(&opts.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	opts.brokers = splitBrokers(brokersRaw)

	switch {
	case len(opts.brokers) == 0:
		return options{}, fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	case strings.TrimSpace(opts.dlqTopic) == "":
		return options{}, fmt.Errorf("dlq-topic is required")
	case opts.limit <= 0:
		return options{}, fmt.Errorf("limit must be > 0")
	case opts.idleTimeout <= 0:
		return options{}, fmt.Errorf("idle-timeout must be > 0")
	}

	return opts, nil
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, opts options) error {
	log.WithFields(log.Fields{
		"dlq_topic":    opts.dlqTopic,
		"target_topic": opts.targetTopic,
		"limit":        opts.limit,
		"execute":      opts.execute,
		"from_newest":  opts.fromNewest,
	}).Info("starting dlq replay")

	client, source, sink, err := connectKafka(opts)
	if err != nil {
		return err
	}
	defer func() {
		if sink != nil {
			_ = sink.Close()
		}
		if source != nil {
			_ = source.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	r := &replayer{opts: opts, client: client, source: source, sink: sink}
	return r.run(ctx)
}

type replayer struct {
	opts   options
	client clusterClient
	source partitionSource
	sink   eventSink

	processed int
	replayed  int
	skipped   int
}

func (r *replayer) run(ctx context.Context) error {
	if r.client == nil || r.source == nil {
		return fmt.Errorf("kafka client and consumer are required")
	}
	if r.opts.execute && r.sink == nil {
		return fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := r.client.Partitions(r.opts.dlqTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", r.opts.dlqTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", r.opts.dlqTopic).Warn("dlq topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if r.processed >= r.opts.limit {
			break
		}
		if err := r.scanPartition(ctx, partition); err != nil {
			return err
		}
	}

	mode := "dry-run"
	if r.opts.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": r.processed,
		"replayed":  r.replayed,
		"skipped":   r.skipped,
	}).Info("dlq replay finished")
	return nil
}

func (r *replayer) scanPartition(ctx context.Context, partition int32) error {
	remaining := r.opts.limit - r.processed
	if remaining <= 0 {
		return nil
	}

	oldest, err := r.client.GetOffset(r.opts.dlqTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(r.opts.dlqTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	start := oldest
	if r.opts.fromNewest {
		start = newest - int64(remaining)
		if start < oldest {
			start = oldest
		}
	}

	reader, err := r.source.ConsumePartition(r.opts.dlqTopic, partition, start)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = reader.Close() }()

	idle := time.NewTimer(r.opts.idleTimeout)
	defer idle.Stop()

	scanned := 0
	for scanned < remaining {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-reader.Errors():
			if err != nil {
				return fmt.Errorf("partition %d consumer error: %w", partition, err)
			}
		case msg, ok := <-reader.Messages():
			if !ok || msg == nil {
				return nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.opts.idleTimeout)

			if msg.Offset >= newest {
				return nil
			}

			scanned++
			r.handleMessage(msg)

			if msg.Offset+1 >= newest {
				return nil
			}
		case <-idle.C:
			return nil
		}
	}
	return nil
}

func (r *replayer) handleMessage(msg *sarama.ConsumerMessage) {
	r.processed++

	c, ok, err := decodeDLQMessage(msg, r.opts.targetTopic)
	if err != nil {
		r.skipped++
		log.WithError(err).WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("skip unsupported dlq message")
		return
	}
	if !ok {
		r.skipped++
		return
	}

	if !r.opts.execute {
		log.WithFields(log.Fields{
			"partition":    msg.Partition,
			"offset":       msg.Offset,
			"target_topic": c.topic,
			"key":          c.key,
		}).Info("dlq replay candidate")
		r.replayed++
		return
	}

	if _, _, err := r.sink.SendMessage(&sarama.ProducerMessage{
		Topic:     c.topic,
		Key:       sarama.StringEncoder(c.key),
		Value:     sarama.ByteEncoder(c.value),
		Timestamp: time.Now().UTC(),
	}); err != nil {
		r.skipped++
		log.WithError(err).WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Error("failed to republish dlq message")
		return
	}
	r.replayed++
}

// consumerDLQEnvelope — форма, которую пишет Consumer.sendToDLQ.
type consumerDLQEnvelope struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
}

// outboxDLQEnvelope — конверт OutboxTopicPublisher с payload'ом,
// который упаковал outbox-воркер при уходе в DLQ.
type outboxDLQEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type outboxDLQPayload struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type replayEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// targetTopicFor повторяет маршрутизацию OutboxRouter: checkout-события
// возвращаются в topic checkout, остальные — в topic заказов.
func targetTopicFor(aggregateType, override string) string {
	if override != "" {
		return override
	}
	if aggregateType == domain.AggregateCheckout {
		return kafka.TopicCheckoutEvents
	}
	return kafka.TopicOrderEvents
}

func decodeDLQMessage(msg *sarama.ConsumerMessage, overrideTopic string) (candidate, bool, error) {
	// Сначала пробуем конверт consumer'а: в нём сохранено исходное
	// сообщение в неизменном виде.
	var ce consumerDLQEnvelope
	if err := json.Unmarshal(msg.Value, &ce); err == nil && ce.OriginalValue != "" {
		topic := strings.TrimSpace(ce.OriginalTopic)
		if topic == "" {
			topic = targetTopicFor("", overrideTopic)
		}
		if overrideTopic != "" {
			topic = overrideTopic
		}
		return candidate{topic: topic, key: ce.OriginalKey, value: []byte(ce.OriginalValue)}, true, nil
	}

	var envelope outboxDLQEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return candidate{}, false, nil
	}
	if len(envelope.Payload) == 0 {
		return candidate{}, false, nil
	}

	var dlq outboxDLQPayload
	if err := json.Unmarshal(envelope.Payload, &dlq); err != nil {
		return candidate{}, false, fmt.Errorf("decode outbox dlq payload: %w", err)
	}
	if len(dlq.Payload) == 0 {
		return candidate{}, false, fmt.Errorf("outbox dlq payload does not contain original event payload")
	}

	replay := replayEnvelope{
		ID:            coalesce(dlq.OutboxID, envelope.ID),
		AggregateType: coalesce(dlq.AggregateType, envelope.AggregateType),
		AggregateID:   coalesce(dlq.AggregateID, envelope.AggregateID),
		EventType:     coalesce(dlq.EventType, envelope.EventType),
		Payload:       dlq.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return candidate{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}

	key := replay.AggregateID
	if key == "" {
		key = replay.ID
	}

	return candidate{
		topic: targetTopicFor(replay.AggregateType, overrideTopic),
		key:   key,
		value: encoded,
	}, true, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
