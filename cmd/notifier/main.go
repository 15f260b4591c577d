// Command notifier подписывается на события заказов и checkout'а и
// пишет уведомления для администратора витрины: новый заказ, смена
// статуса, неудачное оформление. Сообщения, которые не удалось
// обработать, после retry уходят в almacen.dlq.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/messaging/kafka"
)

const defaultGroupID = "almacen-notifier"

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	var (
		brokersRaw string
		groupID    string
		maxRetries int
	)
	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers, comma-separated (fallback: KAFKA_BROKERS)")
	flag.StringVar(&groupID, "group", defaultGroupID, "consumer group id")
	flag.IntVar(&maxRetries, "max-retries", 3, "processing attempts before DLQ")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	brokers := splitBrokers(brokersRaw)
	if len(brokers) == 0 {
		fail("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, brokers, groupID, maxRetries); err != nil {
		fail("notifier failed: %v", err)
	}
}

func run(ctx context.Context, brokers []string, groupID string, maxRetries int) error {
	logger := log.WithField("component", "notifier")

	// DLQ-producer опционален: без него упавшие сообщения просто не
	// маркируются и будут перечитаны.
	dlqProducer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("dlq producer unavailable, continuing without DLQ")
		dlqProducer = nil
	}
	if dlqProducer != nil {
		defer func() { _ = dlqProducer.Close() }()
	}

	n := &notifier{logger: logger}
	topics := []string{kafka.TopicOrderEvents, kafka.TopicCheckoutEvents}

	consumer, err := kafka.NewConsumerWithDLQ(brokers, groupID, topics, n.handle, dlqProducer, maxRetries)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	logger.WithField("topics", topics).Info("notificador iniciado")

	<-ctx.Done()
	return consumer.Stop()
}

type notifier struct {
	logger *log.Entry
}

// handle разворачивает конверт события и пишет уведомление. Сообщения
// без конверта пробуем разобрать как голые события, прочий мусор
// отдаём в retry/DLQ.
func (n *notifier) handle(_ context.Context, msg *sarama.ConsumerMessage) error {
	env, err := kafka.ParseEnvelope(msg.Value)
	if err != nil {
		return n.handleBare(msg, err)
	}

	switch kafka.EventType(env.EventType) {
	case kafka.EventTypeOrderCreated:
		event, err := kafka.OrderEventFromEnvelope(env)
		if err != nil {
			return err
		}
		n.logger.WithFields(log.Fields{
			"order_id": event.OrderID,
			"status":   event.Status,
		}).Info("nuevo pedido recibido")
	case kafka.EventTypeOrderStatusChanged:
		event, err := kafka.OrderEventFromEnvelope(env)
		if err != nil {
			return err
		}
		n.logger.WithFields(log.Fields{
			"order_id": event.OrderID,
			"status":   event.Status,
		}).Info("pedido cambió de estado")
	case kafka.EventTypeCheckoutCompleted:
		event, err := kafka.CheckoutEventFromEnvelope(env)
		if err != nil {
			return err
		}
		n.logger.WithFields(log.Fields{
			"order_id": event.OrderID,
			"total":    event.Total,
		}).Info("checkout completado")
	case kafka.EventTypeCheckoutFailed:
		event, err := kafka.CheckoutEventFromEnvelope(env)
		if err != nil {
			return err
		}
		fields := log.Fields{"order_id": event.OrderID}
		if reason, ok := event.Metadata["reason"]; ok {
			fields["reason"] = reason
		}
		n.logger.WithFields(fields).Warn("checkout fallido")
	default:
		n.logger.WithFields(log.Fields{
			"event_type": env.EventType,
			"topic":      msg.Topic,
		}).Debug("evento desconocido, ignorado")
	}
	return nil
}

// handleBare обрабатывает события, опубликованные без outbox-конверта.
func (n *notifier) handleBare(msg *sarama.ConsumerMessage, envErr error) error {
	if event, err := kafka.ParseOrderEvent(msg); err == nil && event.OrderID != "" && event.EventType != "" {
		n.logger.WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.EventType,
		}).Info("evento de pedido sin envoltura")
		return nil
	}
	if event, err := kafka.ParseCheckoutEvent(msg); err == nil && event.OrderID != "" && event.EventType != "" {
		n.logger.WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.EventType,
		}).Info("evento de checkout sin envoltura")
		return nil
	}
	return envErr
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

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
