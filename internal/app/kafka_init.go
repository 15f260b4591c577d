package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/messaging/kafka"
)

// parseBrokerList разбирает ALMACEN_KAFKA_BROKERS: адреса через запятую,
// пробелы вокруг и пустые элементы отбрасываются.
func parseBrokerList(raw string) []string {
	var brokers []string
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			brokers = append(brokers, addr)
		}
	}
	return brokers
}

// initKafkaProducer подключается к брокерам витрины. Kafka опционален:
// при пустом списке возвращается (nil, nil) и магазин работает без событий.
func initKafkaProducer(rawBrokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokers := parseBrokerList(rawBrokers)
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("kafka unavailable, order events stay in outbox")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer connected")
	return producer, nil
}

// closeKafka сбрасывает буферы продьюсера перед остановкой витрины.
// Допускает nil, чтобы вызывающему не нужно было ветвиться.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close failed")
		return
	}
	logger.Info("kafka producer closed")
}
