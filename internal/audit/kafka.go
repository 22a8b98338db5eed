package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaEmitter produces audit events to a Kafka topic, keyed by action so
// events for one action land in order on one partition.
type KafkaEmitter struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaEmitterFromConfig builds a Kafka emitter from a comma-separated
// broker list. Returns (nil, nil) when brokers is empty so callers can fall
// back to the logger emitter.
func NewKafkaEmitterFromConfig(brokers, topic, clientID string, logger zerolog.Logger) (*KafkaEmitter, error) {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil, nil
	}
	if topic == "" {
		return nil, fmt.Errorf("audit: kafka topic must not be empty")
	}

	addrs := []string{}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
		Transport:    &kafka.Transport{ClientID: clientID},
	}

	return &KafkaEmitter{
		writer: writer,
		logger: logger.With().Str("component", "audit-kafka").Logger(),
	}, nil
}

// Emit marshals the event and writes it to the topic.
func (e *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}

	err = e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Action),
		Value: payload,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("action", event.Action).Msg("failed to produce audit event")
		return fmt.Errorf("audit: produce event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
