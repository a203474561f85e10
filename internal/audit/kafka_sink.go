package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"hybrid-auth-service/internal/models"
)

type messageProducer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaSink publishes every entry keyed by business id, so one business's
// events stay ordered on a single partition.
type KafkaSink struct {
	producer messageProducer
	topic    string
}

func NewKafkaSink(producer messageProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, entry *models.AuditLog) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	headers := map[string]string{
		"action":   entry.Action,
		"severity": string(entry.Severity),
	}
	return s.producer.ProduceMessage(ctx, s.topic, []byte(entry.BusinessID), value, headers)
}
