package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DeliveryDispatcher publishes delivery jobs to Kafka.
type DeliveryDispatcher struct {
	writer *kafka.Writer
}

// NewDeliveryDispatcher constructs a dispatcher for the given topic.
func NewDeliveryDispatcher(k *Kafka, topic string) *DeliveryDispatcher {
	return &DeliveryDispatcher{
		writer: k.NewWriter(topic),
	}
}

// Dispatch writes the delivery job to Kafka. Keys by line id so one line's
// jobs land in one partition and are consumed in fire order.
func (d *DeliveryDispatcher) Dispatch(ctx context.Context, job DeliveryJob) error {
	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("delivery dispatcher: marshal job: %w", err)
	}

	record := kafka.Message{
		Key:   job.LineID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := d.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("delivery dispatcher: write job: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (d *DeliveryDispatcher) Close() error {
	return d.writer.Close()
}
