package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"scanlog/internal/models"
)

// Consumer ingests scan submissions pushed by stationary scanner devices.
// Each message goes through the same validation path as an HTTP save.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start consumes submissions until the context is cancelled. Bad payloads
// are skipped, handler errors logged; neither stops the loop.
func (c *Consumer) Start(ctx context.Context, handler func(submission models.ScanSubmission) error) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("error reading scan submission: %v", err)
			continue
		}

		var submission models.ScanSubmission
		if err := json.Unmarshal(msg.Value, &submission); err != nil {
			log.Printf("failed to unmarshal scan submission: %v", err)
			continue
		}

		if err := handler(submission); err != nil {
			log.Printf("failed to ingest scan submission for barcode %s: %v", submission.Barcode, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
