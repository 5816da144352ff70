package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"scanlog/internal/config"
	"scanlog/internal/models"
)

// Producer streams scan lifecycle events, keyed by scan id so per-scan
// ordering is preserved.
type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
	}
	return &Producer{writer: writer, topics: topics}
}

// PublishScanRecorded streams a persisted scan to the recorded topic.
func (p *Producer) PublishScanRecorded(scan models.ScanEvent) error {
	event := models.ScanRecordedEvent{
		ScanID:    scan.ScanID,
		Barcode:   scan.Barcode,
		Quantity:  scan.Quantity,
		CreatedAt: scan.CreatedAt,
	}
	return p.publish(p.topics.ScanRecorded, scan.ScanID, event)
}

// PublishScanDeleted streams a removal to the deleted topic.
func (p *Producer) PublishScanDeleted(scanID string) error {
	event := models.ScanDeletedEvent{
		ScanID:    scanID,
		DeletedAt: time.Now().UTC(),
	}
	return p.publish(p.topics.ScanDeleted, scanID, event)
}

func (p *Producer) publish(topic, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
