package models

import "time"

// ScanRecordedEvent is published to Kafka after a scan is persisted.
type ScanRecordedEvent struct {
	ScanID    string    `json:"scan_id"`
	Barcode   string    `json:"barcode"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanDeletedEvent is published to Kafka after a scan is removed.
type ScanDeletedEvent struct {
	ScanID    string    `json:"scan_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ScanSubmission is the payload stationary scanner devices push onto the
// submitted topic. It goes through the same validation as an HTTP save.
type ScanSubmission struct {
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}
