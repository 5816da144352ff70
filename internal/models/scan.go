package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ScanEvent is one barcode reading. Rows are inserted and deleted, never
// updated in place.
type ScanEvent struct {
	bun.BaseModel `bun:"table:scans"`

	ScanID    string    `bun:"scan_id,pk" json:"scan_id"`
	Barcode   string    `bun:"barcode,notnull" json:"barcode"`
	Quantity  int       `bun:"quantity,notnull" json:"quantity"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// AggregatedScanRow is one barcode's totals within a filter window. Derived,
// never persisted.
type AggregatedScanRow struct {
	Barcode       string    `bun:"barcode" json:"barcode"`
	TotalQuantity int       `bun:"total_quantity" json:"total_quantity"`
	LastScanAt    time.Time `bun:"last_scan_at" json:"last_scan_at"`
}

// ScanFilter narrows listing and aggregation queries. Zero From/To leave
// that side of the window open. Page is 1-based.
type ScanFilter struct {
	From     time.Time
	To       time.Time
	Search   string
	Page     int
	PageSize int
}

// ScanPage is the raw browsing view: one page of events plus the total match
// count for the pager.
type ScanPage struct {
	Scans    []ScanEvent `json:"scans"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}
