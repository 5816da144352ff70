package scans

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"scanlog/internal/config"
	"scanlog/internal/export"
	"scanlog/internal/mailer"
	"scanlog/internal/models"
)

const (
	ExportSubject = "Barcode Scans Export"
	ExportBody    = "Please find attached the barcode scans export."
)

// PageSizes are the selectable page sizes for the browsing table. Anything
// else falls back to the configured default.
var PageSizes = []int{10, 25, 50, 100}

type ScanDBLayer interface {
	CreateScan(ctx context.Context, scan models.ScanEvent) error
	GetScanByID(ctx context.Context, id string) (*models.ScanEvent, error)
	DeleteScan(ctx context.Context, id string) (bool, error)
	ListScans(ctx context.Context, filter models.ScanFilter) ([]models.ScanEvent, int, error)
	AggregateScans(ctx context.Context, filter models.ScanFilter) ([]models.AggregatedScanRow, error)
}

type ExportMailer interface {
	SendAttachment(to, subject, body, filename string, attachment []byte) error
}

// EventPublisher streams scan lifecycle events. May be nil when Kafka is
// disabled; publish failures never fail the request.
type EventPublisher interface {
	PublishScanRecorded(scan models.ScanEvent) error
	PublishScanDeleted(scanID string) error
}

type ScanService struct {
	DB        ScanDBLayer
	Mailer    ExportMailer
	Publisher EventPublisher
	Config    config.ScanConfig
}

func NewScanService(db ScanDBLayer, m ExportMailer, pub EventPublisher, cfg config.ScanConfig) *ScanService {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 25
	}
	return &ScanService{DB: db, Mailer: m, Publisher: pub, Config: cfg}
}

// Save validates one (barcode, quantity) pair and persists exactly one scan
// event. Quantity zero means omitted and defaults to 1.
func (s *ScanService) Save(ctx context.Context, barcode string, quantity int) (*models.ScanEvent, error) {
	if err := s.validateBarcode(barcode); err != nil {
		return nil, err
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, &ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}

	scan := models.ScanEvent{
		ScanID:    uuid.New().String(),
		Barcode:   barcode,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.DB.CreateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to save scan: %w", err)
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishScanRecorded(scan); err != nil {
			log.Printf("failed to publish scan recorded event: %v", err)
		}
	}

	return &scan, nil
}

// IngestSubmission records a scan pushed by a stationary scanner device.
// Submissions go through the same validation as an HTTP save.
func (s *ScanService) IngestSubmission(ctx context.Context, submission models.ScanSubmission) (*models.ScanEvent, error) {
	return s.Save(ctx, submission.Barcode, submission.Quantity)
}

// Get fetches one scan event by id.
func (s *ScanService) Get(ctx context.Context, scanID string) (*models.ScanEvent, error) {
	scan, err := s.DB.GetScanByID(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("scan %s not found: %w", scanID, err)
	}
	return scan, nil
}

// Delete removes a scan event. An unknown id is a silent no-op and returns
// false without an error.
func (s *ScanService) Delete(ctx context.Context, scanID string) (bool, error) {
	found, err := s.DB.DeleteScan(ctx, scanID)
	if err != nil {
		return false, fmt.Errorf("failed to delete scan %s: %w", scanID, err)
	}

	if found && s.Publisher != nil {
		if err := s.Publisher.PublishScanDeleted(scanID); err != nil {
			log.Printf("failed to publish scan deleted event: %v", err)
		}
	}

	return found, nil
}

// List returns the raw browsing view for a filter window.
func (s *ScanService) List(ctx context.Context, filter models.ScanFilter) (*models.ScanPage, error) {
	normalized, err := s.normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	scansList, total, err := s.DB.ListScans(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	if scansList == nil {
		scansList = []models.ScanEvent{}
	}

	return &models.ScanPage{
		Scans:    scansList,
		Total:    total,
		Page:     normalized.Page,
		PageSize: normalized.PageSize,
	}, nil
}

// BuildExport aggregates the full filtered set and renders it as CSV. The
// filename carries the export request time, not any data time.
func (s *ScanService) BuildExport(ctx context.Context, filter models.ScanFilter, now time.Time) (string, []byte, error) {
	normalized, err := s.normalizeFilter(filter)
	if err != nil {
		return "", nil, err
	}

	rows, err := s.DB.AggregateScans(ctx, normalized)
	if err != nil {
		return "", nil, fmt.Errorf("failed to aggregate scans: %w", err)
	}

	return export.Filename(now), export.RenderCSV(rows), nil
}

// EmailExport renders the aggregate and mails it as an attachment. The
// address is validated before any query runs; a transport failure comes back
// as a *DeliveryError so callers can flash it without aborting.
func (s *ScanService) EmailExport(ctx context.Context, filter models.ScanFilter, to string, now time.Time) (string, error) {
	if err := mailer.ValidateAddress(to); err != nil {
		return "", &ValidationError{Field: "email", Message: err.Error()}
	}

	filename, data, err := s.BuildExport(ctx, filter, now)
	if err != nil {
		return "", err
	}

	if err := s.Mailer.SendAttachment(to, ExportSubject, ExportBody, filename, data); err != nil {
		return filename, &DeliveryError{To: to, Filename: filename, Err: err}
	}

	return filename, nil
}

func (s *ScanService) validateBarcode(barcode string) error {
	if barcode == "" {
		return &ValidationError{Field: "barcode", Message: "barcode is required"}
	}
	for _, r := range barcode {
		if r < '0' || r > '9' {
			return &ValidationError{Field: "barcode", Message: "barcode must contain only digits"}
		}
	}
	if s.Config.BarcodeLength > 0 && len(barcode) != s.Config.BarcodeLength {
		return &ValidationError{
			Field:   "barcode",
			Message: fmt.Sprintf("barcode must be exactly %d digits", s.Config.BarcodeLength),
		}
	}
	return nil
}

// normalizeFilter widens the date bounds to whole days, rejects inverted
// windows before any query executes, and clamps page and page size.
func (s *ScanService) normalizeFilter(filter models.ScanFilter) (models.ScanFilter, error) {
	if !filter.From.IsZero() {
		y, m, d := filter.From.Date()
		filter.From = time.Date(y, m, d, 0, 0, 0, 0, filter.From.Location())
	}
	if !filter.To.IsZero() {
		y, m, d := filter.To.Date()
		filter.To = time.Date(y, m, d, 23, 59, 59, 0, filter.To.Location())
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, &ValidationError{Field: "date_to", Message: "end date must not precede start date"}
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if !allowedPageSize(filter.PageSize) {
		filter.PageSize = s.Config.DefaultPageSize
	}

	return filter, nil
}

func allowedPageSize(size int) bool {
	for _, allowed := range PageSizes {
		if size == allowed {
			return true
		}
	}
	return false
}
