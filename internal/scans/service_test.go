package scans_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"scanlog/internal/config"
	"scanlog/internal/models"
	"scanlog/internal/scans"
)

// MockScanDBLayer is a mock implementation of the ScanDBLayer interface
type MockScanDBLayer struct {
	mock.Mock
}

func (m *MockScanDBLayer) CreateScan(ctx context.Context, scan models.ScanEvent) error {
	args := m.Called(ctx, scan)
	return args.Error(0)
}

func (m *MockScanDBLayer) GetScanByID(ctx context.Context, id string) (*models.ScanEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScanEvent), args.Error(1)
}

func (m *MockScanDBLayer) DeleteScan(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockScanDBLayer) ListScans(ctx context.Context, filter models.ScanFilter) ([]models.ScanEvent, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.ScanEvent), args.Int(1), args.Error(2)
}

func (m *MockScanDBLayer) AggregateScans(ctx context.Context, filter models.ScanFilter) ([]models.AggregatedScanRow, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AggregatedScanRow), args.Error(1)
}

// MockMailer is a mock implementation of the ExportMailer interface
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendAttachment(to, subject, body, filename string, attachment []byte) error {
	args := m.Called(to, subject, body, filename, attachment)
	return args.Error(0)
}

// MockPublisher is a mock implementation of the EventPublisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishScanRecorded(scan models.ScanEvent) error {
	args := m.Called(scan)
	return args.Error(0)
}

func (m *MockPublisher) PublishScanDeleted(scanID string) error {
	args := m.Called(scanID)
	return args.Error(0)
}

func newService(db *MockScanDBLayer, mailer *MockMailer, cfg config.ScanConfig) *scans.ScanService {
	return scans.NewScanService(db, mailer, nil, cfg)
}

func TestSaveScan(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	svc := newService(mockDB, new(MockMailer), config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("CreateScan", mock.Anything, mock.Anything).Return(nil)

	before := time.Now().UTC()
	scan, err := svc.Save(context.Background(), "1234567890123", 2)
	after := time.Now().UTC()

	assert.NoError(t, err)
	assert.NotEmpty(t, scan.ScanID)
	assert.Equal(t, "1234567890123", scan.Barcode)
	assert.Equal(t, 2, scan.Quantity)
	assert.False(t, scan.CreatedAt.Before(before))
	assert.False(t, scan.CreatedAt.After(after))
	mockDB.AssertNumberOfCalls(t, "CreateScan", 1)
}

func TestSaveScanDefaultsQuantity(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	svc := newService(mockDB, new(MockMailer), config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("CreateScan", mock.Anything, mock.MatchedBy(func(scan models.ScanEvent) bool {
		return scan.Quantity == 1
	})).Return(nil)

	scan, err := svc.Save(context.Background(), "1234567890123", 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, scan.Quantity)
	mockDB.AssertExpectations(t)
}

func TestSaveScanValidation(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	svc := newService(mockDB, new(MockMailer), config.ScanConfig{DefaultPageSize: 25})

	cases := []struct {
		name     string
		barcode  string
		quantity int
		field    string
	}{
		{"empty barcode", "", 1, "barcode"},
		{"non-numeric barcode", "12AB34", 1, "barcode"},
		{"negative quantity", "1234567890123", -1, "quantity"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scan, err := svc.Save(context.Background(), tc.barcode, tc.quantity)
			assert.Nil(t, scan)

			var vErr *scans.ValidationError
			assert.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}

	// Nothing was persisted
	mockDB.AssertNotCalled(t, "CreateScan", mock.Anything, mock.Anything)
}

func TestSaveScanStrictLength(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	svc := newService(mockDB, new(MockMailer), config.ScanConfig{BarcodeLength: 13, DefaultPageSize: 25})

	_, err := svc.Save(context.Background(), "12345", 1)
	var vErr *scans.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "barcode", vErr.Field)
	mockDB.AssertNotCalled(t, "CreateScan", mock.Anything, mock.Anything)

	mockDB.On("CreateScan", mock.Anything, mock.Anything).Return(nil)
	_, err = svc.Save(context.Background(), "1234567890123", 1)
	assert.NoError(t, err)
}

func TestSaveScanPublishesEvent(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	mockPub := new(MockPublisher)
	svc := scans.NewScanService(mockDB, new(MockMailer), mockPub, config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("CreateScan", mock.Anything, mock.Anything).Return(nil)
	mockPub.On("PublishScanRecorded", mock.Anything).Return(nil)

	_, err := svc.Save(context.Background(), "1234567890123", 1)
	assert.NoError(t, err)
	mockPub.AssertNumberOfCalls(t, "PublishScanRecorded", 1)
}

func TestSaveScanSurvivesPublishFailure(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	mockPub := new(MockPublisher)
	svc := scans.NewScanService(mockDB, new(MockMailer), mockPub, config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("CreateScan", mock.Anything, mock.Anything).Return(nil)
	mockPub.On("PublishScanRecorded", mock.Anything).Return(errors.New("kafka: broker unreachable"))

	scan, err := svc.Save(context.Background(), "1234567890123", 2)
	assert.NoError(t, err)
	assert.NotNil(t, scan)
	assert.Equal(t, "1234567890123", scan.Barcode)
	mockDB.AssertNumberOfCalls(t, "CreateScan", 1)
}

func TestDeleteScanSurvivesPublishFailure(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	mockPub := new(MockPublisher)
	svc := scans.NewScanService(mockDB, new(MockMailer), mockPub, config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("DeleteScan", mock.Anything, "scan-1").Return(true, nil)
	mockPub.On("PublishScanDeleted", "scan-1").Return(errors.New("kafka: broker unreachable"))

	found, err := svc.Delete(context.Background(), "scan-1")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestIngestSubmission(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	svc := newService(mockDB, new(MockMailer), config.ScanConfig{DefaultPageSize: 25})

	// Bad payloads are rejected by the same validation as an HTTP save
	scan, err := svc.IngestSubmission(context.Background(), models.ScanSubmission{Barcode: "not-digits"})
	assert.Nil(t, scan)
	var vErr *scans.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "barcode", vErr.Field)
	mockDB.AssertNotCalled(t, "CreateScan", mock.Anything, mock.Anything)

	// Omitted quantity defaults like an HTTP save
	mockDB.On("CreateScan", mock.Anything, mock.MatchedBy(func(scan models.ScanEvent) bool {
		return scan.Barcode == "1234567890123" && scan.Quantity == 1
	})).Return(nil)

	scan, err = svc.IngestSubmission(context.Background(), models.ScanSubmission{Barcode: "1234567890123"})
	assert.NoError(t, err)
	assert.Equal(t, 1, scan.Quantity)
	mockDB.AssertExpectations(t)
}

func TestDeleteScanNotFoundIsNoOp(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	mockPub := new(MockPublisher)
	svc := scans.NewScanService(mockDB, new(MockMailer), mockPub, config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("DeleteScan", mock.Anything, "missing-id").Return(false, nil)

	found, err := svc.Delete(context.Background(), "missing-id")
	assert.NoError(t, err)
	assert.False(t, found)
	mockPub.AssertNotCalled(t, "PublishScanDeleted", mock.Anything)
}

func TestListRejectsInvertedWindow(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	svc := newService(mockDB, new(MockMailer), config.ScanConfig{DefaultPageSize: 25})

	page, err := svc.List(context.Background(), models.ScanFilter{
		From: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	assert.Nil(t, page)

	var vErr *scans.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "date_to", vErr.Field)

	// Rejected before any query executes
	mockDB.AssertNotCalled(t, "ListScans", mock.Anything, mock.Anything)
}

func TestListNormalizesFilter(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	svc := newService(mockDB, new(MockMailer), config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("ListScans", mock.Anything, mock.MatchedBy(func(filter models.ScanFilter) bool {
		dayStart := filter.From.Hour() == 0 && filter.From.Minute() == 0 && filter.From.Second() == 0
		dayEnd := filter.To.Hour() == 23 && filter.To.Minute() == 59 && filter.To.Second() == 59
		return dayStart && dayEnd && filter.Page == 1 && filter.PageSize == 25
	})).Return([]models.ScanEvent{}, 0, nil)

	page, err := svc.List(context.Background(), models.ScanFilter{
		From:     time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
		To:       time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC),
		Page:     0,  // clamped to 1
		PageSize: 7,  // not a selectable size, falls back to default
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 25, page.PageSize)
	mockDB.AssertExpectations(t)
}

func TestBuildExport(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	svc := newService(mockDB, new(MockMailer), config.ScanConfig{DefaultPageSize: 25})

	rows := []models.AggregatedScanRow{
		{Barcode: "1234567890123", TotalQuantity: 5, LastScanAt: time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)},
	}
	mockDB.On("AggregateScans", mock.Anything, mock.Anything).Return(rows, nil)

	now := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)
	filename, data, err := svc.BuildExport(context.Background(), models.ScanFilter{}, now)
	assert.NoError(t, err)
	assert.Equal(t, "scans_20250314_160000.csv", filename)
	assert.True(t, strings.HasPrefix(string(data), "Barcode,Total Quantity,Last Scan Date\n"))
	assert.Contains(t, string(data), `"1234567890123",5,"2025-03-14 15:30:00"`)
}

func TestEmailExportInvalidAddress(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	mockMailer := new(MockMailer)
	svc := newService(mockDB, mockMailer, config.ScanConfig{DefaultPageSize: 25})

	_, err := svc.EmailExport(context.Background(), models.ScanFilter{}, "not-an-email", time.Now())

	var vErr *scans.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)

	// No query ran and no mail was dispatched
	mockDB.AssertNotCalled(t, "AggregateScans", mock.Anything, mock.Anything)
	mockMailer.AssertNotCalled(t, "SendAttachment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmailExportTransportFailure(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	mockMailer := new(MockMailer)
	svc := newService(mockDB, mockMailer, config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("AggregateScans", mock.Anything, mock.Anything).Return([]models.AggregatedScanRow{}, nil)
	mockMailer.On("SendAttachment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp: connection refused"))

	_, err := svc.EmailExport(context.Background(), models.ScanFilter{}, "warehouse@example.com", time.Now())

	var dErr *scans.DeliveryError
	assert.ErrorAs(t, err, &dErr)
	assert.Equal(t, "warehouse@example.com", dErr.To)
	assert.Contains(t, dErr.Filename, "scans_")
}

func TestEmailExportSuccess(t *testing.T) {
	mockDB := new(MockScanDBLayer)
	mockMailer := new(MockMailer)
	svc := newService(mockDB, mockMailer, config.ScanConfig{DefaultPageSize: 25})

	mockDB.On("AggregateScans", mock.Anything, mock.Anything).Return([]models.AggregatedScanRow{}, nil)
	mockMailer.On("SendAttachment",
		"warehouse@example.com",
		scans.ExportSubject,
		scans.ExportBody,
		"scans_20250314_160000.csv",
		mock.Anything,
	).Return(nil)

	now := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)
	filename, err := svc.EmailExport(context.Background(), models.ScanFilter{}, "warehouse@example.com", now)
	assert.NoError(t, err)
	assert.Equal(t, "scans_20250314_160000.csv", filename)
	mockMailer.AssertExpectations(t)
}
