package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"scanlog/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreateScan inserts exactly one scan event.
func (d *DB) CreateScan(ctx context.Context, scan models.ScanEvent) error {
	_, err := d.Bun.NewInsert().Model(&scan).Exec(ctx)
	return err
}

// GetScanByID fetches one scan event by its ID.
func (d *DB) GetScanByID(ctx context.Context, id string) (*models.ScanEvent, error) {
	var scan models.ScanEvent
	err := d.Bun.NewSelect().
		Model(&scan).
		Where("scan_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

// DeleteScan hard-deletes a scan event. Returns false when no row matched,
// so callers can treat an unknown id as a no-op.
func (d *DB) DeleteScan(ctx context.Context, id string) (bool, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.ScanEvent)(nil)).
		Where("scan_id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListScans returns one page of events inside the filter window, newest
// first, plus the total match count for the pager.
func (d *DB) ListScans(ctx context.Context, filter models.ScanFilter) ([]models.ScanEvent, int, error) {
	var scans []models.ScanEvent
	q := d.Bun.NewSelect().Model(&scans)
	q = applyFilter(q, filter)

	total, err := q.Order("created_at DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		ScanAndCount(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, err
	}

	return scans, total, nil
}

// AggregateScans groups the full filtered set per barcode: summed quantity
// and most recent scan time, most recently scanned barcode first.
func (d *DB) AggregateScans(ctx context.Context, filter models.ScanFilter) ([]models.AggregatedScanRow, error) {
	q := d.Bun.NewSelect().
		ColumnExpr("barcode").
		ColumnExpr("SUM(quantity) AS total_quantity").
		ColumnExpr("MAX(created_at) AS last_scan_at").
		TableExpr("scans")
	q = applyFilter(q, filter)

	var rows []models.AggregatedScanRow
	err := q.GroupExpr("barcode").
		OrderExpr("MAX(created_at) DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func applyFilter(q *bun.SelectQuery, filter models.ScanFilter) *bun.SelectQuery {
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at <= ?", filter.To)
	}
	if filter.Search != "" {
		q = q.Where("barcode LIKE ?", "%"+filter.Search+"%")
	}
	return q
}
