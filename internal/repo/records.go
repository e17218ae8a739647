// Package repo adapts the database models to the interfaces the fetch
// pipeline consumes.
package repo

import (
	"context"
	"errors"
	"time"

	"saleschecker/internal/model"
	"saleschecker/pkg/marketplace"
)

var _ marketplace.Persistence = (*RecordsRepo)(nil)

// RecordsRepo persists canonical sales records and reads them back for
// offline reporting.
type RecordsRepo struct {
	records model.SalesRecordsModel
	now     func() time.Time
}

// NewRecordsRepo constructs the repository.
func NewRecordsRepo(records model.SalesRecordsModel) (*RecordsRepo, error) {
	if records == nil {
		return nil, errors.New("repo: missing sales records model")
	}
	return &RecordsRepo{records: records, now: time.Now}, nil
}

// SaveRecords implements marketplace.Persistence. Line sequence numbers are
// assigned per order in input order, so the same fetch always maps lines to
// the same rows.
func (r *RecordsRepo) SaveRecords(ctx context.Context, records []marketplace.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}

	fetchedAt := r.now()
	lineSeq := make(map[string]int, len(records))
	rows := make([]model.SalesRecord, 0, len(records))
	for _, rec := range records {
		key := rec.Source + "\x00" + rec.OrderNumber
		seq := lineSeq[key]
		lineSeq[key] = seq + 1

		rows = append(rows, model.SalesRecord{
			Source:        rec.Source,
			OrderNumber:   rec.OrderNumber,
			LineSeq:       seq,
			OrderedAt:     rec.OrderedAt,
			ItemID:        rec.ItemID,
			ItemName:      rec.ItemName,
			Quantity:      rec.Quantity,
			UnitPrice:     rec.UnitPrice,
			LineSubtotal:  rec.LineSubtotal,
			OrderNetSales: rec.OrderNetSales,
			Status:        rec.Status,
			FetchedAt:     fetchedAt,
		})
	}
	return r.records.BulkUpsert(ctx, rows)
}

// RangeBySource reads stored records back as canonical records.
func (r *RecordsRepo) RangeBySource(ctx context.Context, source string, start, end time.Time) ([]marketplace.SalesRecord, error) {
	rows, err := r.records.RangeBySource(ctx, source, start, end)
	if err != nil {
		return nil, err
	}
	records := make([]marketplace.SalesRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, marketplace.SalesRecord{
			OrderNumber:   row.OrderNumber,
			OrderedAt:     row.OrderedAt,
			ItemID:        row.ItemID,
			ItemName:      row.ItemName,
			Quantity:      row.Quantity,
			UnitPrice:     row.UnitPrice,
			LineSubtotal:  row.LineSubtotal,
			OrderNetSales: row.OrderNetSales,
			Source:        row.Source,
			Status:        row.Status,
		})
	}
	return records, nil
}
