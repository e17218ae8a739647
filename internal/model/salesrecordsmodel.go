package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ SalesRecordsModel = (*defaultSalesRecordsModel)(nil)

// SalesRecord is one row of the sales_records table. The (source,
// order_number, line_seq) key makes re-imports idempotent: a line that
// already exists is updated in place.
type SalesRecord struct {
	Source        string    `db:"source"`
	OrderNumber   string    `db:"order_number"`
	LineSeq       int       `db:"line_seq"`
	OrderedAt     time.Time `db:"ordered_at"`
	ItemID        string    `db:"item_id"`
	ItemName      string    `db:"item_name"`
	Quantity      int64     `db:"quantity"`
	UnitPrice     int64     `db:"unit_price"`
	LineSubtotal  int64     `db:"line_subtotal"`
	OrderNetSales int64     `db:"order_net_sales"`
	Status        string    `db:"status"`
	FetchedAt     time.Time `db:"fetched_at"`
}

type (
	SalesRecordsModel interface {
		BulkUpsert(ctx context.Context, rows []SalesRecord) error
		RangeBySource(ctx context.Context, source string, start, end time.Time) ([]SalesRecord, error)
	}

	defaultSalesRecordsModel struct {
		conn sqlx.SqlConn
	}
)

// NewSalesRecordsModel returns a model for the sales_records table.
func NewSalesRecordsModel(conn sqlx.SqlConn) SalesRecordsModel {
	return &defaultSalesRecordsModel{conn: conn}
}

// upsertChunkSize keeps each statement under the placeholder limit.
const upsertChunkSize = 500

// BulkUpsert writes rows in chunks, updating existing lines on conflict.
func (m *defaultSalesRecordsModel) BulkUpsert(ctx context.Context, rows []SalesRecord) error {
	for offset := 0; offset < len(rows); offset += upsertChunkSize {
		end := offset + upsertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := m.upsertChunk(ctx, rows[offset:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *defaultSalesRecordsModel) upsertChunk(ctx context.Context, rows []SalesRecord) error {
	if len(rows) == 0 {
		return nil
	}

	const columns = 12
	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*columns)
	for i, row := range rows {
		base := i * columns
		marks := make([]string, columns)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")
		args = append(args,
			row.Source, row.OrderNumber, row.LineSeq, row.OrderedAt,
			row.ItemID, row.ItemName, row.Quantity, row.UnitPrice,
			row.LineSubtotal, row.OrderNetSales, row.Status, row.FetchedAt,
		)
	}

	query := `
INSERT INTO public.sales_records (
    source, order_number, line_seq, ordered_at,
    item_id, item_name, quantity, unit_price,
    line_subtotal, order_net_sales, status, fetched_at
) VALUES ` + strings.Join(placeholders, ", ") + `
ON CONFLICT (source, order_number, line_seq) DO UPDATE SET
    ordered_at = EXCLUDED.ordered_at,
    item_id = EXCLUDED.item_id,
    item_name = EXCLUDED.item_name,
    quantity = EXCLUDED.quantity,
    unit_price = EXCLUDED.unit_price,
    line_subtotal = EXCLUDED.line_subtotal,
    order_net_sales = EXCLUDED.order_net_sales,
    status = EXCLUDED.status,
    fetched_at = EXCLUDED.fetched_at`

	if _, err := m.conn.ExecCtx(ctx, query, args...); err != nil {
		return fmt.Errorf("model: upsert sales records: %w", err)
	}
	return nil
}

// RangeBySource returns one source's rows ordered by order time. An empty
// source returns every source.
func (m *defaultSalesRecordsModel) RangeBySource(ctx context.Context, source string, start, end time.Time) ([]SalesRecord, error) {
	const base = `
SELECT
    source, order_number, line_seq, ordered_at,
    item_id, item_name, quantity, unit_price,
    line_subtotal, order_net_sales, status, fetched_at
FROM public.sales_records
WHERE ordered_at BETWEEN $1 AND $2`

	query := base + " ORDER BY ordered_at, order_number, line_seq"
	args := []interface{}{start, end}
	if source != "" {
		query = base + " AND source = $3 ORDER BY ordered_at, order_number, line_seq"
		args = append(args, source)
	}

	var rows []SalesRecord
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("model: query sales records: %w", err)
	}
	return rows, nil
}
