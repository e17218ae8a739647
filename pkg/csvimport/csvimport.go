// Package csvimport reads canonical sales records from CSV exports, for
// backfilling history from stores that predate API access.
package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"saleschecker/pkg/marketplace"
)

// timeLayouts lists the timestamp formats accepted in export files, tried in
// order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseFile reads a CSV export from path. See Parse for the format.
func ParseFile(path, source string) ([]marketplace.SalesRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvimport: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, source)
}

// Parse reads canonical records from a header-mapped CSV stream. Required
// columns are order_number, ordered_at, item_name, quantity, unit_price and
// order_net_sales; item_id, line_subtotal and status are optional. Column
// order does not matter. Malformed rows are skipped and logged, never
// aborting the import; a missing required column fails the whole file.
func Parse(r io.Reader, source string) ([]marketplace.SalesRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("csvimport: read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"order_number", "ordered_at", "item_name", "quantity", "unit_price", "order_net_sales"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("csvimport: missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []marketplace.SalesRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logx.Errorf("csvimport: line %d: %v, skipping", line, err)
			continue
		}

		rec, err := parseRow(row, field, source)
		if err != nil {
			logx.Errorf("csvimport: line %d: %v, skipping", line, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string, field func([]string, string) string, source string) (marketplace.SalesRecord, error) {
	var rec marketplace.SalesRecord

	rec.OrderNumber = field(row, "order_number")
	if rec.OrderNumber == "" {
		return rec, fmt.Errorf("empty order_number")
	}

	orderedAt, err := parseTime(field(row, "ordered_at"))
	if err != nil {
		return rec, err
	}
	rec.OrderedAt = orderedAt

	rec.ItemName = field(row, "item_name")
	rec.ItemID = field(row, "item_id")
	rec.Status = field(row, "status")
	rec.Source = source

	if rec.Quantity, err = parseAmount(field(row, "quantity"), "quantity"); err != nil {
		return rec, err
	}
	if rec.Quantity <= 0 {
		rec.Quantity = 1
	}
	if rec.UnitPrice, err = parseAmount(field(row, "unit_price"), "unit_price"); err != nil {
		return rec, err
	}
	if rec.OrderNetSales, err = parseAmount(field(row, "order_net_sales"), "order_net_sales"); err != nil {
		return rec, err
	}

	if raw := field(row, "line_subtotal"); raw != "" {
		if rec.LineSubtotal, err = parseAmount(raw, "line_subtotal"); err != nil {
			return rec, err
		}
	} else {
		rec.LineSubtotal = rec.UnitPrice * rec.Quantity
	}
	return rec, nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty ordered_at")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable ordered_at %q", value)
}

func parseAmount(value, name string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty %s", name)
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(value, ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return n, nil
}
