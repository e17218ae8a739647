// Package report aggregates canonical sales records into the report shapes
// the CLI prints: per-day, per-month, per-hour and per-weekday totals, top
// product rankings, an hour-by-weekday heatmap, and a one-line summary.
//
// Two sum domains apply throughout. Order-level figures (net sales, order
// counts) are computed over one record per order, since OrderNetSales is
// copied onto every line of an order. Item-level figures (quantities, line
// subtotals) use every record.
package report

import (
	"sort"
	"time"

	"saleschecker/pkg/marketplace"
)

// Bucket is one time bucket of a sales report.
type Bucket struct {
	Label      string `json:"label"`
	OrderCount int64  `json:"order_count"`
	ItemCount  int64  `json:"item_count"`
	NetSales   int64  `json:"net_sales"`
}

// ProductSales is one product's ranking entry.
type ProductSales struct {
	ItemID   string `json:"item_id,omitempty"`
	ItemName string `json:"item_name"`
	Quantity int64  `json:"quantity"`
	Subtotal int64  `json:"subtotal"`
}

// Summary is the headline figures of one fetch. GrossSales sums line
// subtotals before point and coupon deductions; NetSales is the order-level
// figure after them.
type Summary struct {
	OrderCount    int64            `json:"order_count"`
	ItemCount     int64            `json:"item_count"`
	GrossSales    int64            `json:"gross_sales"`
	NetSales      int64            `json:"net_sales"`
	AverageOrder  int64            `json:"average_order"`
	FirstOrderAt  time.Time        `json:"first_order_at"`
	LastOrderAt   time.Time        `json:"last_order_at"`
	SalesBySource map[string]int64 `json:"sales_by_source"`
}

// weekdayLabels is Monday-first, matching how the reports read.
var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// mondayIndex maps time.Weekday (Sunday=0) onto the Monday-first axis.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func aggregateBy(records []marketplace.SalesRecord, label func(time.Time) string) []Bucket {
	type bucketTotals struct {
		orders int64
		items  int64
		net    int64
	}
	totals := make(map[string]*bucketTotals)
	get := func(key string) *bucketTotals {
		b := totals[key]
		if b == nil {
			b = &bucketTotals{}
			totals[key] = b
		}
		return b
	}

	for _, rec := range marketplace.DedupByOrder(records) {
		b := get(label(rec.OrderedAt))
		b.orders++
		b.net += rec.OrderNetSales
	}
	for _, rec := range records {
		get(label(rec.OrderedAt)).items += rec.Quantity
	}

	buckets := make([]Bucket, 0, len(totals))
	for key, b := range totals {
		buckets = append(buckets, Bucket{
			Label:      key,
			OrderCount: b.orders,
			ItemCount:  b.items,
			NetSales:   b.net,
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Label < buckets[j].Label })
	return buckets
}

// DailySales buckets records by calendar day ("2006-01-02"), sorted
// chronologically. Days without orders are absent.
func DailySales(records []marketplace.SalesRecord) []Bucket {
	return aggregateBy(records, func(t time.Time) string { return t.Format("2006-01-02") })
}

// MonthlySales buckets records by calendar month ("2006-01"), sorted
// chronologically.
func MonthlySales(records []marketplace.SalesRecord) []Bucket {
	return aggregateBy(records, func(t time.Time) string { return t.Format("2006-01") })
}

// HourlySales buckets records by hour of day. All 24 hours are present, in
// order, including empty ones.
func HourlySales(records []marketplace.SalesRecord) []Bucket {
	buckets := make([]Bucket, 24)
	for hour := range buckets {
		buckets[hour].Label = time.Date(0, 1, 1, hour, 0, 0, 0, time.UTC).Format("15:00")
	}
	for _, rec := range marketplace.DedupByOrder(records) {
		b := &buckets[rec.OrderedAt.Hour()]
		b.OrderCount++
		b.NetSales += rec.OrderNetSales
	}
	for _, rec := range records {
		buckets[rec.OrderedAt.Hour()].ItemCount += rec.Quantity
	}
	return buckets
}

// WeekdaySales buckets records by day of week, Monday first. All seven days
// are present, including empty ones.
func WeekdaySales(records []marketplace.SalesRecord) []Bucket {
	buckets := make([]Bucket, 7)
	for i := range buckets {
		buckets[i].Label = weekdayLabels[i]
	}
	for _, rec := range marketplace.DedupByOrder(records) {
		b := &buckets[mondayIndex(rec.OrderedAt.Weekday())]
		b.OrderCount++
		b.NetSales += rec.OrderNetSales
	}
	for _, rec := range records {
		buckets[mondayIndex(rec.OrderedAt.Weekday())].ItemCount += rec.Quantity
	}
	return buckets
}

// TopProducts ranks products by line-subtotal sales, descending, returning
// at most n entries. Products tied on sales keep their first-seen order, so
// the ranking is stable across runs over the same input. Products are keyed
// by item ID when present, item name otherwise.
func TopProducts(records []marketplace.SalesRecord, n int) []ProductSales {
	if n <= 0 {
		return nil
	}

	index := make(map[string]int)
	var products []ProductSales
	for _, rec := range records {
		key := rec.ItemID
		if key == "" {
			key = rec.ItemName
		}
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(products)
			index[key] = i
			products = append(products, ProductSales{ItemID: rec.ItemID, ItemName: rec.ItemName})
		}
		products[i].Quantity += rec.Quantity
		products[i].Subtotal += rec.LineSubtotal
	}

	sort.SliceStable(products, func(i, j int) bool { return products[i].Subtotal > products[j].Subtotal })
	if len(products) > n {
		products = products[:n]
	}
	return products
}

// Heatmap returns order counts on a [hour][weekday] grid, Monday first,
// zero-filled.
func Heatmap(records []marketplace.SalesRecord) [24][7]int64 {
	var grid [24][7]int64
	for _, rec := range marketplace.DedupByOrder(records) {
		grid[rec.OrderedAt.Hour()][mondayIndex(rec.OrderedAt.Weekday())]++
	}
	return grid
}

// Summarize computes the headline figures: distinct orders, total item
// quantity, gross and net sales, the per-order average (integer division,
// zero when there are no orders), the observed order-time bounds, and net
// sales per source.
func Summarize(records []marketplace.SalesRecord) Summary {
	summary := Summary{SalesBySource: make(map[string]int64)}
	for _, rec := range marketplace.DedupByOrder(records) {
		summary.OrderCount++
		summary.NetSales += rec.OrderNetSales
		summary.SalesBySource[rec.Source] += rec.OrderNetSales
	}
	for _, rec := range records {
		summary.ItemCount += rec.Quantity
		summary.GrossSales += rec.LineSubtotal
		if summary.FirstOrderAt.IsZero() || rec.OrderedAt.Before(summary.FirstOrderAt) {
			summary.FirstOrderAt = rec.OrderedAt
		}
		if rec.OrderedAt.After(summary.LastOrderAt) {
			summary.LastOrderAt = rec.OrderedAt
		}
	}
	if summary.OrderCount > 0 {
		summary.AverageOrder = summary.NetSales / summary.OrderCount
	}
	return summary
}
