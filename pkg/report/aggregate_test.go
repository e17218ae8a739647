package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saleschecker/pkg/marketplace"
)

// sampleRecords: one two-line ¥3000 order and one single-line ¥2000 order on
// the same day. Order-level totals must count ¥5000, not ¥8000.
func sampleRecords() []marketplace.SalesRecord {
	// 2024-03-01 is a Friday.
	day := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	return []marketplace.SalesRecord{
		{OrderNumber: "A-1", OrderedAt: day, ItemID: "i1", ItemName: "mug", Quantity: 2, UnitPrice: 1000, LineSubtotal: 2000, OrderNetSales: 3000, Source: "rakuten"},
		{OrderNumber: "A-1", OrderedAt: day, ItemID: "i2", ItemName: "plate", Quantity: 1, UnitPrice: 1000, LineSubtotal: 1000, OrderNetSales: 3000, Source: "rakuten"},
		{OrderNumber: "B-1", OrderedAt: day.Add(3 * time.Hour), ItemID: "i3", ItemName: "bowl", Quantity: 1, UnitPrice: 2000, LineSubtotal: 2000, OrderNetSales: 2000, Source: "yahoo"},
	}
}

func TestDailySalesDeduplicatesOrders(t *testing.T) {
	buckets := DailySales(sampleRecords())
	require.Len(t, buckets, 1)

	day := buckets[0]
	assert.Equal(t, "2024-03-01", day.Label)
	assert.Equal(t, int64(2), day.OrderCount)
	assert.Equal(t, int64(4), day.ItemCount)
	assert.Equal(t, int64(5000), day.NetSales)
}

func TestDailySalesSortsChronologically(t *testing.T) {
	records := sampleRecords()
	earlier := time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)
	records = append(records, marketplace.SalesRecord{
		OrderNumber: "C-1", OrderedAt: earlier, Quantity: 1, OrderNetSales: 700, Source: "yahoo",
	})

	buckets := DailySales(records)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-02-28", buckets[0].Label)
	assert.Equal(t, "2024-03-01", buckets[1].Label)
}

func TestMonthlySales(t *testing.T) {
	records := sampleRecords()
	records = append(records, marketplace.SalesRecord{
		OrderNumber: "D-1",
		OrderedAt:   time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC),
		Quantity:    1, OrderNetSales: 1500, Source: "mercari",
	})

	buckets := MonthlySales(records)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-03", buckets[0].Label)
	assert.Equal(t, int64(5000), buckets[0].NetSales)
	assert.Equal(t, "2024-04", buckets[1].Label)
	assert.Equal(t, int64(1500), buckets[1].NetSales)
}

func TestHourlySalesCoversAllHours(t *testing.T) {
	buckets := HourlySales(sampleRecords())
	require.Len(t, buckets, 24)
	assert.Equal(t, "00:00", buckets[0].Label)
	assert.Equal(t, "23:00", buckets[23].Label)

	// Orders placed at 10:30 and 13:30.
	assert.Equal(t, int64(1), buckets[10].OrderCount)
	assert.Equal(t, int64(3000), buckets[10].NetSales)
	assert.Equal(t, int64(1), buckets[13].OrderCount)
	assert.Equal(t, int64(0), buckets[0].OrderCount)
}

func TestWeekdaySalesMondayFirst(t *testing.T) {
	buckets := WeekdaySales(sampleRecords())
	require.Len(t, buckets, 7)
	assert.Equal(t, "Mon", buckets[0].Label)
	assert.Equal(t, "Sun", buckets[6].Label)

	// Both orders fall on Friday, index 4.
	assert.Equal(t, int64(2), buckets[4].OrderCount)
	assert.Equal(t, int64(5000), buckets[4].NetSales)
	assert.Equal(t, int64(0), buckets[0].OrderCount)
}

func TestTopProductsRanksBySales(t *testing.T) {
	products := TopProducts(sampleRecords(), 10)
	require.Len(t, products, 3)
	// mug and bowl tie at ¥2000; mug appears first in the input.
	assert.Equal(t, "mug", products[0].ItemName)
	assert.Equal(t, int64(2000), products[0].Subtotal)
	assert.Equal(t, "bowl", products[1].ItemName)
	assert.Equal(t, "plate", products[2].ItemName)
}

func TestTopProductsSalesOutweighQuantity(t *testing.T) {
	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []marketplace.SalesRecord{
		{OrderNumber: "A", OrderedAt: day, ItemID: "sticker", ItemName: "sticker pack", Quantity: 5, UnitPrice: 100, LineSubtotal: 500},
		{OrderNumber: "B", OrderedAt: day, ItemID: "machine", ItemName: "espresso machine", Quantity: 1, UnitPrice: 10000, LineSubtotal: 10000},
	}

	products := TopProducts(records, 2)
	require.Len(t, products, 2)
	// One ¥10000 sale outranks five ¥100 sales.
	assert.Equal(t, "machine", products[0].ItemID)
	assert.Equal(t, int64(10000), products[0].Subtotal)
	assert.Equal(t, "sticker", products[1].ItemID)
}

func TestTopProductsTruncatesToN(t *testing.T) {
	products := TopProducts(sampleRecords(), 1)
	require.Len(t, products, 1)
	assert.Equal(t, "mug", products[0].ItemName)
}

func TestTopProductsStableTieBreak(t *testing.T) {
	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []marketplace.SalesRecord{
		{OrderNumber: "A", OrderedAt: day, ItemID: "first", ItemName: "first seen", Quantity: 3, LineSubtotal: 300},
		{OrderNumber: "B", OrderedAt: day, ItemID: "second", ItemName: "second seen", Quantity: 1, LineSubtotal: 300},
	}

	products := TopProducts(records, 2)
	require.Len(t, products, 2)
	// Subtotals tie; first-seen input order must hold.
	assert.Equal(t, "first", products[0].ItemID)
	assert.Equal(t, "second", products[1].ItemID)
}

func TestTopProductsMergesAcrossOrders(t *testing.T) {
	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []marketplace.SalesRecord{
		{OrderNumber: "A", OrderedAt: day, ItemID: "x", ItemName: "sticker", Quantity: 1, LineSubtotal: 100},
		{OrderNumber: "B", OrderedAt: day, ItemID: "x", ItemName: "sticker", Quantity: 4, LineSubtotal: 400},
	}

	products := TopProducts(records, 5)
	require.Len(t, products, 1)
	assert.Equal(t, int64(5), products[0].Quantity)
	assert.Equal(t, int64(500), products[0].Subtotal)
}

func TestHeatmapZeroFilledGrid(t *testing.T) {
	grid := Heatmap(sampleRecords())

	// Friday column index is 4; orders at hours 10 and 13, one each.
	assert.Equal(t, int64(1), grid[10][4])
	assert.Equal(t, int64(1), grid[13][4])

	var total int64
	for _, row := range grid {
		for _, count := range row {
			total += count
		}
	}
	assert.Equal(t, int64(2), total)
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleRecords())
	assert.Equal(t, int64(2), summary.OrderCount)
	assert.Equal(t, int64(4), summary.ItemCount)
	assert.Equal(t, int64(5000), summary.GrossSales)
	assert.Equal(t, int64(5000), summary.NetSales)
	assert.Equal(t, int64(2500), summary.AverageOrder)
	assert.Equal(t, int64(3000), summary.SalesBySource["rakuten"])
	assert.Equal(t, int64(2000), summary.SalesBySource["yahoo"])

	day := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	assert.True(t, summary.FirstOrderAt.Equal(day))
	assert.True(t, summary.LastOrderAt.Equal(day.Add(3*time.Hour)))
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.OrderCount)
	assert.Zero(t, summary.AverageOrder)
	assert.Empty(t, summary.SalesBySource)
}
