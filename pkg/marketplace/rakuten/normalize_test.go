package rakuten

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrderComputesNetSales(t *testing.T) {
	order := Order{
		OrderNumber:         "123456-20240301-001",
		OrderDatetime:       "2024-03-01T10:30:00+0900",
		OrderProgress:       500,
		GoodsPrice:          5000,
		PointAmount:         300,
		CouponAllTotalPrice: 200,
		Packages: []Package{{
			Items: []Item{
				{ItemID: 11, ItemName: "coffee beans", Price: 1500, Units: 2},
				{ItemID: 12, ItemName: "dripper", Price: 2000, Units: 1},
			},
		}},
	}

	records := normalizeOrders([]Order{order}, "rakuten-main")
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "123456-20240301-001", first.OrderNumber)
	assert.Equal(t, "11", first.ItemID)
	assert.Equal(t, int64(2), first.Quantity)
	assert.Equal(t, int64(1500), first.UnitPrice)
	assert.Equal(t, int64(3000), first.LineSubtotal)
	// Net sales = goods − points − coupons, copied onto every line.
	assert.Equal(t, int64(4500), first.OrderNetSales)
	assert.Equal(t, int64(4500), records[1].OrderNetSales)
	assert.Equal(t, "rakuten-main", first.Source)

	wantTime := time.Date(2024, 3, 1, 10, 30, 0, 0, time.FixedZone("", 9*3600))
	assert.True(t, first.OrderedAt.Equal(wantTime))
}

func TestNormalizeSkipsCancelledOrders(t *testing.T) {
	orders := []Order{
		{OrderNumber: "kept", OrderDatetime: "2024-03-01T10:00:00+0900", OrderProgress: 300, GoodsPrice: 1000},
		{OrderNumber: "cancelled", OrderDatetime: "2024-03-01T11:00:00+0900", OrderProgress: cancelledProgress, GoodsPrice: 9999},
	}

	records := normalizeOrders(orders, "rakuten-main")
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].OrderNumber)
}

func TestNormalizeSkipsOrdersWithoutNumber(t *testing.T) {
	orders := []Order{
		{OrderNumber: "", OrderDatetime: "2024-03-01T10:00:00+0900", GoodsPrice: 1000},
		{OrderNumber: "kept", OrderDatetime: "2024-03-01T10:00:00+0900", GoodsPrice: 500},
	}

	records := normalizeOrders(orders, "rakuten-main")
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].OrderNumber)
}

func TestNormalizeEmitsSyntheticLineWithoutItems(t *testing.T) {
	order := Order{
		OrderNumber:   "no-items",
		OrderDatetime: "2024-03-01T10:00:00+0900",
		GoodsPrice:    3000,
		PointAmount:   100,
	}

	records := normalizeOrders([]Order{order}, "rakuten-main")
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].Quantity)
	assert.Equal(t, int64(3000), records[0].UnitPrice)
	assert.Equal(t, int64(2900), records[0].OrderNetSales)
}

func TestNormalizeDefaultsNonPositiveQuantity(t *testing.T) {
	order := Order{
		OrderNumber:   "qty",
		OrderDatetime: "2024-03-01T10:00:00+0900",
		GoodsPrice:    1000,
		Packages: []Package{{
			Items: []Item{{ItemID: 1, ItemName: "thing", Price: 1000, Units: 0}},
		}},
	}

	records := normalizeOrders([]Order{order}, "rakuten-main")
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].Quantity)
	assert.Equal(t, int64(1000), records[0].LineSubtotal)
}

func TestParseOrderTimeFallsBackToNow(t *testing.T) {
	before := time.Now()
	got := parseOrderTime("not-a-timestamp")
	assert.False(t, got.Before(before))
}
