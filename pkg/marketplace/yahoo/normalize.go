package yahoo

import (
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"saleschecker/pkg/marketplace"
)

// cancelledStatus marks orders the store cancelled.
const cancelledStatus = "4"

// grossTotalChain lists where an order's gross total may appear, in
// evaluation order: the payment block, the detail block, then the top-level
// element. The first non-zero value wins.
var grossTotalChain = []func(OrderInfo) int64{
	func(o OrderInfo) int64 { return int64(o.Pay.TotalPrice) },
	func(o OrderInfo) int64 { return int64(o.Detail.TotalPrice) },
	func(o OrderInfo) int64 { return int64(o.TotalPrice) },
}

func grossTotal(order OrderInfo) int64 {
	for _, extract := range grossTotalChain {
		if v := extract(order); v != 0 {
			return v
		}
	}
	return 0
}

// normalizeOrders converts raw orders into canonical records. Cancelled
// orders are dropped; malformed orders are skipped and logged, never
// aborting the batch.
func normalizeOrders(orders []OrderInfo, source string) []marketplace.SalesRecord {
	var records []marketplace.SalesRecord
	for _, order := range orders {
		if order.OrderStatus == cancelledStatus {
			continue
		}
		if order.OrderID == "" {
			logx.Errorf("yahoo: skipping order without order id (source=%s)", source)
			continue
		}
		records = append(records, normalizeOrder(order, source)...)
	}
	return records
}

func normalizeOrder(order OrderInfo, source string) []marketplace.SalesRecord {
	orderedAt := parseOrderTime(order.OrderTime)
	gross := grossTotal(order)
	netSales := gross - int64(order.Pay.UsePoint) - int64(order.Pay.GiftCardDiscount)

	var records []marketplace.SalesRecord
	for _, item := range order.Items {
		quantity := int64(item.Quantity)
		if quantity <= 0 {
			quantity = 1
		}
		subtotal := int64(item.SubTotal)
		if subtotal == 0 {
			subtotal = int64(item.UnitPrice) * quantity
		}
		records = append(records, marketplace.SalesRecord{
			OrderNumber:   order.OrderID,
			OrderedAt:     orderedAt,
			ItemID:        item.ItemID,
			ItemName:      item.Title,
			Quantity:      quantity,
			UnitPrice:     int64(item.UnitPrice),
			LineSubtotal:  subtotal,
			OrderNetSales: netSales,
			Source:        source,
			Status:        order.OrderStatus,
		})
	}

	// Orders without line-item detail still count: emit a single synthetic
	// line representing the whole order.
	if len(records) == 0 {
		records = append(records, marketplace.SalesRecord{
			OrderNumber:   order.OrderID,
			OrderedAt:     orderedAt,
			Quantity:      1,
			UnitPrice:     gross,
			LineSubtotal:  gross,
			OrderNetSales: netSales,
			Source:        source,
			Status:        order.OrderStatus,
		})
	}
	return records
}

// parseOrderTime parses a compact "yyyymmddHHMMSS" timestamp, ignoring any
// trailing characters, and falls back to the current time when the value is
// absent or unparsable.
func parseOrderTime(value string) time.Time {
	if len(value) >= len(requestTimeLayout) {
		value = value[:len(requestTimeLayout)]
	}
	if value == "" {
		return time.Now()
	}
	t, err := time.ParseInLocation(requestTimeLayout, value, time.Local)
	if err != nil {
		logx.Errorf("yahoo: unparsable order time %q, using current time", value)
		return time.Now()
	}
	return t
}
