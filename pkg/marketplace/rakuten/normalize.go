package rakuten

import (
	"strconv"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"saleschecker/pkg/marketplace"
)

// orderTimeLayout matches RMS timestamps such as "2024-01-15T10:30:00+0900".
const orderTimeLayout = "2006-01-02T15:04:05-0700"

// normalizeOrders converts raw RMS orders into canonical records. Cancelled
// orders (progress 900) are dropped; malformed orders are skipped and logged,
// never aborting the batch.
func normalizeOrders(orders []Order, source string) []marketplace.SalesRecord {
	var records []marketplace.SalesRecord
	for _, order := range orders {
		if order.OrderProgress == cancelledProgress {
			continue
		}
		if order.OrderNumber == "" {
			logx.Errorf("rakuten: skipping order without order number (source=%s)", source)
			continue
		}
		records = append(records, normalizeOrder(order, source)...)
	}
	return records
}

func normalizeOrder(order Order, source string) []marketplace.SalesRecord {
	orderedAt := parseOrderTime(order.OrderDatetime)
	netSales := order.GoodsPrice - order.PointAmount - order.CouponAllTotalPrice
	status := strconv.Itoa(order.OrderProgress)

	var records []marketplace.SalesRecord
	for _, pkg := range order.Packages {
		for _, item := range pkg.Items {
			quantity := item.Units
			if quantity <= 0 {
				quantity = 1
			}
			records = append(records, marketplace.SalesRecord{
				OrderNumber:   order.OrderNumber,
				OrderedAt:     orderedAt,
				ItemID:        strconv.FormatInt(item.ItemID, 10),
				ItemName:      item.ItemName,
				Quantity:      quantity,
				UnitPrice:     item.Price,
				LineSubtotal:  item.Price * quantity,
				OrderNetSales: netSales,
				Source:        source,
				Status:        status,
			})
		}
	}

	// Orders without line-item detail still count: emit a single synthetic
	// line representing the whole order.
	if len(records) == 0 {
		records = append(records, marketplace.SalesRecord{
			OrderNumber:   order.OrderNumber,
			OrderedAt:     orderedAt,
			Quantity:      1,
			UnitPrice:     order.GoodsPrice,
			LineSubtotal:  order.GoodsPrice,
			OrderNetSales: netSales,
			Source:        source,
			Status:        status,
		})
	}
	return records
}

// parseOrderTime parses an RMS timestamp, falling back to the current time
// when the value is absent or unparsable. The fallback is lossy but keeps
// the record.
func parseOrderTime(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	t, err := time.Parse(orderTimeLayout, value)
	if err != nil {
		logx.Errorf("rakuten: unparsable order datetime %q, using current time", value)
		return time.Now()
	}
	return t
}
