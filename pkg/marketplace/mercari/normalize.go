package mercari

import (
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"saleschecker/pkg/marketplace"
)

const cancelledStatus = "CANCELLED"

// normalizeOrders converts raw order nodes into canonical records, keeping
// only orders placed within [start, end]. The endpoint cannot filter by date
// server-side, so the range is applied here. Cancelled orders are dropped;
// each order is a single-item sale, so one node yields one record.
func normalizeOrders(orders []OrderNode, source string, start, end time.Time) []marketplace.SalesRecord {
	var records []marketplace.SalesRecord
	for _, order := range orders {
		if order.Status == cancelledStatus {
			continue
		}
		orderedAt := parseOrderTime(order)
		if orderedAt.Before(start) || orderedAt.After(end) {
			continue
		}

		orderNumber := order.OrderNumber
		if orderNumber == "" {
			orderNumber = order.ID
		}
		if orderNumber == "" {
			logx.Errorf("mercari: skipping order without id (source=%s)", source)
			continue
		}

		gross := order.Payment.TotalPrice
		if gross == 0 {
			gross = order.Product.Price
		}

		records = append(records, marketplace.SalesRecord{
			OrderNumber:   orderNumber,
			OrderedAt:     orderedAt,
			ItemID:        order.Product.ID,
			ItemName:      order.Product.Name,
			Quantity:      1,
			UnitPrice:     gross,
			LineSubtotal:  gross,
			OrderNetSales: gross,
			Source:        source,
			Status:        order.Status,
		})
	}
	return records
}

// parseOrderTime prefers createdAt, falls back to paidAt, and uses the
// current time when neither parses.
func parseOrderTime(order OrderNode) time.Time {
	for _, value := range []string{order.CreatedAt, order.PaidAt} {
		if value == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
	}
	logx.Errorf("mercari: order %s carries no parsable timestamp, using current time", order.ID)
	return time.Now()
}
