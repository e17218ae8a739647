package marketplace

import "time"

// SalesRecord is the canonical per-line-item sales schema every marketplace
// normalizes into. One record is emitted per line item; OrderNetSales is an
// order-level figure copied onto every line of the same order, so order-level
// aggregates must de-duplicate by OrderNumber before summing it.
type SalesRecord struct {
	OrderNumber string    `json:"order_number" msgpack:"order_number"`
	OrderedAt   time.Time `json:"ordered_at" msgpack:"ordered_at"`
	ItemID      string    `json:"item_id,omitempty" msgpack:"item_id"`
	ItemName    string    `json:"item_name" msgpack:"item_name"`
	Quantity    int64     `json:"quantity" msgpack:"quantity"`

	// Monetary amounts are integer yen. JPY has no minor unit and every
	// supported marketplace reports whole-yen figures.
	UnitPrice     int64 `json:"unit_price" msgpack:"unit_price"`
	LineSubtotal  int64 `json:"line_subtotal" msgpack:"line_subtotal"`
	OrderNetSales int64 `json:"order_net_sales" msgpack:"order_net_sales"`

	// Source is the display name of the connection that produced the record.
	Source string `json:"source" msgpack:"source"`
	// Status is the marketplace-native order status code, kept as a string.
	Status string `json:"status,omitempty" msgpack:"status"`
}

// DedupByOrder returns the first-seen record of every order, preserving input
// order. Order-level figures (net sales, order counts) must be computed over
// this reduced set; item-level figures use the full record set.
func DedupByOrder(records []SalesRecord) []SalesRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]SalesRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.OrderNumber]; ok {
			continue
		}
		seen[rec.OrderNumber] = struct{}{}
		out = append(out, rec)
	}
	return out
}
