package yahoo

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Response models for the shopping order XML endpoints. Repeated elements
// (OrderInfo, Item) decode into slices whether the server sends one or many;
// amounts decode through xmlInt so empty elements read as zero instead of
// failing the whole document.

// xmlInt is a whole-yen (or count) value that tolerates absent and empty
// elements.
type xmlInt int64

func (v *xmlInt) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw string
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("yahoo: invalid numeric value %q: %w", raw, err)
	}
	*v = xmlInt(n)
	return nil
}

type apiErrorBody struct {
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

type orderListResult struct {
	XMLName xml.Name      `xml:"Result"`
	Error   *apiErrorBody `xml:"Error"`
	Search  orderSearch   `xml:"Search"`
}

type orderSearch struct {
	TotalCount int            `xml:"TotalCount"`
	Orders     []orderSummary `xml:"OrderInfo"`
}

type orderSummary struct {
	OrderID     string `xml:"OrderId"`
	OrderTime   string `xml:"OrderTime"`
	OrderStatus string `xml:"OrderStatus"`
}

type orderInfoResult struct {
	XMLName xml.Name      `xml:"Result"`
	Error   *apiErrorBody `xml:"Error"`
	Orders  []OrderInfo   `xml:"OrderInfo"`
}

// OrderInfo is one raw order as returned by the detail endpoint. The gross
// total may appear under Pay, under Detail, or at the top level depending on
// the seller's store configuration.
type OrderInfo struct {
	OrderID     string     `xml:"OrderId"`
	OrderTime   string     `xml:"OrderTime"`
	OrderStatus string     `xml:"OrderStatus"`
	TotalPrice  xmlInt     `xml:"TotalPrice"`
	Pay         payInfo    `xml:"Pay"`
	Detail      detailInfo `xml:"Detail"`
	Items       []Item     `xml:"Item"`
}

type payInfo struct {
	TotalPrice       xmlInt `xml:"TotalPrice"`
	UsePoint         xmlInt `xml:"UsePoint"`
	GiftCardDiscount xmlInt `xml:"GiftCardDiscount"`
	PayCharge        xmlInt `xml:"PayCharge"`
	ShipCharge       xmlInt `xml:"ShipCharge"`
}

type detailInfo struct {
	TotalPrice xmlInt `xml:"TotalPrice"`
}

// Item is one order line.
type Item struct {
	ItemID    string `xml:"ItemId"`
	Title     string `xml:"Title"`
	UnitPrice xmlInt `xml:"UnitPrice"`
	Quantity  xmlInt `xml:"Quantity"`
	SubTotal  xmlInt `xml:"SubTotal"`
}
