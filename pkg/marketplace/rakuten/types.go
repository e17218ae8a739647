package rakuten

// Request/response models for the RMS order endpoints (searchOrder /
// getOrder, interface version 7). Field names follow the wire format, which
// mixes lowerCamel and UpperCamel keys.

type searchOrderRequest struct {
	DateType          int               `json:"dateType"`
	StartDatetime     string            `json:"startDatetime"`
	EndDatetime       string            `json:"endDatetime"`
	OrderProgressList []int             `json:"orderProgressList,omitempty"`
	Pagination        paginationRequest `json:"PaginationRequestModel"`
}

type paginationRequest struct {
	RequestRecordsAmount int `json:"requestRecordsAmount"`
	RequestPage          int `json:"requestPage"`
}

type searchOrderResponse struct {
	OrderNumberList []string           `json:"orderNumberList"`
	Pagination      paginationResponse `json:"PaginationResponseModel"`
	Messages        []messageModel     `json:"MessageModelList"`
}

type paginationResponse struct {
	TotalRecordsAmount int `json:"totalRecordsAmount"`
	TotalPages         int `json:"totalPages"`
	RequestPage        int `json:"requestPage"`
}

type messageModel struct {
	MessageType string `json:"messageType"`
	MessageCode string `json:"messageCode"`
	Message     string `json:"message"`
}

type getOrderRequest struct {
	OrderNumberList []string `json:"orderNumberList"`
	Version         int      `json:"version"`
}

type getOrderResponse struct {
	Orders   []Order        `json:"OrderModelList"`
	Messages []messageModel `json:"MessageModelList"`
}

// Order is the raw RMS order representation returned by getOrder.
type Order struct {
	OrderNumber          string    `json:"orderNumber"`
	OrderDatetime        string    `json:"orderDatetime"`
	OrderProgress        int       `json:"orderProgress"`
	GoodsPrice           int64     `json:"goodsPrice"`
	PointAmount          int64     `json:"pointAmount"`
	CouponAllTotalPrice  int64     `json:"couponAllTotalPrice"`
	SettlementMethodName string    `json:"settlementMethodName"`
	Packages             []Package `json:"PackageModelList"`
}

// Package is one shipment within an order.
type Package struct {
	PostagePrice int64  `json:"postagePrice"`
	Items        []Item `json:"ItemModelList"`
}

// Item is one order line.
type Item struct {
	ItemID     int64  `json:"itemId"`
	ItemName   string `json:"itemName"`
	ItemNumber string `json:"itemNumber"`
	Price      int64  `json:"price"`
	Units      int64  `json:"units"`
}
