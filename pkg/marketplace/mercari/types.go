package mercari

// Request/response models for the seller GraphQL endpoint. Responses follow
// the relay connection shape: edges/node plus pageInfo for cursor paging.

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   *responseData  `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type responseData struct {
	Orders orderConnection `json:"orders"`
}

type orderConnection struct {
	Edges    []orderEdge `json:"edges"`
	PageInfo pageInfo    `json:"pageInfo"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type orderEdge struct {
	Node OrderNode `json:"node"`
}

// OrderNode is one raw order.
type OrderNode struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	Status      string      `json:"status"`
	CreatedAt   string      `json:"createdAt"`
	PaidAt      string      `json:"paidAt"`
	Product     productNode `json:"product"`
	Payment     paymentNode `json:"payment"`
}

type productNode struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type paymentNode struct {
	ProductPrice     int64 `json:"productPrice"`
	ShippingFee      int64 `json:"shippingFee"`
	TotalPrice       int64 `json:"totalPrice"`
	PlatformFee      int64 `json:"platformFee"`
	SettlementAmount int64 `json:"settlementAmount"`
}
