package mercari

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"saleschecker/pkg/marketplace"
)

const (
	defaultBaseURL     = "https://api.mercari-shops.com/v1/graphql"
	defaultHTTPTimeout = 15 * time.Second

	pageSize        = 100
	requestThrottle = 300 * time.Millisecond

	userAgent = "SalesChecker/1.0"
)

// fetchStatuses lists the order statuses that count toward sales. The API
// filters one status per query, so a fetch runs one cursor walk per status;
// an order moving between statuses mid-walk may appear twice, deduplicated
// by node ID afterwards.
var fetchStatuses = []string{"COMPLETED", "SHIPPED", "WAITING_FOR_SHIPMENT"}

const ordersQuery = `query Orders($first: Int!, $after: String, $status: OrderStatus) {
  orders(first: $first, after: $after, filter: {status: $status}) {
    edges {
      node {
        id
        orderNumber
        status
        createdAt
        paidAt
        product { id name price }
        payment { productPrice shippingFee totalPrice platformFee settlementAmount }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// Client pulls orders from one Mercari Shops store through the seller
// GraphQL endpoint, authenticated with a static bearer token. The endpoint
// offers no server-side date filter, so date ranges are applied client-side
// after the cursor walk.
type Client struct {
	name        string
	baseURL     string
	accessToken string
	httpClient  *http.Client
	retry       marketplace.RetryPolicy
	limiter     *rate.Limiter
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default GraphQL endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithRetryPolicy overrides the per-call retry policy.
func WithRetryPolicy(policy marketplace.RetryPolicy) Option {
	return func(c *Client) { c.retry = policy }
}

// NewClient constructs a client for one store. A missing access token is a
// fatal configuration error.
func NewClient(name, accessToken string, opts ...Option) (*Client, error) {
	if accessToken == "" {
		return nil, &marketplace.ConfigError{
			Kind:   "mercari",
			Reason: "access_token is required",
		}
	}
	client := &Client{
		name:        name,
		baseURL:     defaultBaseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		retry:       marketplace.DefaultRetryPolicy(),
		limiter:     rate.NewLimiter(rate.Every(requestThrottle), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func init() {
	marketplace.RegisterConnector("mercari", func(cfg *marketplace.ConnectionConfig) (marketplace.Connector, error) {
		opts := []Option{WithRetryPolicy(cfg.RetryPolicy())}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPTimeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		return NewClient(cfg.Name, cfg.AccessToken, opts...)
	})
}

// Name implements marketplace.Connector.
func (c *Client) Name() string { return c.name }

// Kind implements marketplace.Connector.
func (c *Client) Kind() string { return "mercari" }

// query posts one GraphQL request and decodes the response, applying the
// retry policy to each call. GraphQL-level errors map to a non-retryable
// status since they indicate a bad query or rejected variables, not a
// transient fault.
func (c *Client) query(ctx context.Context, variables map[string]interface{}) (*responseData, error) {
	payload, err := json.Marshal(graphqlRequest{Query: ordersQuery, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("mercari: encode request: %w", err)
	}

	var data *responseData
	err = c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("mercari: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("mercari: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("mercari: read response: %w", err)
		}
		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusUnauthorized:
			return &marketplace.APIError{
				StatusCode: http.StatusUnauthorized,
				Message:    "access token rejected",
			}
		case http.StatusNotFound:
			// The endpoint 404s for callers outside the store's IP
			// allowlist, which reads like a wrong URL otherwise.
			return &marketplace.APIError{
				StatusCode: http.StatusNotFound,
				Message:    "endpoint not found; check the store's API IP allowlist",
			}
		default:
			return &marketplace.APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}

		var decoded graphqlResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return &marketplace.ParseError{Source: c.name, Err: err}
		}
		if len(decoded.Errors) > 0 {
			messages := make([]string, 0, len(decoded.Errors))
			for _, gqlErr := range decoded.Errors {
				messages = append(messages, gqlErr.Message)
			}
			return &marketplace.APIError{
				StatusCode: http.StatusBadRequest,
				Message:    strings.Join(messages, "; "),
			}
		}
		if decoded.Data == nil {
			return &marketplace.ParseError{Source: c.name, Err: fmt.Errorf("response carries no data")}
		}
		data = decoded.Data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// fetchStatus walks the cursor pagination for one order status.
func (c *Client) fetchStatus(ctx context.Context, status string) ([]OrderNode, error) {
	var all []OrderNode
	var after string
	for {
		variables := map[string]interface{}{
			"first":  pageSize,
			"status": status,
		}
		if after != "" {
			variables["after"] = after
		}

		data, err := c.query(ctx, variables)
		if err != nil {
			return nil, err
		}

		if len(data.Orders.Edges) == 0 {
			break
		}
		for _, edge := range data.Orders.Edges {
			all = append(all, edge.Node)
		}

		if !data.Orders.PageInfo.HasNextPage {
			break
		}
		after = data.Orders.PageInfo.EndCursor
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// FetchOrders implements marketplace.Connector: walk every counted status,
// deduplicate by node ID, filter to [start, end] client-side, normalize.
func (c *Client) FetchOrders(ctx context.Context, start, end time.Time) ([]marketplace.SalesRecord, error) {
	seen := make(map[string]struct{})
	var orders []OrderNode
	for _, status := range fetchStatuses {
		nodes, err := c.fetchStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			if _, dup := seen[node.ID]; dup {
				continue
			}
			seen[node.ID] = struct{}{}
			orders = append(orders, node)
		}
	}
	return normalizeOrders(orders, c.name, start, end), nil
}

// TestConnection issues a one-record query.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.query(ctx, map[string]interface{}{
		"first":  1,
		"status": fetchStatuses[0],
	})
	return err
}
