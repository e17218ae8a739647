package rakuten

import (
	"bytes"
	"context"
	"encoding/base64"
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
	defaultBaseURL     = "https://api.rms.rakuten.co.jp/es/2.0"
	defaultHTTPTimeout = 15 * time.Second

	searchPageSize     = 1000
	detailBatchSize    = 100
	defaultBatchPool   = 5
	searchThrottle     = 200 * time.Millisecond
	orderDateType      = 1 // search by order datetime
	orderVersion       = 7
	cancelledProgress  = 900
	requestTimeLayout  = "2006-01-02T15:04:05-0700"
)

// Client pulls orders from one Rakuten RMS store. Authentication is a static
// ESA header derived from the service secret and license key; it never
// expires.
type Client struct {
	name       string
	baseURL    string
	authHeader string
	httpClient *http.Client
	retry      marketplace.RetryPolicy
	limiter    *rate.Limiter
	batchPool  int
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

// WithBaseURL overrides the default RMS endpoint base.
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

// WithBatchPool bounds the concurrent detail-batch workers.
func WithBatchPool(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchPool = n
		}
	}
}

// NewClient constructs an RMS client for one store. Missing credentials are
// a fatal configuration error.
func NewClient(name, serviceSecret, licenseKey string, opts ...Option) (*Client, error) {
	if serviceSecret == "" || licenseKey == "" {
		return nil, &marketplace.ConfigError{
			Kind:   "rakuten",
			Reason: "service_secret and license_key are required",
		}
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(serviceSecret + ":" + licenseKey))
	client := &Client{
		name:       name,
		baseURL:    defaultBaseURL,
		authHeader: "ESA " + credentials,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		retry:      marketplace.DefaultRetryPolicy(),
		limiter:    rate.NewLimiter(rate.Every(searchThrottle), 1),
		batchPool:  defaultBatchPool,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func init() {
	marketplace.RegisterConnector("rakuten", func(cfg *marketplace.ConnectionConfig) (marketplace.Connector, error) {
		opts := []Option{WithRetryPolicy(cfg.RetryPolicy())}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPTimeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		return NewClient(cfg.Name, cfg.ServiceSecret, cfg.LicenseKey, opts...)
	})
}

// Name implements marketplace.Connector.
func (c *Client) Name() string { return c.name }

// Kind implements marketplace.Connector.
func (c *Client) Kind() string { return "rakuten" }

// doRequest posts a JSON payload and decodes the response, applying the
// retry policy to each call.
func (c *Client) doRequest(ctx context.Context, url string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rakuten: encode request: %w", err)
	}

	return c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("rakuten: build request: %w", err)
		}
		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("rakuten: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("rakuten: read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &marketplace.APIError{
				StatusCode: resp.StatusCode,
				Message:    errorMessage(data),
			}
		}
		if result != nil {
			if err := json.Unmarshal(data, result); err != nil {
				return fmt.Errorf("rakuten: decode response: %w", err)
			}
		}
		return nil
	})
}

// errorMessage extracts a human-readable message from an RMS error body.
func errorMessage(body []byte) string {
	var payload struct {
		Messages []messageModel `json:"MessageModelList"`
		Message  string         `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Messages) > 0 {
		parts := make([]string, 0, len(payload.Messages))
		for _, m := range payload.Messages {
			if m.Message != "" {
				parts = append(parts, m.Message)
			}
		}
		return strings.Join(parts, "; ")
	}
	return payload.Message
}

// SearchOrders returns the order numbers placed in [start, end], walking the
// page-number pagination until the reported page count is exhausted. A page
// with zero items always terminates the loop, whatever the metadata says.
func (c *Client) SearchOrders(ctx context.Context, start, end time.Time) ([]string, error) {
	var all []string
	for page := 1; ; page++ {
		payload := searchOrderRequest{
			DateType:      orderDateType,
			StartDatetime: start.Format(requestTimeLayout),
			EndDatetime:   end.Format(requestTimeLayout),
			Pagination: paginationRequest{
				RequestRecordsAmount: searchPageSize,
				RequestPage:          page,
			},
		}

		var result searchOrderResponse
		if err := c.doRequest(ctx, c.baseURL+"/order/searchOrder/", payload, &result); err != nil {
			return nil, err
		}

		if len(result.OrderNumberList) == 0 {
			break
		}
		all = append(all, result.OrderNumberList...)

		if page >= result.Pagination.TotalPages {
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// GetOrders fetches order details in batches of at most 100 numbers. Batches
// run on a bounded worker pool; results keep batch order.
func (c *Client) GetOrders(ctx context.Context, orderNumbers []string) ([]Order, error) {
	if len(orderNumbers) == 0 {
		return nil, nil
	}

	var batches [][]string
	for i := 0; i < len(orderNumbers); i += detailBatchSize {
		end := i + detailBatchSize
		if end > len(orderNumbers) {
			end = len(orderNumbers)
		}
		batches = append(batches, orderNumbers[i:end])
	}

	type batchResult struct {
		orders []Order
		err    error
	}
	results := make([]batchResult, len(batches))
	sem := make(chan struct{}, c.batchPool)
	done := make(chan int, len(batches))

	for i, batch := range batches {
		go func(idx int, numbers []string) {
			sem <- struct{}{}
			defer func() { <-sem }()

			payload := getOrderRequest{OrderNumberList: numbers, Version: orderVersion}
			var result getOrderResponse
			err := c.doRequest(ctx, c.baseURL+"/order/getOrder/", payload, &result)
			results[idx] = batchResult{orders: result.Orders, err: err}
			done <- idx
		}(i, batch)
	}
	for range batches {
		<-done
	}

	var all []Order
	for _, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		all = append(all, res.orders...)
	}
	return all, nil
}

// FetchOrders implements marketplace.Connector: search the range, fetch
// details, normalize.
func (c *Client) FetchOrders(ctx context.Context, start, end time.Time) ([]marketplace.SalesRecord, error) {
	orderNumbers, err := c.SearchOrders(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(orderNumbers) == 0 {
		return nil, nil
	}
	orders, err := c.GetOrders(ctx, orderNumbers)
	if err != nil {
		return nil, err
	}
	return normalizeOrders(orders, c.name), nil
}

// TestConnection issues a one-record search over the last day.
func (c *Client) TestConnection(ctx context.Context) error {
	end := time.Now()
	payload := searchOrderRequest{
		DateType:      orderDateType,
		StartDatetime: end.AddDate(0, 0, -1).Format(requestTimeLayout),
		EndDatetime:   end.Format(requestTimeLayout),
		Pagination:    paginationRequest{RequestRecordsAmount: 1, RequestPage: 1},
	}
	var result searchOrderResponse
	return c.doRequest(ctx, c.baseURL+"/order/searchOrder/", payload, &result)
}
