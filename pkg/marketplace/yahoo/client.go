package yahoo

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"saleschecker/pkg/marketplace"
)

const (
	defaultBaseURL     = "https://circus.shopping.yahooapis.jp/ShoppingWebService/V1"
	defaultHTTPTimeout = 15 * time.Second

	searchPageSize  = 100
	detailBatchSize = 100
	requestThrottle = 500 * time.Millisecond

	requestTimeLayout = "20060102150405"

	signatureHeader = "X-Seller-Signature"
)

// Client pulls orders from one Yahoo Shopping store through the orderList
// and orderInfo XML endpoints. Tokens come from the attached Session; an
// optional Signer adds the encrypted signature header accounts with a sign
// key require.
type Client struct {
	name       string
	sellerID   string
	baseURL    string
	session    *Session
	signer     *Signer
	httpClient *http.Client
	retry      marketplace.RetryPolicy
	limiter    *rate.Limiter
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

// WithBaseURL overrides the default API endpoint base.
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

// WithSigner attaches the optional request signer.
func WithSigner(signer *Signer) Option {
	return func(c *Client) { c.signer = signer }
}

// NewClient constructs a client for one store. A missing seller ID is a
// fatal configuration error.
func NewClient(name string, session *Session, sellerID string, opts ...Option) (*Client, error) {
	if sellerID == "" {
		return nil, &marketplace.ConfigError{
			Kind:   "yahoo",
			Reason: "seller_id is required",
		}
	}
	client := &Client{
		name:       name,
		sellerID:   sellerID,
		baseURL:    defaultBaseURL,
		session:    session,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		retry:      marketplace.DefaultRetryPolicy(),
		limiter:    rate.NewLimiter(rate.Every(requestThrottle), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func init() {
	marketplace.RegisterConnector("yahoo", func(cfg *marketplace.ConnectionConfig) (marketplace.Connector, error) {
		tokenFile := cfg.TokenFile
		if tokenFile == "" {
			tokenFile = fmt.Sprintf("data/tokens/%s.json", cfg.Name)
		}
		session, err := NewSession(cfg.ClientID, cfg.ClientSecret,
			WithTokenFile(tokenFile),
			WithTokenURL(cfg.TokenURL),
		)
		if err != nil {
			return nil, err
		}

		opts := []Option{WithRetryPolicy(cfg.RetryPolicy())}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPTimeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.SignKeyFile != "" {
			signer, err := NewSignerFromFile(cfg.SignKeyFile)
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithSigner(signer))
		}
		return NewClient(cfg.Name, session, cfg.SellerID, opts...)
	})
}

// Name implements marketplace.Connector.
func (c *Client) Name() string { return c.name }

// Kind implements marketplace.Connector.
func (c *Client) Kind() string { return "yahoo" }

// Session exposes the OAuth2 session for out-of-band authorization flows.
func (c *Client) Session() *Session { return c.session }

// get issues an authenticated GET and decodes the XML response, applying the
// retry policy to each call. Token resolution happens inside the retry loop
// so a mid-loop refresh is picked up.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	params.Set("SellerId", c.sellerID)

	return c.retry.Do(ctx, func() error {
		token, err := c.session.Token(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("yahoo: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if c.signer != nil {
			signature, err := c.signer.Sign(c.sellerID, time.Now())
			if err != nil {
				return err
			}
			req.Header.Set(signatureHeader, signature)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("yahoo: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("yahoo: read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &marketplace.APIError{
				StatusCode: resp.StatusCode,
				Message:    xmlErrorMessage(data),
			}
		}
		if err := xml.Unmarshal(data, result); err != nil {
			return &marketplace.ParseError{Source: c.name, Err: err}
		}
		if apiErr := resultError(result); apiErr != nil {
			return apiErr
		}
		return nil
	})
}

// resultError surfaces an application-level <Error> element carried in an
// otherwise successful response. Such errors are seller-side problems, never
// transient, so they map to a non-retryable status.
func resultError(result interface{}) error {
	var body *apiErrorBody
	switch r := result.(type) {
	case *orderListResult:
		body = r.Error
	case *orderInfoResult:
		body = r.Error
	}
	if body == nil {
		return nil
	}
	return &marketplace.APIError{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("%s: %s", body.Code, body.Message),
	}
}

func xmlErrorMessage(body []byte) string {
	var payload struct {
		Message string `xml:"Message"`
	}
	if err := xml.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}

// SearchOrders returns order summaries placed in [start, end], walking the
// offset pagination until the reported TotalCount is exhausted. An empty page
// always terminates the loop, whatever the count says.
func (c *Client) SearchOrders(ctx context.Context, start, end time.Time) ([]orderSummary, error) {
	var all []orderSummary
	for offset := 1; ; offset += searchPageSize {
		params := url.Values{}
		params.Set("OrderTimeFrom", start.Format(requestTimeLayout))
		params.Set("OrderTimeTo", end.Format(requestTimeLayout))
		params.Set("Start", fmt.Sprintf("%d", offset))
		params.Set("Result", fmt.Sprintf("%d", searchPageSize))

		var result orderListResult
		if err := c.get(ctx, "/orderList", params, &result); err != nil {
			return nil, err
		}

		if len(result.Search.Orders) == 0 {
			break
		}
		all = append(all, result.Search.Orders...)

		if offset+searchPageSize > result.Search.TotalCount {
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// GetOrderDetails fetches full order details, at most 100 comma-joined IDs
// per call.
func (c *Client) GetOrderDetails(ctx context.Context, orderIDs []string) ([]OrderInfo, error) {
	var all []OrderInfo
	for i := 0; i < len(orderIDs); i += detailBatchSize {
		end := i + detailBatchSize
		if end > len(orderIDs) {
			end = len(orderIDs)
		}

		if i > 0 {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		params := url.Values{}
		params.Set("OrderId", strings.Join(orderIDs[i:end], ","))

		var result orderInfoResult
		if err := c.get(ctx, "/orderInfo", params, &result); err != nil {
			return nil, err
		}
		all = append(all, result.Orders...)
	}
	return all, nil
}

// FetchOrders implements marketplace.Connector: search the range, fetch
// details, normalize.
func (c *Client) FetchOrders(ctx context.Context, start, end time.Time) ([]marketplace.SalesRecord, error) {
	summaries, err := c.SearchOrders(ctx, start, end)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		if summary.OrderID != "" {
			ids = append(ids, summary.OrderID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	orders, err := c.GetOrderDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	return normalizeOrders(orders, c.name), nil
}

// TestConnection verifies that a usable access token can be produced.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.session.Token(ctx)
	return err
}
