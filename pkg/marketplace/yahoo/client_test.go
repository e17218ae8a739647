package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saleschecker/pkg/marketplace"
)

func validSession(t *testing.T) *Session {
	t.Helper()
	now := time.Now()
	path := tokenFilePath(t)
	writeTokenFile(t, path, tokenFileData{
		AccessToken:  "test-token",
		RefreshToken: "test-refresh",
		ExpiresAt:    timePtr(now.Add(time.Hour)),
	})
	session, err := NewSession("id", "secret", WithTokenFile(path))
	require.NoError(t, err)
	return session
}

func noSleepPolicy(attempts int) marketplace.RetryPolicy {
	return marketplace.RetryPolicy{MaxAttempts: attempts, BaseDelay: 0, Sleep: func(time.Duration) {}}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("yahoo-test", validSession(t), "seller-1",
		WithBaseURL(server.URL),
		WithRetryPolicy(noSleepPolicy(1)),
	)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresSellerID(t *testing.T) {
	_, err := NewClient("store", validSession(t), "")
	require.Error(t, err)

	var cfgErr *marketplace.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "yahoo", cfgErr.Kind)
}

func TestSearchOrdersWalksOffsetPagination(t *testing.T) {
	// 250 orders served 100 at a time: offsets 1, 101, 201.
	const total = 250
	var offsets []string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orderList", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "seller-1", r.URL.Query().Get("SellerId"))

		start := r.URL.Query().Get("Start")
		offsets = append(offsets, start)

		var startIdx int
		_, err := fmt.Sscanf(start, "%d", &startIdx)
		require.NoError(t, err)

		count := total - (startIdx - 1)
		if count > 100 {
			count = 100
		}
		var body strings.Builder
		body.WriteString("<Result><Search>")
		fmt.Fprintf(&body, "<TotalCount>%d</TotalCount>", total)
		for i := 0; i < count; i++ {
			fmt.Fprintf(&body, "<OrderInfo><OrderId>order-%d</OrderId><OrderStatus>2</OrderStatus></OrderInfo>", startIdx+i)
		}
		body.WriteString("</Search></Result>")
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body.String()))
	})

	client := newTestClient(t, handler)
	summaries, err := client.SearchOrders(context.Background(), time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	assert.Len(t, summaries, total)
	assert.Equal(t, []string{"1", "101", "201"}, offsets)
	assert.Equal(t, "order-1", summaries[0].OrderID)
	assert.Equal(t, "order-250", summaries[total-1].OrderID)
}

func TestSearchOrdersSingleOrderDecodesAsList(t *testing.T) {
	// One repeated element must still land in the slice.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Result><Search><TotalCount>1</TotalCount><OrderInfo><OrderId>solo</OrderId></OrderInfo></Search></Result>`))
	})

	client := newTestClient(t, handler)
	summaries, err := client.SearchOrders(context.Background(), time.Now().AddDate(0, 0, -1), time.Now())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "solo", summaries[0].OrderID)
}

func TestGetOrderDetailsBatchesIDs(t *testing.T) {
	ids := make([]string, 150)
	for i := range ids {
		ids[i] = fmt.Sprintf("order-%d", i)
	}

	var batchSizes []int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orderInfo", r.URL.Path)
		joined := r.URL.Query().Get("OrderId")
		batch := strings.Split(joined, ",")
		batchSizes = append(batchSizes, len(batch))

		var body strings.Builder
		body.WriteString("<Result>")
		for _, id := range batch {
			fmt.Fprintf(&body, "<OrderInfo><OrderId>%s</OrderId><OrderTime>20240301100000</OrderTime><TotalPrice>1000</TotalPrice></OrderInfo>", id)
		}
		body.WriteString("</Result>")
		_, _ = w.Write([]byte(body.String()))
	})

	client := newTestClient(t, handler)
	orders, err := client.GetOrderDetails(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, orders, 150)
	assert.Equal(t, []int{100, 50}, batchSizes)
}

func TestGetReportsApplicationError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Result><Error><Code>px-04102</Code><Message>invalid seller</Message></Error></Result>`))
	})

	client := newTestClient(t, handler)
	_, err := client.SearchOrders(context.Background(), time.Now().AddDate(0, 0, -1), time.Now())
	require.Error(t, err)

	var apiErr *marketplace.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "px-04102")
	assert.False(t, apiErr.Retryable())
}

func TestGetEmptyAmountElementsDecodeAsZero(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Result><OrderInfo>
			<OrderId>order-1</OrderId>
			<OrderTime>20240301100000</OrderTime>
			<TotalPrice>1500</TotalPrice>
			<Pay><TotalPrice></TotalPrice><UsePoint/></Pay>
		</OrderInfo></Result>`))
	})

	client := newTestClient(t, handler)
	orders, err := client.GetOrderDetails(context.Background(), []string{"order-1"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(0), int64(orders[0].Pay.TotalPrice))
	assert.Equal(t, int64(1500), int64(orders[0].TotalPrice))
}

func TestFetchOrdersEndToEnd(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orderList":
			_, _ = w.Write([]byte(`<Result><Search><TotalCount>1</TotalCount><OrderInfo><OrderId>order-1</OrderId></OrderInfo></Search></Result>`))
		case "/orderInfo":
			_, _ = w.Write([]byte(`<Result><OrderInfo>
				<OrderId>order-1</OrderId>
				<OrderTime>20240301103000</OrderTime>
				<OrderStatus>2</OrderStatus>
				<Pay><TotalPrice>3000</TotalPrice><UsePoint>200</UsePoint><GiftCardDiscount>100</GiftCardDiscount></Pay>
				<Item><ItemId>item-1</ItemId><Title>teapot</Title><UnitPrice>3000</UnitPrice><Quantity>1</Quantity></Item>
			</OrderInfo></Result>`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	client := newTestClient(t, handler)
	records, err := client.FetchOrders(context.Background(), time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "order-1", records[0].OrderNumber)
	assert.Equal(t, "teapot", records[0].ItemName)
	assert.Equal(t, int64(2700), records[0].OrderNetSales)
	assert.Equal(t, "yahoo-test", records[0].Source)
}

func TestTestConnectionUsesSessionToken(t *testing.T) {
	client, err := NewClient("yahoo-test", validSession(t), "seller-1")
	require.NoError(t, err)
	assert.NoError(t, client.TestConnection(context.Background()))

	unauth, err := NewSession("id", "secret", WithTokenFile(tokenFilePath(t)))
	require.NoError(t, err)
	client2, err := NewClient("yahoo-test2", unauth, "seller-1")
	require.NoError(t, err)
	assert.ErrorIs(t, client2.TestConnection(context.Background()), marketplace.ErrNotAuthenticated)
}
