package rakuten

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
)

// This test uses go-vcr to record/replay a real searchOrder call against a
// live store. It skips by default if the cassette is absent and
// RECORD_CASSETTES != 1; recording needs RAKUTEN_SERVICE_SECRET and
// RAKUTEN_LICENSE_KEY in the environment.
func TestClient_SearchOrders_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "rakuten_search_order.yaml")
	if _, err := os.Stat(cassette); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		err := os.MkdirAll(filepath.Dir(cassette), 0o755)
		assert.NoError(t, err, "mkdir cassettes dir should succeed")
	}

	r, err := recorder.New(cassette)
	assert.NoError(t, err, "recorder.New should not error")
	assert.NotNil(t, r, "recorder should not be nil")
	defer func() { _ = r.Stop() }()

	secret := os.Getenv("RAKUTEN_SERVICE_SECRET")
	license := os.Getenv("RAKUTEN_LICENSE_KEY")
	if secret == "" {
		secret = "recorded-secret"
	}
	if license == "" {
		license = "recorded-license"
	}

	client, err := NewClient("rakuten-recorded", secret, license,
		WithHTTPClient(&http.Client{Transport: r}),
	)
	assert.NoError(t, err, "NewClient should not error")

	end := time.Now()
	numbers, err := client.SearchOrders(context.Background(), end.AddDate(0, 0, -7), end)
	assert.NoError(t, err, "SearchOrders should not error")
	t.Logf("recorded search returned %d orders", len(numbers))
}
