package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errx "github.com/storefront-agent/server/internal/core/error"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		ShopURL:     "demo-shop.myshopify.com",
		AccessToken: "shpat_test",
		APIVersion:  "2024-01",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client.WithEndpoint(endpoint)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{AccessToken: "shpat_test"}); err == nil {
		t.Fatal("NewClient() without shop url should fail")
	}
	if _, err := NewClient(Config{ShopURL: "demo-shop.myshopify.com"}); err == nil {
		t.Fatal("NewClient() without access token should fail")
	}
}

func TestExecuteRetriesOnRateLimit(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
			t.Errorf("access token header = %q, want shpat_test", got)
		}
		w.Write([]byte(`{"data":{"shop":{"name":"TechHub"}}}`))
	}))
	defer srv.Close()

	data, err := newTestClient(t, srv.URL).Execute(context.Background(), `{ shop { name } }`, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("server calls = %d, want 2", calls)
	}

	var payload struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.Shop.Name != "TechHub" {
		t.Fatalf("shop name = %q, want TechHub", payload.Shop.Name)
	}
}

func TestExecuteGivesUpAfterBudget(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Execute(context.Background(), `{ shop { name } }`, nil)
	if err == nil {
		t.Fatal("Execute() should fail once the retry budget is spent")
	}
	if calls != 3 {
		t.Fatalf("server calls = %d, want 3", calls)
	}

	var appErr *errx.AppError
	if !errors.As(err, &appErr) || appErr.Status != 429 {
		t.Fatalf("error = %v, want 429 AppError", err)
	}
}

func TestExecuteSurfacesGraphQLErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"field does not exist"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Execute(context.Background(), `{ nonsense }`, nil)
	if err == nil {
		t.Fatal("Execute() should surface graphql errors from a 200 response")
	}
}

func TestCreateCheckoutURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				Input struct {
					LineItems []struct {
						VariantID string `json:"variantId"`
						Quantity  int    `json:"quantity"`
					} `json:"lineItems"`
				} `json:"input"`
			} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		items := req.Variables.Input.LineItems
		if len(items) != 1 || items[0].VariantID != "gid://shopify/ProductVariant/42" || items[0].Quantity != 1 {
			t.Errorf("line items = %+v", items)
		}
		w.Write([]byte(`{"data":{"draftOrderCreate":{"draftOrder":{"id":"gid://shopify/DraftOrder/7","invoiceUrl":"https://demo-shop.myshopify.com/invoices/7"},"userErrors":[]}}}`))
	}))
	defer srv.Close()

	url, err := newTestClient(t, srv.URL).CreateCheckoutURL(context.Background(), "gid://shopify/ProductVariant/42", 0)
	if err != nil {
		t.Fatalf("CreateCheckoutURL() error = %v", err)
	}
	if url != "https://demo-shop.myshopify.com/invoices/7" {
		t.Fatalf("CreateCheckoutURL() = %q", url)
	}
}

func TestCreateCheckoutURLUserErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"draftOrderCreate":{"draftOrder":null,"userErrors":[{"field":["input"],"message":"variant not found"}]}}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).CreateCheckoutURL(context.Background(), "gid://shopify/ProductVariant/404", 1)
	if err == nil {
		t.Fatal("CreateCheckoutURL() should fail on user errors")
	}
}

func TestRetryAfterParsing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   time.Duration
	}{
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"", defaultRetryAfter},
		{"soon", defaultRetryAfter},
		{"-3", defaultRetryAfter},
	}
	for _, tc := range cases {
		if got := retryAfter(tc.header); got != tc.want {
			t.Fatalf("retryAfter(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
