package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	errx "github.com/storefront-agent/server/internal/core/error"
	logx "github.com/storefront-agent/server/pkg/logger"
)

const defaultRetryAfter = 2 * time.Second

type Config struct {
	ShopURL     string        `envconfig:"COMMERCE_SHOP_URL"`
	AccessToken string        `envconfig:"COMMERCE_ACCESS_TOKEN"`
	APIVersion  string        `envconfig:"COMMERCE_API_VERSION" default:"2024-01"`
	Timeout     time.Duration `envconfig:"COMMERCE_TIMEOUT" default:"10s"`
	MaxAttempts int           `envconfig:"COMMERCE_MAX_ATTEMPTS" default:"3"`
}

// Enabled reports whether enough configuration is present to build a client.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.ShopURL) != "" && strings.TrimSpace(c.AccessToken) != ""
}

// Client talks to the commerce Admin GraphQL API. Requests hitting the
// platform's rate limiter (429) are retried after the server-provided
// Retry-After delay, up to MaxAttempts in total; exhausting the budget
// surfaces as a transport-class failure.
type Client struct {
	http        *resty.Client
	endpoint    string
	maxAttempts int
}

func NewClient(cfg Config) (*Client, error) {
	shop := strings.TrimSpace(cfg.ShopURL)
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.Trim(shop, "/")
	if shop == "" {
		return nil, fmt.Errorf("commerce shop url is required")
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("commerce access token is required")
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Shopify-Access-Token", token)

	return &Client{
		http:        httpClient,
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, cfg.APIVersion),
		maxAttempts: maxAttempts,
	}, nil
}

// WithEndpoint overrides the computed endpoint. Tests point it at a local server.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Execute runs one GraphQL document with rate-limit aware retries.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	body := graphqlRequest{Query: query, Variables: variables}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			Post(c.endpoint)
		if err != nil {
			return nil, errx.WrapTransport(err)
		}

		if resp.StatusCode() == 429 {
			delay := retryAfter(resp.Header().Get("Retry-After"))
			logx.Warn().Dur("retry_after", delay).Int("attempt", attempt+1).Msg("commerce rate limit hit, backing off")
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, errx.WrapTransport(err)
			}
			continue
		}

		if resp.StatusCode() >= 400 {
			return nil, errx.WrapTransport(fmt.Errorf("commerce http status %d: %s", resp.StatusCode(), resp.String()))
		}

		var parsed graphqlResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return nil, errx.WrapTransport(fmt.Errorf("decode commerce response: %w", err))
		}
		if len(parsed.Errors) > 0 {
			return nil, fmt.Errorf("commerce graphql error: %s", parsed.Errors[0].Message)
		}
		return parsed.Data, nil
	}

	return nil, errx.WrapRateLimited(fmt.Errorf("gave up after %d attempts", c.maxAttempts))
}

const draftOrderCreateMutation = `
mutation draftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      invoiceUrl
    }
    userErrors { field message }
  }
}
`

// CreateCheckoutURL creates a draft order for one line item and returns its
// invoice URL, which acts as an instant checkout link.
func (c *Client) CreateCheckoutURL(ctx context.Context, variantID string, quantity int) (string, error) {
	if quantity <= 0 {
		quantity = 1
	}
	data, err := c.Execute(ctx, draftOrderCreateMutation, map[string]any{
		"input": map[string]any{
			"lineItems": []map[string]any{
				{"variantId": variantID, "quantity": quantity},
			},
		},
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		DraftOrderCreate struct {
			DraftOrder struct {
				InvoiceURL string `json:"invoiceUrl"`
			} `json:"draftOrder"`
			UserErrors []struct {
				Message string `json:"message"`
			} `json:"userErrors"`
		} `json:"draftOrderCreate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode draft order response: %w", err)
	}
	if len(payload.DraftOrderCreate.UserErrors) > 0 {
		return "", fmt.Errorf("draft order rejected: %s", payload.DraftOrderCreate.UserErrors[0].Message)
	}
	if payload.DraftOrderCreate.DraftOrder.InvoiceURL == "" {
		return "", fmt.Errorf("draft order response missing invoice url")
	}
	return payload.DraftOrderCreate.DraftOrder.InvoiceURL, nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
