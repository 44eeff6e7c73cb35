package tools

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/storefront-agent/server/internal/agent/session"
	"github.com/storefront-agent/server/pkg/commerce"
	logx "github.com/storefront-agent/server/pkg/logger"
)

// CheckoutRejectedMessage is the fixed guidance returned whenever checkout is
// asked for a handle the session was not shown.
const CheckoutRejectedMessage = "Please select a product from the recommended list"

type CheckoutInput struct {
	Handle string `json:"handle"`
}

type CheckoutOutput struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message,omitempty"`
	Action      string  `json:"action,omitempty"`
	Name        string  `json:"name,omitempty"`
	Handle      string  `json:"handle,omitempty"`
	Price       float64 `json:"price,omitempty"`
	CheckoutURL string  `json:"checkout_url,omitempty"`
}

// createCheckoutTool builds the gate between conversation and cart. A handle
// passes only if it sits in the session cache, meaning the most recent filter
// call displayed it; name and price always come from the cached record, never
// from the tool call arguments. The commerce client is optional and best
// effort: when configured, a draft-order invoice URL is attached, and its
// failure never fails the checkout itself.
func createCheckoutTool(commerceClient *commerce.Client) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolCheckout,
			Desc: "Add a product to the customer's cart. Only works for product handles returned by the most recent filter_products call; any other handle is refused. Never guess a handle.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"handle": {
					Type:     "string",
					Desc:     "Exact product handle from the latest filter_products results.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *CheckoutInput) (*CheckoutOutput, error) {
			handle := strings.TrimSpace(in.Handle)
			if handle == "" {
				// A blank handle can never be in the cache; answer with the
				// rejection result instead of aborting the turn.
				return &CheckoutOutput{Success: false, Message: CheckoutRejectedMessage}, nil
			}

			cache, ok := session.CacheFrom(ctx)
			if !ok {
				return &CheckoutOutput{Success: false, Message: CheckoutRejectedMessage}, nil
			}
			product, ok := cache.Get(handle)
			if !ok {
				return &CheckoutOutput{Success: false, Message: CheckoutRejectedMessage}, nil
			}

			out := &CheckoutOutput{
				Success: true,
				Action:  "add_to_cart",
				Name:    product.Name,
				Handle:  product.Handle,
				Price:   product.Price,
			}

			if commerceClient != nil {
				url, err := commerceClient.CreateCheckoutURL(ctx, product.Handle, 1)
				if err != nil {
					logx.Warn().Str("handle", product.Handle).Err(err).Msg("checkout url creation failed, continuing without one")
				} else {
					out.CheckoutURL = url
				}
			}

			return out, nil
		},
	)
}
