package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/storefront-agent/server/internal/agent/model"
	"github.com/storefront-agent/server/internal/agent/session"
	"github.com/storefront-agent/server/internal/catalog"
)

type CheckInventoryInput struct {
	Product string `json:"product"`
}

type CheckInventoryOutput struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
	Handle    string `json:"handle,omitempty"`
	Source    string `json:"source,omitempty"`
}

const (
	sourceCache = "cache"
	sourceStore = "store"
)

func createCheckInventoryTool(store catalog.Store, cfg model.CatalogConfig) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolCheckInventory,
			Desc: "Check whether a specific product is in stock. Accepts a product handle or product name. Prefer handles from earlier filter_products results so the answer matches what the customer was shown.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product": {
					Type:     "string",
					Desc:     "Product handle or exact product name to look up.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *CheckInventoryInput) (*CheckInventoryOutput, error) {
			normalized := strings.ToLower(strings.TrimSpace(in.Product))
			if normalized == "" {
				// An empty lookup is a miss, not a failure; the model gets a
				// structured result and the turn keeps going.
				return &CheckInventoryOutput{
					Available: false,
					Message:   "Product not found in inventory",
				}, nil
			}

			// Products the customer was just shown answer from the session
			// cache, even when the wider catalog holds a differently-cased
			// match. Keeps the answer consistent with the current display.
			if cache, ok := session.CacheFrom(ctx); ok && cache.Has(normalized) {
				return &CheckInventoryOutput{
					Available: true,
					Message:   "Product is available",
					Handle:    normalized,
					Source:    sourceCache,
				}, nil
			}

			records, err := store.Scroll(ctx, cfg.InventoryScanLimit)
			if err != nil {
				return nil, fmt.Errorf("scan catalog: %w", err)
			}
			for _, rec := range records {
				handle := strings.ToLower(rec.Handle)
				title := strings.ToLower(rec.Title)
				if normalized == handle || normalized == title {
					return &CheckInventoryOutput{
						Available: true,
						Message:   "Product is available",
						Handle:    handle,
						Source:    sourceStore,
					}, nil
				}
			}

			return &CheckInventoryOutput{
				Available: false,
				Message:   "Product not found in inventory",
			}, nil
		},
	)
}
