package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/storefront-agent/server/internal/agent/model"
	"github.com/storefront-agent/server/internal/catalog"
	"github.com/storefront-agent/server/pkg/commerce"
)

// The capability surface exposed to the reasoning model is closed: exactly
// these three operations exist, and the tool executor answers anything else
// with a structured unknown-tool result instead of failing the turn.
const (
	ToolFilterProducts = "filter_products"
	ToolCheckInventory = "check_inventory"
	ToolCheckout       = "checkout"
)

// SessionTools assembles the registry backing one graph. The tools themselves
// are stateless; per-session display state reaches them through the cache
// bound to the request context.
func SessionTools(store catalog.Store, commerceClient *commerce.Client, cfg model.CatalogConfig) []tool.BaseTool {
	return []tool.BaseTool{
		createFilterProductsTool(store, cfg),
		createCheckInventoryTool(store, cfg),
		createCheckoutTool(commerceClient),
	}
}

// ToolInfos collects the schema descriptions for binding to the chat model.
func ToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
