package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/storefront-agent/server/internal/agent/graph/tools"
	"github.com/storefront-agent/server/internal/agent/model"
)

//go:embed template/policy_prompt.txt
var policySystemPrompt string

// RenderPolicySystem renders the sales-policy system prompt and triggers
// prompt callbacks by going through the eino prompt component.
func RenderPolicySystem(ctx context.Context, config model.PromptConfig) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(policySystemPrompt),
	)
	vars := map[string]any{
		"BusinessType":  config.BusinessType,
		"BusinessName":  config.BusinessName,
		"FilterTool":    tools.ToolFilterProducts,
		"InventoryTool": tools.ToolCheckInventory,
		"CheckoutTool":  tools.ToolCheckout,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("policy prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("policy prompt render: empty result")
	}
	return msgs[0].Content, nil
}
