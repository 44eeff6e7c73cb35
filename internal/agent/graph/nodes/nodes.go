package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/storefront-agent/server/internal/agent/graph/conversations"
	"github.com/storefront-agent/server/internal/agent/graph/prompts"
	"github.com/storefront-agent/server/internal/agent/model"
	logx "github.com/storefront-agent/server/pkg/logger"
)

// Graph node names.
const (
	NodeContextAssembler = "ContextAssembler"
	NodeReasoner         = "Reasoner"
	NodeToolExecutor     = "ToolExecutor"
)

// NewContextAssemblerPreHandler resets per-turn state before a new query runs.
func NewContextAssemblerPreHandler() func(context.Context, model.QueryInput, *model.TurnState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.TurnState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.History = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewContextAssemblerNode builds the reasoning context for one turn: sales
// policy system prompt, persisted history, then the pending user message.
func NewContextAssemblerNode(
	mm *conversations.MessagesManager,
	promptCfg *model.PromptConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		systemPrompt, err := prompts.RenderPolicySystem(ctx, *promptCfg)
		if err != nil {
			return nil, fmt.Errorf("render policy prompt: %w", err)
		}

		messages, err := mm.BuildTurnContext(ctx, input.ConversationID, systemPrompt, input.Query)
		if err != nil {
			return nil, fmt.Errorf("build turn context: %w", err)
		}

		return messages, nil
	})
}

// NewReasonerPreHandler accumulates incoming messages into turn history and,
// once the tool budget is spent, injects a wrap-up notice so the model closes
// the turn with what it already gathered instead of requesting more tools.
func NewReasonerPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.TurnState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.TurnState) ([]*schema.Message, error) {
		// Some OpenAI-compatible providers return tool results without a
		// tool_call_id; reattach the most recent assistant call id so the
		// transcript stays well-formed.
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					if id := strings.TrimSpace(msg.ToolCalls[0].ID); id != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Answer the customer now using the information already gathered, "+
						"and say so if something could not be checked.",
					maxToolCalls,
				),
			}
			state.History = append(state.History, wrapUp)
		}

		return state.History, nil
	}
}

// NewReasonerPostHandler records usage cost, synthesizes missing tool call
// ids, and appends the model output to turn history. Transcript persistence
// is not done here; the runner commits whole turns only after they succeed.
func NewReasonerPostHandler(modelName string) func(context.Context, *schema.Message, *model.TurnState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.TurnState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("reasoner returned nil message")
		}

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			state.TotalCostUSD += totalC
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("turn_cost_usd", state.TotalCostUSD).
				Msg("LLM usage")
		}

		// Providers running behind OpenAI compatibility layers may omit tool
		// call ids; synthesize stable per-turn ids so results match back up.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("model requested tools")
		} else {
			logx.Debug().Msg("model produced final answer")
		}

		return out, nil
	}
}

// NewToolRouterCondition routes the reasoner output: tool calls continue the
// loop unless the budget flag is up, anything else ends the turn.
func NewToolRouterCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		compose.ProcessState(ctx, func(_ context.Context, state *model.TurnState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if limitReached {
			logx.Debug().Msg("tool budget spent, ending turn")
			return compose.END, nil
		}
		if len(input.ToolCalls) > 0 {
			return NodeToolExecutor, nil
		}
		return compose.END, nil
	}
}

// NewToolExecutorPreHandler counts tool executions against the turn budget.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.TurnState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.TurnState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("conversation_id", state.ConversationID).
			Msg("tool execution attempt")

		if exceeded {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("conversation_id", state.ConversationID).
				Msg("tool call budget exceeded, flagging for wrap-up")
		}

		return in, nil
	}
}
