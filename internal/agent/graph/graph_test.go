package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/storefront-agent/server/internal/agent/model"
	"github.com/storefront-agent/server/internal/catalog"
	errx "github.com/storefront-agent/server/internal/core/error"
)

// scriptedModel replays a fixed sequence of assistant messages and records
// every Generate input for assertions. A nil script entry makes that call
// fail, standing in for a provider outage. Once the script runs out it
// repeats the last message.
type scriptedModel struct {
	mu     sync.Mutex
	script []*schema.Message
	step   int
	seen   [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]*schema.Message, len(in))
	copy(copied, in)
	m.seen = append(m.seen, copied)

	if len(m.script) == 0 {
		return nil, fmt.Errorf("scripted model has no responses")
	}
	idx := m.step
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.step++
	out := m.script[idx]
	if out == nil {
		return nil, fmt.Errorf("model backend unavailable")
	}
	// Return a shallow copy so state handlers mutating ToolCall IDs do not
	// rewrite the script between turns.
	clone := *out
	clone.ToolCalls = append([]schema.ToolCall(nil), out.ToolCalls...)
	return &clone, nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not scripted")
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

func (m *scriptedModel) lastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.seen) == 0 {
		return nil
	}
	return m.seen[len(m.seen)-1]
}

// memoryRepo is an in-process ConversationRepository for tests.
type memoryRepo struct {
	mu       sync.Mutex
	messages map[string][]*schema.Message
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{messages: make(map[string][]*schema.Message)}
}

func (r *memoryRepo) AddMessages(ctx context.Context, conversationID string, msgs ...*schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[conversationID] = append(r.messages[conversationID], msgs...)
	return nil
}

func (r *memoryRepo) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.ConversationHistory{
		ConversationID: conversationID,
		Messages:       append([]*schema.Message(nil), r.messages[conversationID]...),
	}, nil
}

func (r *memoryRepo) ClearHistory(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, conversationID)
	return nil
}

func (r *memoryRepo) GetMessageCount(ctx context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[conversationID]), nil
}

func toolCallMsg(name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: "", Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

func testConfig(cm einomodel.ToolCallingChatModel, repo model.ConversationRepository) Config {
	return Config{
		Model:            model.ReasoningModelConfig{Model: "scripted"},
		Prompt:           model.PromptConfig{BusinessType: "electronics store", BusinessName: "TechHub"},
		Conversation:     model.ConversationConfig{},
		Catalog:          model.CatalogConfig{ScrollLimit: 300, InventoryScanLimit: 200, MaxResults: 10},
		CatalogStore:     graphTestCatalog(),
		ConversationRepo: repo,
		ChatModel:        cm,
	}
}

func graphTestCatalog() *catalog.MemoryStore {
	return catalog.NewMemoryStore(
		catalog.Record{Handle: "phone-a", Title: "SuperPhone X", Vendor: "Acme", Price: "299", Tags: catalog.FlexTags{"mobile"}},
		catalog.Record{Handle: "lap-b", Title: "ZBook", Vendor: "Zeta", Price: "999", Tags: catalog.FlexTags{"laptop"}},
	)
}

func TestTurnWithFilterThenAnswer(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{script: []*schema.Message{
		toolCallMsg("filter_products", `{"keyword":"phone"}`),
		schema.AssistantMessage("We have the SuperPhone X (phone-a) for $299.", nil),
	}}
	repo := newMemoryRepo()

	runner, err := BuildSalesGraph(context.Background(), testConfig(cm, repo))
	if err != nil {
		t.Fatalf("BuildSalesGraph() error = %v", err)
	}

	reply, err := runner.Invoke(context.Background(), model.QueryInput{ConversationID: "conv-1", Query: "show me phones"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(reply, "SuperPhone X") {
		t.Fatalf("reply = %q, want the scripted answer", reply)
	}

	// The filter result reached the model as a tool message naming phone-a.
	var sawToolResult bool
	for _, msg := range cm.lastInput() {
		if msg != nil && msg.Role == schema.Tool && strings.Contains(msg.Content, "phone-a") {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Fatal("model never received the filter tool result")
	}

	// The turn committed exactly one user/assistant pair.
	n, _ := repo.GetMessageCount(context.Background(), "conv-1")
	if n != 2 {
		t.Fatalf("transcript length = %d, want 2", n)
	}
}

func TestCheckoutGatedAcrossTurns(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{script: []*schema.Message{
		// Turn 1: checkout before anything was shown.
		toolCallMsg("checkout", `{"handle":"lap-b"}`),
		schema.AssistantMessage("Please browse products first.", nil),
		// Turn 2: filter, then checkout the shown product.
		toolCallMsg("filter_products", `{"keyword":"","price_min":500}`),
		toolCallMsg("checkout", `{"handle":"lap-b"}`),
		schema.AssistantMessage("Added the ZBook to your cart.", nil),
	}}
	repo := newMemoryRepo()

	runner, err := BuildSalesGraph(context.Background(), testConfig(cm, repo))
	if err != nil {
		t.Fatalf("BuildSalesGraph() error = %v", err)
	}

	if _, err := runner.Invoke(context.Background(), model.QueryInput{ConversationID: "conv-1", Query: "buy the zbook"}); err != nil {
		t.Fatalf("turn 1 Invoke() error = %v", err)
	}

	var rejected bool
	for _, msgs := range cm.seen {
		for _, msg := range msgs {
			if msg != nil && msg.Role == schema.Tool && strings.Contains(msg.Content, `"success":false`) {
				rejected = true
			}
		}
	}
	if !rejected {
		t.Fatal("checkout before any filter call must be rejected")
	}

	reply, err := runner.Invoke(context.Background(), model.QueryInput{ConversationID: "conv-1", Query: "show me something over 500 and buy it"})
	if err != nil {
		t.Fatalf("turn 2 Invoke() error = %v", err)
	}
	if !strings.Contains(reply, "ZBook") {
		t.Fatalf("reply = %q", reply)
	}

	var succeeded bool
	for _, msg := range cm.lastInput() {
		if msg != nil && msg.Role == schema.Tool && strings.Contains(msg.Content, `"success":true`) && strings.Contains(msg.Content, `"price":999`) {
			succeeded = true
		}
	}
	if !succeeded {
		t.Fatal("checkout of a displayed product must succeed with cached fields")
	}
}

func TestFailedTurnRollsBackCacheAndTranscript(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{script: []*schema.Message{
		// Turn 1: the filter succeeds and would cache phone-a, then the model
		// call fails before the turn can finish.
		toolCallMsg("filter_products", `{"keyword":"phone"}`),
		nil,
		// Turn 2: checkout of the handle the failed turn filtered.
		toolCallMsg("checkout", `{"handle":"phone-a"}`),
		schema.AssistantMessage("Please browse products first.", nil),
	}}
	repo := newMemoryRepo()

	runner, err := BuildSalesGraph(context.Background(), testConfig(cm, repo))
	if err != nil {
		t.Fatalf("BuildSalesGraph() error = %v", err)
	}

	ctx := context.Background()
	reply, err := runner.Invoke(ctx, model.QueryInput{ConversationID: "conv-1", Query: "phones"})
	if err == nil {
		t.Fatal("a mid-turn model failure must surface as an error")
	}
	if reply != errx.TurnFallbackMessage {
		t.Fatalf("reply = %q, want the fixed fallback message", reply)
	}

	// The failed turn left no trace: nothing committed to the transcript.
	if n, _ := repo.GetMessageCount(ctx, "conv-1"); n != 0 {
		t.Fatalf("transcript length after failed turn = %d, want 0", n)
	}

	// And the display cache was rolled back, so the handle the aborted filter
	// found is not checkout-eligible.
	if _, err := runner.Invoke(ctx, model.QueryInput{ConversationID: "conv-1", Query: "buy phone-a"}); err != nil {
		t.Fatalf("turn 2 Invoke() error = %v", err)
	}
	var rejected bool
	for _, msg := range cm.lastInput() {
		if msg != nil && msg.Role == schema.Tool && strings.Contains(msg.Content, `"success":false`) {
			rejected = true
		}
	}
	if !rejected {
		t.Fatal("a handle filtered during an aborted turn must not be checkout-eligible")
	}
}

func TestUnknownToolNameIsRecoverable(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{script: []*schema.Message{
		toolCallMsg("teleport_product", `{"handle":"phone-a"}`),
		schema.AssistantMessage("I can only search, check stock, or add to cart.", nil),
	}}

	runner, err := BuildSalesGraph(context.Background(), testConfig(cm, newMemoryRepo()))
	if err != nil {
		t.Fatalf("BuildSalesGraph() error = %v", err)
	}

	reply, err := runner.Invoke(context.Background(), model.QueryInput{ConversationID: "conv-1", Query: "teleport it to me"})
	if err != nil {
		t.Fatalf("Invoke() error = %v, unknown tools must not abort the turn", err)
	}
	if reply == "" {
		t.Fatal("expected the scripted recovery answer")
	}

	var sawFallback bool
	for _, msg := range cm.lastInput() {
		if msg != nil && msg.Role == schema.Tool && strings.Contains(msg.Content, "unknown_tool") {
			sawFallback = true
		}
	}
	if !sawFallback {
		t.Fatal("model never saw the structured unknown-tool result")
	}
}

func TestToolBudgetTerminatesLoop(t *testing.T) {
	t.Parallel()

	// The model always asks for another filter; the budget must end the turn.
	cm := &scriptedModel{script: []*schema.Message{
		toolCallMsg("filter_products", `{"keyword":"phone"}`),
	}}
	cfg := testConfig(cm, newMemoryRepo())
	cfg.Conversation.Tools.MaxCalls = 2

	runner, err := BuildSalesGraph(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildSalesGraph() error = %v", err)
	}

	if _, err := runner.Invoke(context.Background(), model.QueryInput{ConversationID: "conv-1", Query: "phones"}); err != nil {
		t.Fatalf("Invoke() error = %v, budget should end the turn cleanly", err)
	}

	var sawNotice bool
	for _, msg := range cm.lastInput() {
		if msg != nil && msg.Role == schema.System && strings.Contains(msg.Content, "maximum tool call limit") {
			sawNotice = true
		}
	}
	if !sawNotice {
		t.Fatal("wrap-up notice never reached the model")
	}
}

func TestEndSessionClearsStateAndTranscript(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{script: []*schema.Message{
		toolCallMsg("filter_products", `{"keyword":"phone"}`),
		schema.AssistantMessage("Here you go.", nil),
		// After the session restart, checkout must be rejected again.
		toolCallMsg("checkout", `{"handle":"phone-a"}`),
		schema.AssistantMessage("Please browse first.", nil),
	}}
	repo := newMemoryRepo()

	runner, err := BuildSalesGraph(context.Background(), testConfig(cm, repo))
	if err != nil {
		t.Fatalf("BuildSalesGraph() error = %v", err)
	}

	ctx := context.Background()
	if _, err := runner.Invoke(ctx, model.QueryInput{ConversationID: "conv-1", Query: "phones"}); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if err := runner.EndSession(ctx, "conv-1"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	if n, _ := repo.GetMessageCount(ctx, "conv-1"); n != 0 {
		t.Fatalf("transcript length after EndSession = %d, want 0", n)
	}

	if _, err := runner.Invoke(ctx, model.QueryInput{ConversationID: "conv-1", Query: "buy phone-a"}); err != nil {
		t.Fatalf("Invoke() after restart error = %v", err)
	}
	var rejected bool
	for _, msg := range cm.lastInput() {
		if msg != nil && msg.Role == schema.Tool && strings.Contains(msg.Content, `"success":false`) {
			rejected = true
		}
	}
	if !rejected {
		t.Fatal("a restarted session must start with an empty display cache")
	}
}
