package model

// ================ Config ================

type ConversationConfig struct {
	TTL   string `envconfig:"CONVERSATION_TTL" default:"15m"`
	Tools struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

// ReasoningModelConfig selects and tunes the reasoning engine. Provider is
// either "gemini" (native API) or "openai" for any OpenAI-compatible endpoint
// (Groq, OpenRouter) reached through BaseURL.
type ReasoningModelConfig struct {
	Provider    string  `envconfig:"MODEL_PROVIDER" default:"gemini"`
	Model       string  `envconfig:"MODEL_NAME" default:"gemini-2.5-flash"`
	APIKey      string  `envconfig:"MODEL_API_KEY" required:"true"`
	BaseURL     string  `envconfig:"MODEL_BASE_URL"`
	MaxTokens   int     `envconfig:"MODEL_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"MODEL_TEMPERATURE" default:"0.2"`
	TimeoutSecs int     `envconfig:"MODEL_TIMEOUT_SECS" default:"30"`
}

type PromptConfig struct {
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"electronics store"`
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"TechHub"`
}

// CatalogConfig bounds every catalog scan the tools perform.
type CatalogConfig struct {
	Key                string `envconfig:"CATALOG_KEY" default:"catalog:products"`
	ScrollLimit        int    `envconfig:"CATALOG_SCROLL_LIMIT" default:"300"`
	InventoryScanLimit int    `envconfig:"CATALOG_INVENTORY_SCAN_LIMIT" default:"200"`
	MaxResults         int    `envconfig:"CATALOG_MAX_RESULTS" default:"10"`
}
