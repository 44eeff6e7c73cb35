package nodes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/storefront-agent/server/internal/agent/model"
	logx "github.com/storefront-agent/server/pkg/logger"
)

// NewReasoningModel builds the tool-calling chat model the reasoner node
// runs on. "gemini" talks to the native API; "openai" covers any
// OpenAI-compatible endpoint (Groq, OpenRouter) selected via BaseURL.
func NewReasoningModel(ctx context.Context, cfg model.ReasoningModelConfig) (einomodel.ToolCallingChatModel, string, error) {
	switch cfg.Provider {
	case "gemini", "":
		clientCfg := &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if cfg.TimeoutSecs > 0 {
			clientCfg.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}
		}
		if cfg.BaseURL != "" {
			clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
		}
		client, err := genai.NewClient(ctx, clientCfg)
		if err != nil {
			logx.Error().Err(err).Msg("creating gemini client failed")
			return nil, "", fmt.Errorf("create gemini client: %w", err)
		}

		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       cfg.Model,
			Temperature: &cfg.Temperature,
			MaxTokens:   &cfg.MaxTokens,
		})
		if err != nil {
			logx.Error().Err(err).Msg("creating gemini chat model failed")
			return nil, "", fmt.Errorf("create gemini chat model: %w", err)
		}
		return cm, cfg.Model, nil

	case "openai":
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
			Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		})
		if err != nil {
			logx.Error().Err(err).Msg("creating openai-compatible chat model failed")
			return nil, "", fmt.Errorf("create openai chat model: %w", err)
		}
		return cm, cfg.Model, nil

	default:
		return nil, "", fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
