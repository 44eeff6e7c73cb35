package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/storefront-agent/server/internal/agent/graph"
	"github.com/storefront-agent/server/internal/agent/model"
	"github.com/storefront-agent/server/internal/agent/repo"
	"github.com/storefront-agent/server/internal/catalog"
	"github.com/storefront-agent/server/internal/core"
	"github.com/storefront-agent/server/pkg/commerce"
	logx "github.com/storefront-agent/server/pkg/logger"
	pkgredis "github.com/storefront-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the sales agent,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis pkgredis.Config

	// Agent configs
	Model        model.ReasoningModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
	Catalog      model.CatalogConfig

	// Optional commerce backend for checkout links
	Commerce commerce.Config
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.EnvironmentFromOS()})

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	rdb, err := envCfg.Redis.New(ctx)
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	logx.Info().Msg("connected to Redis")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}

	store := catalog.NewRedisStore(rdb, envCfg.Catalog.Key)
	if err := seedCatalog(ctx, store); err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}

	var commerceClient *commerce.Client
	if envCfg.Commerce.Enabled() {
		commerceClient, err = commerce.NewClient(envCfg.Commerce)
		if err != nil {
			log.Fatalf("Failed to build commerce client: %v", err)
		}
		logx.Info().Msg("commerce checkout links enabled")
	}

	runner, err := graph.BuildSalesGraph(ctx, graph.Config{
		Model:            envCfg.Model,
		Prompt:           envCfg.Prompt,
		Conversation:     envCfg.Conversation,
		Catalog:          envCfg.Catalog,
		CatalogStore:     store,
		Commerce:         commerceClient,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, ttl),
	})
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Browse phones",
			query:       "Hi! I'm looking for a new phone.",
		},
		{
			description: "Budget follow-up",
			query:       "Anything under 500?",
		},
		{
			description: "Availability check",
			query:       "Is the superphone-x in stock?",
		},
		{
			description: "Purchase decision",
			query:       "Great, add the superphone-x to my cart.",
		},
	}

	conversationID := "demo-conversation-001"

	for i, test := range testQueries {
		fmt.Printf("\nTest %d: %s\n", i+1, test.description)
		fmt.Printf("Query: %q\n", test.query)

		response, err := runner.Invoke(ctx, model.QueryInput{
			ConversationID: conversationID,
			Query:          test.query,
		})
		if err != nil {
			logx.Error().Err(err).Int("turn", i+1).Msg("turn failed")
			fmt.Printf("Response %d (fallback): %s\n", i+1, response)
			continue
		}

		fmt.Printf("Response %d: %s\n", i+1, response)

		time.Sleep(500 * time.Millisecond)
	}

	if err := runner.EndSession(ctx, conversationID); err != nil {
		logx.Warn().Err(err).Msg("ending session failed")
	}

	fmt.Println("\nDemo conversation finished.")
}

// seedCatalog loads a small electronics catalog so the demo has something to
// sell. Prices and tags deliberately mix shapes to exercise tolerant decoding.
func seedCatalog(ctx context.Context, store catalog.Store) error {
	records := []catalog.Record{
		{Handle: "superphone-x", Title: "SuperPhone X", Vendor: "Acme", Price: "299", Tags: catalog.FlexTags{"mobile", "android"}},
		{Handle: "superphone-x-pro", Title: "SuperPhone X Pro", Vendor: "Acme", Price: "549.99", Tags: catalog.FlexTags{"mobile", "android", "flagship"}},
		{Handle: "zbook-14", Title: "ZBook 14", Vendor: "Zeta", Price: "999", Tags: catalog.FlexTags{"laptop", "ultrabook"}},
		{Handle: "zbook-16-gaming", Title: "ZBook 16 Gaming", Vendor: "Zeta", Price: "1499", Tags: catalog.FlexTags{"laptop", "gaming"}},
		{Handle: "alpha-pad", Title: "Alpha Pad", Vendor: "Acme", Price: "450", Tags: catalog.FlexTags{"tablet"}},
		{Handle: "quickcharge-30w", Title: "QuickCharge 30W", Vendor: "Volt", Price: "25", Tags: catalog.FlexTags{"charger", "accessory"}},
		{Handle: "buds-lite", Title: "Buds Lite", Vendor: "Volt", Price: "59", Tags: catalog.FlexTags{"earbuds", "accessory"}},
	}
	for _, rec := range records {
		if err := store.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("seed %s: %w", rec.Handle, err)
		}
	}
	return nil
}
