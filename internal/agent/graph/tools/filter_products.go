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
	logx "github.com/storefront-agent/server/pkg/logger"
)

// maxPriceSentinel stands in for "no upper bound". A caller sending an
// explicit price_max of 0 still means zero; only an absent field maps here.
const maxPriceSentinel = 999999.0

type FilterProductsInput struct {
	Keyword  string   `json:"keyword"`
	PriceMin float64  `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
}

type FilterProductsOutput struct {
	Products []model.Product `json:"products"`
	Total    int             `json:"total"`
}

func createFilterProductsTool(store catalog.Store, cfg model.CatalogConfig) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolFilterProducts,
			Desc: "Search the product catalog by keyword and optional price range. Understands category words like phone, smartphone, laptop, notebook, tablet, charger as well as product names and vendors. Returns the products the customer will see; always call this before answering questions about what is available.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"keyword": {
					Type: "string",
					Desc: "Category word such as phone, smartphone, laptop, notebook, tablet, ipad, charger, earbuds. Omit to browse by price alone.",
				},
				"price_min": {
					Type: "number",
					Desc: "Lowest acceptable price. Omit for no lower bound.",
				},
				"price_max": {
					Type: "number",
					Desc: "Highest acceptable price. Omit for no upper bound.",
				},
			}),
		},
		func(ctx context.Context, in *FilterProductsInput) (*FilterProductsOutput, error) {
			priceMax := maxPriceSentinel
			if in.PriceMax != nil {
				priceMax = *in.PriceMax
			}

			records, err := store.Scroll(ctx, cfg.ScrollLimit)
			if err != nil {
				return nil, fmt.Errorf("scan catalog: %w", err)
			}

			category := DetectCategory(in.Keyword)

			// Never nil: a zero-match search must serialize as an empty JSON
			// array, not null, so the model sees a real result.
			matched := []model.Product{}
			for _, rec := range records {
				if rec.Handle == "" {
					continue
				}
				price, err := rec.Price.Float()
				if err != nil {
					logx.Warn().Str("handle", rec.Handle).Err(err).Msg("skipping record with bad price")
					continue
				}
				if category != "" && !matchesCategory(rec, category) {
					continue
				}
				if price < in.PriceMin || price > priceMax {
					continue
				}
				matched = append(matched, model.Product{
					Name:   rec.Title,
					Vendor: rec.Vendor,
					Handle: rec.Handle,
					Price:  price,
					Tags:   rec.Tags,
				})
			}

			maxResults := cfg.MaxResults
			if maxResults <= 0 {
				maxResults = 10
			}
			if len(matched) > maxResults {
				matched = matched[:maxResults]
			}

			// The session cache must mirror exactly what the customer is shown,
			// so it takes the truncated list, not the full match set.
			if cache, ok := session.CacheFrom(ctx); ok {
				cache.Replace(matched)
			} else {
				logx.Warn().Msg("filter ran without a session cache in context")
			}

			return &FilterProductsOutput{Products: matched, Total: len(matched)}, nil
		},
	)
}

// matchesCategory reports whether any of the category's terms appears in the
// record's joined tag list or title. Only tags and title count; a vendor name
// that happens to contain a category term does not make the record a match.
func matchesCategory(rec catalog.Record, category string) bool {
	terms := categoryTerms(category)
	tagsLower := strings.ToLower(strings.Join(rec.Tags, " "))
	titleLower := strings.ToLower(rec.Title)
	for _, term := range terms {
		if strings.Contains(tagsLower, term) || strings.Contains(titleLower, term) {
			return true
		}
	}
	return false
}
