package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one product payload as the catalog stores it. Fields mirror the
// upstream commerce payload, so price and tags arrive in whatever shape the
// source emitted; decoding is tolerant and validation happens at scan time.
type Record struct {
	Title  string    `json:"title"`
	Handle string    `json:"handle"`
	Vendor string    `json:"vendor"`
	Price  FlexPrice `json:"price"`
	Tags   FlexTags  `json:"tags"`
}

// Store is the read/write contract the agent depends on. Scroll returns up to
// limit records in a deterministic scan order; callers never assume more.
type Store interface {
	Scroll(ctx context.Context, limit int) ([]Record, error)
	Upsert(ctx context.Context, rec Record) error
	Delete(ctx context.Context, handle string) error
}

// FlexPrice holds a price that may arrive as a JSON number or string.
type FlexPrice string

func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*p = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = FlexPrice(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = FlexPrice(n.String())
	return nil
}

// Float parses the price into a number. An empty or malformed price is an
// error for the record at hand, never for the whole scan.
func (p FlexPrice) Float() (float64, error) {
	s := strings.TrimSpace(string(p))
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return v, nil
}

// FlexTags holds tags that may arrive as a JSON array or as a single
// comma-separated string (the commerce webhook payload uses the latter).
type FlexTags []string

func (t *FlexTags) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*t = nil
		return nil
	}
	if trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = splitTags(s)
	return nil
}

func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
