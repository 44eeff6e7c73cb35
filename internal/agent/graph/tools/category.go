package tools

import "strings"

// productCategory maps a family of customer phrasings onto the tag the
// catalog uses for that family. The table is ordered: the first category
// whose term appears in the keyword wins, so "phone charger" resolves to
// mobile rather than accessory.
type productCategory struct {
	tag   string
	terms []string
}

var categories = []productCategory{
	{tag: "mobile", terms: []string{"mobile", "phone", "smartphone", "android", "iphone"}},
	{tag: "laptop", terms: []string{"laptop", "notebook", "macbook", "ultrabook"}},
	{tag: "tablet", terms: []string{"tablet", "ipad"}},
	{tag: "accessory", terms: []string{"charger", "cable", "earbuds", "headphones"}},
}

// DetectCategory resolves a free-text keyword to a catalog category tag via
// substring match. An empty string means no category matched and the keyword
// should be treated as a plain text query.
func DetectCategory(keyword string) string {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return ""
	}
	for _, cat := range categories {
		for _, term := range cat.terms {
			if strings.Contains(kw, term) {
				return cat.tag
			}
		}
	}
	return ""
}

// categoryTerms returns the phrasing list for a detected category tag.
func categoryTerms(tag string) []string {
	for _, cat := range categories {
		if cat.tag == tag {
			return cat.terms
		}
	}
	return nil
}
