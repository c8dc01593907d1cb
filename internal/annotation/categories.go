package annotation

import "strings"

// Category keywords used to map wiki categories onto the browser's own set.
var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{"health", []string{"medical", "medicine", "disease", "condition", "syndrome", "cancer",
		"cardiovascular", "diabetes", "alzheimer", "parkinson", "autoimmune"}},
	{"traits", []string{"trait", "phenotype", "appearance", "physical", "eye", "hair", "skin",
		"taste", "smell", "metabolism"}},
	{"intelligence", []string{"cognition", "cognitive", "intelligence", "memory", "learning",
		"brain", "neurological", "psychiatric", "mental"}},
	{"ancestry", []string{"ancestry", "population", "haplogroup", "ethnic", "geographic"}},
}

// MapCategories maps free-form wiki categories onto health, traits,
// intelligence and ancestry, in order of first appearance.
func MapCategories(wikiCategories []string) []string {
	var out []string
	have := make(map[string]bool)
	for _, wc := range wikiCategories {
		lc := strings.ToLower(wc)
		for _, cat := range categoryKeywords {
			if have[cat.name] {
				continue
			}
			for _, kw := range cat.keywords {
				if strings.Contains(lc, kw) {
					have[cat.name] = true
					out = append(out, cat.name)
					break
				}
			}
		}
	}
	return out
}
