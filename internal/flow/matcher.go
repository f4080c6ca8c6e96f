package flow

import (
	"sort"
	"strings"

	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// MatchError scans the configured rules in order and returns the resolution
// of the first rule whose pattern is a case-insensitive substring of the
// reported text. The boolean distinguishes "no match" from an empty
// resolution. First-registered rule wins even when a later rule would match
// a longer portion of the input.
func MatchError(rules []models.ErrorRule, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		if strings.Contains(lower, strings.ToLower(rule.Pattern)) {
			return rule.Resolution, true
		}
	}
	return "", false
}

// SuggestResources returns "keyword: url" lines for every configured
// resource whose keyword appears in the text, case-insensitive. Keywords are
// checked in sorted order so output is deterministic.
func SuggestResources(resources map[string]string, text string) []string {
	lower := strings.ToLower(text)

	keywords := make([]string, 0, len(resources))
	for keyword := range resources {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	var matched []string
	for _, keyword := range keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			matched = append(matched, keyword+": "+resources[keyword])
		}
	}
	return matched
}
