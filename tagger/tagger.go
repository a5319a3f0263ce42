package tagger

import (
	"regexp"
	"sort"
	"strings"
)

// wordPattern matches word tokens of five or more characters. Shorter words
// are almost never useful as tags.
var wordPattern = regexp.MustCompile(`\b\w{5,}\b`)

// stopwords are long filler words that survive the length filter.
var stopwords = map[string]struct{}{
	"about":     {},
	"which":     {},
	"their":     {},
	"would":     {},
	"could":     {},
	"should":    {},
	"therefore": {},
	"however":   {},
}

// ExtractTags derives up to max keyword tags from the article title and
// summary by frequency. Ranking is stable: ties keep first-encountered
// order, so identical input always yields identical output.
func ExtractTags(title, summary string, max int) []string {
	text := strings.ToLower(title + " " + summary)
	words := wordPattern.FindAllString(text, -1)

	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if _, skip := stopwords[w]; skip {
			continue
		}
		if _, seen := counts[w]; !seen {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if max > 0 && len(order) > max {
		order = order[:max]
	}
	return order
}
