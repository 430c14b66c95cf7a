package keyword

import "strings"

var stripChars = strings.NewReplacer("'", "", "’", "", "-", "")

// OverlapRatio is the fraction of keywords occurring as substrings of the
// lowercased title and abstract with apostrophes and hyphens removed. An
// empty keyword set matches everything.
func OverlapRatio(keywords Set, title, abstract string) float64 {
	if len(keywords) == 0 {
		return 1.0
	}
	text := stripChars.Replace(strings.ToLower(title + " " + abstract))
	hit := 0
	for kw := range keywords {
		if strings.Contains(text, kw) {
			hit++
		}
	}
	return float64(hit) / float64(len(keywords))
}
