package question

import "strings"

// MatchesCategory is the loose, case-insensitive label match used by hosts:
// exact, "<target> ..." prefix, or substring.
func MatchesCategory(label, target string) bool {
	if label == "" {
		return false
	}
	l := strings.ToLower(label)
	t := strings.ToLower(target)
	return l == t || strings.HasPrefix(l, t+" ") || strings.Contains(l, t)
}

// FilterByCategory keeps the questions whose label loosely matches target.
func FilterByCategory(qs []Question, target string) []Question {
	var out []Question
	for _, q := range qs {
		if MatchesCategory(q.Category, target) {
			out = append(out, q)
		}
	}
	return out
}

// CategoryAffinity reports how many questions look like they belong to target.
// Upstream category ids are trusted, so this only feeds diagnostics.
func CategoryAffinity(qs []Question, target string) int {
	t := strings.ToLower(target)
	n := 0
	for _, q := range qs {
		l := strings.ToLower(q.Category)
		if l == "" {
			continue
		}
		switch t {
		case "technology":
			if strings.Contains(l, "computer") || strings.Contains(l, "tech") {
				n++
			}
		case "entertainment":
			if strings.Contains(l, "entertainment") {
				n++
			}
		default:
			bare := stripCategoryPrefix(l)
			if strings.Contains(bare, t) || strings.Contains(t, bare) || strings.Contains(l, t) {
				n++
			}
		}
	}
	return n
}
