// Package normalize derives lookup variants of company names and the keys
// used to deduplicate leads across sources.
package normalize

import (
	"regexp"
	"strings"
)

var (
	nonNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Zs}&-]`)
	anySpace     = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// Variants returns the spellings of name to try against a lookup source,
// in order: the trimmed original, "&" spelled "and", hyphens as spaces,
// punctuation stripped, whitespace collapsed. Each variant is derived from
// the original independently. Duplicates are dropped keeping the first
// occurrence. Variants may be empty; callers skip those.
func Variants(name string) []string {
	orig := strings.TrimSpace(name)
	candidates := []string{
		orig,
		strings.ReplaceAll(orig, "&", "and"),
		strings.ReplaceAll(orig, "-", " "),
		nonNameChars.ReplaceAllString(orig, ""),
		anySpace.ReplaceAllString(orig, " "),
	}

	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// CollapseSpace trims s and folds runs of whitespace into single spaces.
func CollapseSpace(s string) string {
	return strings.TrimSpace(anySpace.ReplaceAllString(s, " "))
}
