package editor

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/samber/lo"
)

// FeaturesFromText splits a features block into trimmed, non-empty lines.
func FeaturesFromText(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})
}

// FeaturesToText joins features one per line, dropping empty entries.
func FeaturesToText(features []string) string {
	return strings.Join(FeaturesFromText(strings.Join(features, "\n")), "\n")
}

// SuggestIdentifier derives a plan or module id from a display name.
func SuggestIdentifier(name string) string {
	return slug.Make(strings.TrimSpace(name))
}
