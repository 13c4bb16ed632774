package clip

import (
	"strings"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

// Length thresholds for the long and short tags, in characters.
const (
	LongTextChars  = 500
	ShortTextChars = 100
)

// TagKeywords are added as tags when they occur anywhere in the text,
// ignoring case.
var TagKeywords = []string{"code", "javascript", "python", "api", "tutorial", "guide", "tip"}

// AutoTags derives tags from a clip's text and source: the source itself,
// "ai" for AI chat sources, "long" or "short" by length, and every
// TagKeywords entry found in the text.
func AutoTags(text string, source domain.Source) []string {
	tags := []string{string(source)}
	if source.IsAI() {
		tags = append(tags, "ai")
	}

	n := textutil.CountChars(text)
	switch {
	case n > LongTextChars:
		tags = append(tags, "long")
	case n < ShortTextChars:
		tags = append(tags, "short")
	}

	lower := strings.ToLower(text)
	for _, kw := range TagKeywords {
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
		}
	}
	return textutil.NormalizeTags(tags)
}
