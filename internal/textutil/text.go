// Package textutil holds the text processing rules shared by the storage and
// clip layers: cleaning, similarity, titles, language detection and metadata.
package textutil

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	spaceRunRegex   = regexp.MustCompile(`[ \t\f\v]+`)
	sentenceRegex   = regexp.MustCompile(`[.!?]+`)
)

// Language codes returned by DetectLanguage.
const (
	LanguageKorean  = "ko"
	LanguageEnglish = "en"
)

const (
	// TitleMaxChars is the longest title GenerateTitle returns verbatim.
	TitleMaxChars = 50

	minSentenceChars = 20
	ellipsis         = "..."
	wordsPerMinute   = 200
)

// Clean collapses runs of spaces and tabs inside each line to one space,
// drops blank lines and trims both ends. Line breaks and leading indentation
// are kept so markdown structure survives.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\f\v\r")
		if line == "" {
			continue
		}
		body := strings.TrimLeft(line, " \t")
		indent := line[:len(line)-len(body)]
		kept = append(kept, indent+spaceRunRegex.ReplaceAllString(body, " "))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// CollapseSpace turns every run of whitespace, line breaks included, into a
// single space and trims both ends. Titles and names use it.
func CollapseSpace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CountChars returns the character count as runes (not bytes).
func CountChars(s string) int {
	return utf8.RuneCountInString(s)
}

// WordCount returns the number of whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ReadingTime returns the estimated reading time in minutes at 200 words per
// minute, rounded up.
func ReadingTime(words int) int {
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

// WordSet returns the set of lowercase whitespace-separated words in s.
func WordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Similarity returns the Jaccard similarity of the word sets of a and b.
// Two texts with no words have similarity 0.
func Similarity(a, b string) float64 {
	return Jaccard(WordSet(a), WordSet(b))
}

// Jaccard returns |a ∩ b| / |a ∪ b| for precomputed word sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// GenerateTitle derives a title from text:
// short texts are used verbatim; otherwise the first sentence when it has at
// least 20 characters (cut to 50 with an ellipsis); otherwise as many whole
// words as fit in 47 characters followed by "...".
func GenerateTitle(text string) string {
	text = CollapseSpace(text)
	if CountChars(text) <= TitleMaxChars {
		return text
	}

	if first := strings.TrimSpace(sentenceRegex.Split(text, 2)[0]); CountChars(first) >= minSentenceChars {
		if CountChars(first) > TitleMaxChars {
			return Truncate(first, TitleMaxChars-len(ellipsis)) + ellipsis
		}
		return first
	}

	budget := TitleMaxChars - len(ellipsis)
	var b strings.Builder
	for _, word := range strings.Fields(text) {
		n := CountChars(b.String()) + CountChars(word)
		if b.Len() > 0 {
			n++
		}
		if n > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		return b.String() + ellipsis
	}
	return Truncate(text, TitleMaxChars) + ellipsis
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// KoreanRatioThreshold is the Hangul fraction above which text counts as Korean.
const KoreanRatioThreshold = 0.3

// DetectLanguage returns LanguageKorean when more than 30% of the characters
// are Hangul syllables, else LanguageEnglish.
func DetectLanguage(text string) string {
	total, hangul := 0, 0
	for _, r := range text {
		total++
		if r >= 0xAC00 && r <= 0xD7A3 {
			hangul++
		}
	}
	if total > 0 && float64(hangul)/float64(total) > KoreanRatioThreshold {
		return LanguageKorean
	}
	return LanguageEnglish
}

// NormalizeTags lowercases and trims tags, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Dedupe removes empty and repeated strings, keeping first-seen order.
func Dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
