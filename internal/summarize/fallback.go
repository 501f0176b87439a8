package summarize

import (
	"fmt"
	"strings"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// maxFallbackTags caps the number of topic tags in a fallback summary.
const maxFallbackTags = 3

// excerptChars is the prefix length quoted from the first and last turn when
// no topic tag matches.
const excerptChars = 30

// topicRule maps keyword matches across a turn window to a coarse topic tag.
type topicRule struct {
	tag      string
	keywords []string
}

// topicRules is scanned in fixed order; the first maxFallbackTags matches
// become the fallback tags.
var topicRules = []topicRule{
	{tag: "database", keywords: []string{"database", "sql"}},
	{tag: "poetry", keywords: []string{"poem", "poetry"}},
	{tag: "code", keywords: []string{"code", "function", "program"}},
	{tag: "troubleshooting", keywords: []string{"error", "bug", "problem"}},
	{tag: "medication", keywords: []string{"medication", "prescription"}},
	{tag: "appointments", keywords: []string{"appointment", "schedule"}},
}

// Fallback produces a deterministic summary of a turn window without any
// external generation. It never fails: either coarse topic tags extracted by
// keyword match, or literal excerpts of the first and last turn.
func Fallback(turns []memory.Turn) string {
	n := len(turns)
	if n == 0 {
		return "Conversation with 0 messages."
	}

	if tags := extractTags(turns); len(tags) > 0 {
		return fmt.Sprintf("Conversation with %d messages about: %s.", n, strings.Join(tags, ", "))
	}

	return fmt.Sprintf("Conversation with %d messages. Started: '%s...' Recent: '%s...'",
		n, excerpt(turns[0].Content), excerpt(turns[n-1].Content))
}

func extractTags(turns []memory.Turn) []string {
	var b strings.Builder
	for i := range turns {
		b.WriteString(strings.ToLower(turns[i].Content))
		b.WriteString("\n")
	}
	text := b.String()

	var tags []string
	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				tags = append(tags, rule.tag)
				break
			}
		}
		if len(tags) >= maxFallbackTags {
			break
		}
	}
	return tags
}

func excerpt(s string) string {
	if len(s) > excerptChars {
		return s[:excerptChars]
	}
	return s
}
