package summarize

import (
	"fmt"
	"strings"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// Validation limits for locally-generated summaries.
const (
	// MaxSummaryChars is the hard length ceiling for an accepted summary.
	MaxSummaryChars = 300

	// MaxLengthRatio is the maximum accepted ratio between summary length
	// and source length. A "summary" nearly as long as its source is not
	// a summary.
	MaxLengthRatio = 0.30

	// MinWordOverlap is the minimum fraction of distinct summary words
	// that must also appear in the source. Below it, the model almost
	// certainly generated new content instead of summarizing.
	MinWordOverlap = 0.10
)

// nonSummaryOpeners mark text that starts like a reply or a creative piece
// rather than a summary.
var nonSummaryOpeners = []string{
	"here's",
	"here is",
	"certainly",
	"i'll create",
	"title:",
	"once upon",
}

// Rule is one named rejection predicate. Reject returns true when the
// candidate must be discarded in favor of the deterministic fallback.
type Rule struct {
	Name   string
	Reject func(summary, source string) bool
}

// Rules is the ordered list of rejection predicates applied to
// locally-generated summaries. The first match wins.
var Rules = []Rule{
	{
		Name: "too_long",
		Reject: func(summary, _ string) bool {
			return len(summary) > MaxSummaryChars
		},
	},
	{
		Name: "length_ratio",
		Reject: func(summary, source string) bool {
			if len(source) == 0 {
				return false
			}
			return float64(len(summary))/float64(len(source)) > MaxLengthRatio
		},
	},
	{
		Name: "non_summary_pattern",
		Reject: func(summary, _ string) bool {
			lower := strings.ToLower(strings.TrimSpace(summary))
			for _, opener := range nonSummaryOpeners {
				if strings.HasPrefix(lower, opener) {
					return true
				}
			}
			return strings.Contains(summary, "```")
		},
	},
	{
		Name: "low_overlap",
		Reject: func(summary, source string) bool {
			return wordOverlap(summary, source) < MinWordOverlap
		},
	},
}

// Validate applies the rejection rules in order to a locally-generated
// summary. Returns nil on acceptance, or an error wrapping
// memory.ErrInvalidSummary that names the matched rule.
func Validate(summary, source string) error {
	for _, rule := range Rules {
		if rule.Reject(summary, source) {
			return fmt.Errorf("%w: %s", memory.ErrInvalidSummary, rule.Name)
		}
	}
	return nil
}

// wordOverlap returns the fraction of distinct words in the summary that
// also occur in the source. An empty summary overlaps nothing.
func wordOverlap(summary, source string) float64 {
	summaryWords := distinctWords(summary)
	if len(summaryWords) == 0 {
		return 0
	}

	sourceWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(source)) {
		sourceWords[trimWord(w)] = struct{}{}
	}

	matched := 0
	for w := range summaryWords {
		if _, ok := sourceWords[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(summaryWords))
}

func distinctWords(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if t := trimWord(w); t != "" {
			words[t] = struct{}{}
		}
	}
	return words
}

// trimWord strips surrounding punctuation so "password." matches "password".
func trimWord(w string) string {
	return strings.Trim(w, ".,;:!?'\"()[]")
}
