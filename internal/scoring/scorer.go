// Package scoring maps a single turn to a lexical relevance score in [0,1].
// The heuristics are deliberately simple: a handful of additive bonuses over
// a flat base, no I/O, no model calls.
package scoring

import (
	"strings"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// Scoring weights. The base applies to every turn; bonuses stack and the
// result is clamped to 1.0.
const (
	Base          = 0.5
	QuestionBonus = 0.20 // contains "?" or opens with an interrogative word
	CodeBonus     = 0.15 // fenced code block or function/class tokens
	TroubleBonus  = 0.10 // mentions error/problem/issue
	LengthBonus   = 0.10 // more than LongTurnChars characters
	RoleBonus     = 0.05 // assistant turns

	// LongTurnChars is the length above which a turn earns LengthBonus.
	LongTurnChars = 200
)

// interrogatives are the opening words that mark a turn as a question even
// without a question mark.
var interrogatives = []string{"what", "how", "why", "when", "who"}

// troubleTerms mark a turn as describing a problem.
var troubleTerms = []string{"error", "problem", "issue"}

// Score computes the importance of a turn. It is pure and deterministic:
// identical input always yields an identical, finite result in [0,1].
func Score(t memory.Turn) float64 {
	score := Base
	lower := strings.ToLower(t.Content)

	if isQuestion(lower) {
		score += QuestionBonus
	}
	if hasCode(lower) {
		score += CodeBonus
	}
	if containsAny(lower, troubleTerms) {
		score += TroubleBonus
	}
	if len(t.Content) > LongTurnChars {
		score += LengthBonus
	}
	if t.Role == memory.RoleAssistant {
		score += RoleBonus
	}

	return memory.ClampScore(score)
}

func isQuestion(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	trimmed := strings.TrimSpace(lower)
	for _, w := range interrogatives {
		if strings.HasPrefix(trimmed, w+" ") || trimmed == w {
			return true
		}
	}
	return false
}

func hasCode(lower string) bool {
	return strings.Contains(lower, "```") ||
		strings.Contains(lower, "function") ||
		strings.Contains(lower, "class")
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
