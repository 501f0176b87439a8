package assemble

import (
	"math"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// DefaultTokensPerChar is the fixed chars-to-tokens heuristic. It is a crude
// approximation tuned for English prose; non-English or code-heavy content
// will be over- or under-estimated, and callers must treat the result as an
// estimate, never a guarantee.
const DefaultTokensPerChar = 0.75

// Estimator estimates the token count of a string.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens as a fixed ratio of character count,
// rounded up so content is never under-reserved.
type CharEstimator struct {
	TokensPerChar float64
}

// NewCharEstimator creates a CharEstimator. A non-positive ratio falls back
// to DefaultTokensPerChar.
func NewCharEstimator(tokensPerChar float64) *CharEstimator {
	if tokensPerChar <= 0 {
		tokensPerChar = DefaultTokensPerChar
	}
	return &CharEstimator{TokensPerChar: tokensPerChar}
}

// Estimate returns the estimated token count for the given text.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(text)) * e.TokensPerChar))
}

// EstimateTurns sums the estimated tokens of the turns' content.
func EstimateTurns(e Estimator, turns []memory.Turn) int {
	total := 0
	for i := range turns {
		total += e.Estimate(turns[i].Content)
	}
	return total
}

// EstimatePins sums the estimated tokens of the pins' content.
func EstimatePins(e Estimator, pins []memory.Pin) int {
	total := 0
	for i := range pins {
		total += e.Estimate(pins[i].Content)
	}
	return total
}

// EstimateSummaries sums the estimated tokens of the summaries' content.
func EstimateSummaries(e Estimator, summaries []memory.Summary) int {
	total := 0
	for i := range summaries {
		total += e.Estimate(summaries[i].Content)
	}
	return total
}
