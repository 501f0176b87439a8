package summarize

import (
	"strings"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// cloudPrompt is the instruction used with hosted models, which can be
// trusted to follow a loose brief. Up to ~200 words.
const cloudPrompt = `You summarize conversations for long-term memory.
Write a concise summary of the conversation below in at most 200 words.
Capture the topics discussed, decisions made, and any facts about the user
worth remembering. Write in the third person. Do not add commentary.`

// localPrompt is the stricter, example-anchored instruction used with small
// local models, which tend to produce new creative content (poems, stories,
// code) instead of summarizing when given latitude.
const localPrompt = `You are a summarizer. Your ONLY job is to compress the
conversation below into 1-2 plain sentences.

Rules:
- Summarize ONLY. Do not invent content.
- Do not write poems, stories, code, or titles.
- Do not address the user.

Example input:
user: how do I reset my password
assistant: Open settings and choose "Reset password".

Example output:
The user asked how to reset their password and was pointed to the settings page.

Now summarize:`

// renderTurns flattens a turn window into the role-prefixed transcript fed
// to the generator and used as the validation source text.
func renderTurns(turns []memory.Turn) string {
	var b strings.Builder
	for i := range turns {
		b.WriteString(string(turns[i].Role))
		b.WriteString(": ")
		b.WriteString(turns[i].Content)
		b.WriteString("\n")
	}
	return b.String()
}
