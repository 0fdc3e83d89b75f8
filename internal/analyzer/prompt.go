package analyzer

import (
	"fmt"
	"strings"
)

// buildPrompt composes the transcript-classification instruction.
//
// The model is told to return a single JSON object with exactly the
// AnalysisResult fields and nothing else; the parser still defends against
// prose or code-fence wrapping.
func buildPrompt(transcript string, durationSeconds int, agentName string) string {
	var b strings.Builder
	b.WriteString("You are reviewing the transcript of a phone call")
	if agentName != "" {
		b.WriteString(fmt.Sprintf(" handled by an AI agent named %q", agentName))
	}
	b.WriteString(".\n")
	if durationSeconds > 0 {
		b.WriteString(fmt.Sprintf("The call lasted %d seconds.\n", durationSeconds))
	}
	b.WriteString(`Respond with a single JSON object and nothing else: no prose,
no markdown, no code fences. Use exactly these keys:
- "sentiment": "positive", "negative" or "neutral"
- "summary": one or two sentences describing the call
- "callerName": the caller's name if they stated it, else null
- "topics": up to 5 short topic strings discussed on the call
- "status": "completed", "missed" or "failed" - your judgment of how the call ended
- "notes": anything a human reviewer should follow up on, else ""

Transcript:
`)
	b.WriteString(transcript)
	return b.String()
}
