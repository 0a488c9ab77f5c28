package agent

import "strings"

// HistoryWindow is the number of buffered turns included in a prompt.
const HistoryWindow = 8

const (
	humanLabel = "Human"
	agentLabel = "AM"
)

// FormatHistory renders up to the last HistoryWindow turns as labeled lines.
// Labels alternate by position, starting with the human.
func FormatHistory(turns []string) string {
	if len(turns) > HistoryWindow {
		turns = turns[len(turns)-HistoryWindow:]
	}
	var b strings.Builder
	for i, turn := range turns {
		label := humanLabel
		if i%2 == 1 {
			label = agentLabel
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(turn)
		b.WriteByte('\n')
	}
	return b.String()
}

// BuildPrompt assembles persona, history and the new input, ending on an
// open agent turn for the model to complete.
func BuildPrompt(persona string, history []string, input string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(FormatHistory(history))
	b.WriteString(humanLabel + ": ")
	b.WriteString(input)
	b.WriteString("\n" + agentLabel + ":")
	return b.String()
}
