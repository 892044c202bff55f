package domain

const (
	titleMaxRunes   = 80
	summaryMaxRunes = 140

	placeholderTitle  = "(no subject)"
	defaultNextAction = "Review the message and decide how to respond."
	ellipsis          = "…"
)

// Draft is the pre-persistence shape of a derived task.
type Draft struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	NextAction string `json:"next_action"`
}

// DeriveDraft builds a task draft from message content. The title
// prefers the subject, falls back to the snippet, then to a fixed
// placeholder. Truncation is rune-based so multi-byte text is never
// cut mid-character.
func DeriveDraft(subject, snippet string) Draft {
	title := truncateRunes(subject, titleMaxRunes)
	if title == "" {
		title = truncateRunes(snippet, titleMaxRunes)
	}
	if title == "" {
		title = placeholderTitle
	}

	return Draft{
		Title:      title,
		Summary:    truncateRunes(snippet, summaryMaxRunes),
		NextAction: defaultNextAction,
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + ellipsis
}
