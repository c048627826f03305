package router

import "strings"

// Vocab is the small fixed keyword vocabulary the router recognizes before
// anything else runs: wizard trigger, affirmations, negations.
type Vocab struct {
	Trigger []string
	Confirm []string
	Cancel  []string
}

// DefaultVocab matches how the operators actually type.
func DefaultVocab() Vocab {
	return Vocab{
		Trigger: []string{"cierre", "/cierre"},
		Confirm: []string{"si", "sí", "ok", "dale", "confirmo", "listo"},
		Cancel:  []string{"no", "cancelar", "cancela", "anular"},
	}
}

// IsTrigger reports whether text starts the wizard.
func (v Vocab) IsTrigger(text string) bool { return matchesAny(text, v.Trigger) }

// IsConfirm reports whether text is an affirmative token.
func (v Vocab) IsConfirm(text string) bool { return matchesAny(text, v.Confirm) }

// IsCancel reports whether text is a negative token.
func (v Vocab) IsCancel(text string) bool { return matchesAny(text, v.Cancel) }

// matchesAny compares the whole cleaned message against the vocabulary, so
// "ok" inside a longer sentence is not misread as confirmation.
func matchesAny(text string, words []string) bool {
	cleaned := cleanToken(text)
	if cleaned == "" {
		return false
	}
	for _, w := range words {
		if cleaned == w {
			return true
		}
	}
	return false
}

func cleanToken(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(s, "¡!¿?.,;: ")
}
