package backend

import "strings"

// DefaultOverloadSignals are substrings that mark a transient backend-side
// overload in an error message. Matching is case-sensitive.
var DefaultOverloadSignals = []string{"RESOURCE_EXHAUSTED", "Quota", "overloaded", "503", "UNAVAILABLE"}

// Classifier matches error text against overload signals.
type Classifier struct {
	signals []string
}

// NewClassifier uses signals, or DefaultOverloadSignals when empty.
func NewClassifier(signals []string) Classifier {
	var keep []string
	for _, s := range signals {
		if s = strings.TrimSpace(s); s != "" {
			keep = append(keep, s)
		}
	}
	if len(keep) == 0 {
		keep = DefaultOverloadSignals
	}
	return Classifier{signals: keep}
}

// IsTransientOverload reports whether msg contains any signal.
func (c Classifier) IsTransientOverload(msg string) bool {
	for _, s := range c.signals {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
