package services

import (
	"fmt"
	"strings"
	"time"
)

// User-facing texts. name is the personality's display label.

func AnswerText(name, answer string) string {
	return fmt.Sprintf("🔮 **%s**: %s", name, answer)
}

func CachedAnswerText(name, answer string) string {
	return AnswerText(name, answer) + " *(from memory)*"
}

func CooldownText(name string, remaining time.Duration) string {
	total := int(remaining / time.Second)
	return fmt.Sprintf("⏳ %s: Patience. %dm %ds remain.", name, total/60, total%60)
}

func LimitText(name string, resetIn time.Duration) string {
	h, m, s := SplitHMS(resetIn)
	return fmt.Sprintf("⏳ **%s**: That’s today’s limit.\nCome back in %dh %dm %ds.", name, h, m, s)
}

func StatusText(name string, remaining int, resetIn time.Duration) string {
	h, m, _ := SplitHMS(resetIn)
	return fmt.Sprintf("✨ **%s**\nYou’ve got **%d** requests left today\nReset in **%dh %dm**", name, remaining, h, m)
}

func OverloadText(name string) string {
	return fmt.Sprintf("⚠️ **%s**: Things are moving too fast right now.\nTry again in a sec.", name)
}

func ErrorText(name string, err error) string {
	return fmt.Sprintf("❌ **%s Error**:\n```%s```", name, err.Error())
}

func DeliveryNoticeText(name string) string {
	return fmt.Sprintf("❌ **%s** hit an error after generating a response.", name)
}

func UnknownPersonalityText(name string, valid []string) string {
	quoted := make([]string, len(valid))
	for i, v := range valid {
		quoted[i] = "`" + v + "`"
	}
	return fmt.Sprintf("❌ Personality `%s` not found. Available: %s", name, strings.Join(quoted, ", "))
}

// SplitHMS splits d into whole hours, minutes and seconds, truncating.
func SplitHMS(d time.Duration) (h, m, s int) {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return total / 3600, total % 3600 / 60, total % 60
}
