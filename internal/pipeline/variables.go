package pipeline

import (
	"strings"
	"time"

	"nubi/internal/identity"
)

// extractVariables builds the template variable set for one message: who is
// talking, when, what the market mood looks like, and how familiar they are.
func extractVariables(msg *InboundMessage, id *identity.Identity, priorMessages int, now time.Time) map[string]string {
	vars := map[string]string{
		"platform":  msg.Content.Source,
		"timeOfDay": timeOfDay(now),
		"market":    marketMood(msg.Content.Text),
	}

	if id != nil {
		name := id.DisplayName
		if name == "" {
			name = id.PlatformUsername
		}
		vars["userName"] = name
	}

	switch {
	case priorMessages >= 50:
		vars["relationship"] = "regular"
	case priorMessages >= 10:
		vars["relationship"] = "familiar"
	default:
		vars["relationship"] = "new"
	}

	return vars
}

func timeOfDay(now time.Time) string {
	switch h := now.Hour(); {
	case h < 6:
		return "late night"
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

var bullishWords = []string{"pump", "moon", "ath", "bullish", "up only", "rally"}
var bearishWords = []string{"dump", "crash", "rug", "bearish", "capitulation", "down bad"}

func marketMood(text string) string {
	lower := strings.ToLower(text)
	for _, w := range bullishWords {
		if strings.Contains(lower, w) {
			return "bullish"
		}
	}
	for _, w := range bearishWords {
		if strings.Contains(lower, w) {
			return "bearish"
		}
	}
	return "sideways"
}

// renderTemplate substitutes {{var}} placeholders from the variable set.
// Unknown placeholders are left intact.
func renderTemplate(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
