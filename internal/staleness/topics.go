package staleness

import "strings"

// Coarse topic taxonomy. Substring matching only; this feeds repetition
// detection, not understanding.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"price", []string{"price", "pump", "dump", "chart", "ath", "dip"}},
	{"tech", []string{"code", "bug", "deploy", "rpc", "validator", "node"}},
	{"defi", []string{"defi", "yield", "stake", "liquidity", "swap", "farm"}},
	{"nft", []string{"nft", "mint", "collection", "floor"}},
	{"help", []string{"help", "how do i", "can't", "cant", "issue", "problem"}},
	{"greeting", []string{"hi", "hello", "hey", "gm", "sup", "yo"}},
	{"thanks", []string{"thank", "thx", "ty", "appreciate"}},
	{"crypto", []string{"crypto", "bitcoin", "btc", "eth", "sol", "token", "coin"}},
}

// ClassifyTopic returns the first matching topic tag, or "general".
func ClassifyTopic(text string) string {
	return classifyTopic(text)
}

func classifyTopic(text string) string {
	lower := strings.ToLower(text)
	for _, t := range topicKeywords {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.topic
			}
		}
	}
	return "general"
}

var shortAcks = map[string]bool{
	"hi": true, "ok": true, "k": true, "kk": true, "cool": true,
	"lol": true, "sup": true, "nice": true, "yo": true, "yes": true,
	"no": true, "yeah": true, "nah": true, "gm": true, "hey": true,
}

// isLowQuality flags very short messages and bare acknowledgments.
func isLowQuality(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < lowQualityLength {
		return true
	}
	return shortAcks[strings.ToLower(trimmed)]
}
