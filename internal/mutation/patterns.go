package mutation

import "strings"

// registry returns the full transform set in a stable order so a seeded rng
// selects deterministically.
func registry() []namedMutation {
	return []namedMutation{
		{"typo_injection", mutTypo},
		{"colloquialism", mutColloquialism},
		{"punctuation_variance", mutPunctuation},
		{"tone_drift", mutToneDrift},
		{"contradiction_softener", mutContradiction},
		{"emotional_marker", mutEmotionalMarker},
		{"clause_prefix", mutClausePrefix},
		{"vague_qualifier", mutVagueQualifier},
		{"trailing_truncation", mutTruncation},
		{"case_shuffle", mutCaseShuffle},
		{"letter_stretch", mutLetterStretch},
		{"apostrophe_drop", mutApostropheDrop},
		{"ellipsis_pause", mutEllipsisPause},
		{"trailing_thought", mutTrailingThought},
		{"hedge_suffix", mutHedgeSuffix},
		{"interjection_prefix", mutInterjection},
	}
}

// typoTable only swaps function words so content tokens always survive.
var typoTable = map[string]string{
	"the":   "teh",
	"and":   "adn",
	"that":  "taht",
	"with":  "wiht",
	"just":  "jsut",
	"about": "aobut",
	"have":  "ahve",
}

// mutTypo swaps one function word for its fat-fingered form. Needs more than
// three words to have somewhere safe to land.
func mutTypo(e *Engine, text string, _ *Context) string {
	words := strings.Fields(text)
	if len(words) <= 3 {
		return text
	}
	var candidates []int
	for i, w := range words {
		if _, ok := typoTable[strings.ToLower(w)]; ok {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return text
	}
	idx := candidates[e.intn(len(candidates))]
	words[idx] = typoTable[strings.ToLower(words[idx])]
	return strings.Join(words, " ")
}

var colloquialisms = [][2]string{
	{"going to", "gonna"},
	{"want to", "wanna"},
	{"got to", "gotta"},
	{"kind of", "kinda"},
	{"sort of", "sorta"},
	{"don't know", "dunno"},
	{"let me", "lemme"},
	{"because", "cuz"},
}

func mutColloquialism(_ *Engine, text string, _ *Context) string {
	lower := strings.ToLower(text)
	for _, pair := range colloquialisms {
		if idx := strings.Index(lower, pair[0]); idx >= 0 {
			return text[:idx] + pair[1] + text[idx+len(pair[0]):]
		}
	}
	return text
}

// mutPunctuation repeats terminal emphasis or drops a lone final period.
func mutPunctuation(e *Engine, text string, _ *Context) string {
	trimmed := strings.TrimRight(text, " ")
	switch {
	case strings.HasSuffix(trimmed, "!!") || strings.HasSuffix(trimmed, "??"):
		return trimmed // already emphatic
	case strings.HasSuffix(trimmed, "!"):
		return trimmed + "!"
	case strings.HasSuffix(trimmed, "?"):
		return trimmed + "?"
	case strings.HasSuffix(trimmed, ".") && !strings.HasSuffix(trimmed, "..."):
		if e.intn(2) == 0 {
			return strings.TrimSuffix(trimmed, ".")
		}
		return trimmed
	default:
		return trimmed
	}
}

// mutToneDrift lowercases everything, the classic can't-be-bothered register.
func mutToneDrift(_ *Engine, text string, _ *Context) string {
	return strings.ToLower(text)
}

// mutContradiction adds a self-correcting softener without changing the
// claim itself.
func mutContradiction(_ *Engine, text string, _ *Context) string {
	if strings.Contains(text, "well, ") {
		return text
	}
	return "well, " + text
}

// mutEmotionalMarker appends a marker matching the current intensity.
func mutEmotionalMarker(_ *Engine, text string, ctx *Context) string {
	if strings.HasSuffix(text, "🔥") || strings.HasSuffix(text, "lol") {
		return text
	}
	if ctx != nil && ctx.Intensity() >= 70 {
		return text + " 🔥"
	}
	return text + " lol"
}

func mutClausePrefix(_ *Engine, text string, _ *Context) string {
	if strings.HasPrefix(text, "actually wait, ") {
		return text
	}
	return "actually wait, " + text
}

var vagueQualifiers = []string{"i think ", "pretty sure ", "if i had to guess, "}

func mutVagueQualifier(e *Engine, text string, _ *Context) string {
	lower := strings.ToLower(text)
	for _, q := range vagueQualifiers {
		if strings.HasPrefix(lower, q) {
			return text
		}
	}
	return vagueQualifiers[e.intn(len(vagueQualifiers))] + text
}

// mutTruncation trails off the final clause with an ellipsis instead of a
// clean stop.
func mutTruncation(_ *Engine, text string, _ *Context) string {
	trimmed := strings.TrimRight(text, " ")
	if strings.HasSuffix(trimmed, "...") {
		return trimmed
	}
	trimmed = strings.TrimRight(trimmed, ".!?")
	return trimmed + "..."
}

// mutCaseShuffle drops the leading capital. Humans rarely bother.
func mutCaseShuffle(_ *Engine, text string, _ *Context) string {
	if text == "" {
		return text
	}
	r := []rune(text)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] = r[0] + ('a' - 'A')
	}
	return string(r)
}

var stretchable = []string{"so", "no", "yes", "really"}

// mutLetterStretch stretches one small word ("so" -> "sooo").
func mutLetterStretch(_ *Engine, text string, _ *Context) string {
	words := strings.Fields(text)
	for i, w := range words {
		lw := strings.ToLower(w)
		for _, s := range stretchable {
			if lw == s {
				last := w[len(w)-1]
				words[i] = w + strings.Repeat(string(last), 2)
				return strings.Join(words, " ")
			}
		}
	}
	return text
}

func mutApostropheDrop(_ *Engine, text string, _ *Context) string {
	return strings.ReplaceAll(text, "'", "")
}

// mutEllipsisPause turns the first comma into a thinking pause.
func mutEllipsisPause(_ *Engine, text string, _ *Context) string {
	if idx := strings.Index(text, ", "); idx >= 0 {
		return text[:idx] + "... " + text[idx+2:]
	}
	return text
}

func mutTrailingThought(_ *Engine, text string, _ *Context) string {
	if strings.HasSuffix(text, "anyway") {
		return text
	}
	return text + ". anyway"
}

var hedges = []string{" or something", " idk", " probably"}

func mutHedgeSuffix(e *Engine, text string, _ *Context) string {
	for _, h := range hedges {
		if strings.HasSuffix(text, h) {
			return text
		}
	}
	trimmed := strings.TrimRight(text, ".!?")
	return trimmed + hedges[e.intn(len(hedges))]
}

func mutInterjection(_ *Engine, text string, _ *Context) string {
	if strings.HasPrefix(text, "ngl, ") {
		return text
	}
	return "ngl, " + text
}
