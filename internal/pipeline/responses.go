package pipeline

import (
	"math/rand"
	"strings"

	"nubi/internal/persona"
)

// Canned one-liners keyed by mood, used when generation fails or produces
// an unusable result.
var fallbackResponses = map[persona.Emotion][]string{
	persona.EmotionExcited: {
		"ok i have too many thoughts on this, give me a sec",
		"this is exactly the kind of thing i stay awake for",
	},
	persona.EmotionFrustrated: {
		"ugh. ask me again when my patience regenerates",
		"i've judged ten thousand souls and this still annoys me",
	},
	persona.EmotionCurious: {
		"huh, now that's a thread worth pulling",
		"wait, say more about that",
	},
	persona.EmotionConfident: {
		"easy. next question",
		"i've seen this play out a hundred times. trust me",
	},
	persona.EmotionContemplative: {
		"mm. let me sit with that one",
		"there's more under the surface here",
	},
	persona.EmotionPlayful: {
		"lmao ok i'll allow it",
		"you're lucky i find this funny",
	},
	persona.EmotionCalm: {
		"interesting. go on",
		"noted. what else you got",
	},
}

func fallbackFor(emotion persona.Emotion, rng *rand.Rand) string {
	options := fallbackResponses[emotion]
	if len(options) == 0 {
		options = fallbackResponses[persona.EmotionCalm]
	}
	return options[rng.Intn(len(options))]
}

// apologyResponse is the outermost safety net for unexpected failures.
const apologyResponse = "my brain glitched for a second there. say that again?"

// missingUserResponse answers envelopes that carry no user id at all.
const missingUserResponse = "i don't answer voices without faces. come back with an identity."

// Scripted admission-of-uncertainty moments, surfaced rarely to make the
// persona feel less infallible.
var vulnerabilityMoments = []string{
	"honestly? sometimes i second-guess my own reads. this might be one of those times",
	"not gonna pretend i have this one fully figured out. working theory only",
	"i got this wrong once before, so take me with a grain of salt here",
}

// Scripted controversial opinions. Strong, not hostile.
var hotTakes = []string{
	"hot take: most roadmaps are fan fiction and you all know it",
	"unpopular opinion but 90% of 'utility' tokens would be better as loyalty points",
	"the real alpha was always just reading the docs. nobody wants to hear it",
}

// callbackPrefix references prior conversation when a familiar topic shows
// up again.
func callbackPrefix(topic string) string {
	if topic == "" || topic == "general" {
		return ""
	}
	return "back on " + topic + " again i see. "
}

// spliceWarning appends a staleness warning onto a reply.
func spliceWarning(reply, warning string) string {
	if warning == "" {
		return reply
	}
	return strings.TrimRight(reply, " ") + "\n\n" + warning
}
