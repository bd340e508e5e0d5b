package persona

import "time"

// Emotion is one of the named moods the persona can be in.
type Emotion string

const (
	EmotionCalm          Emotion = "calm" // baseline
	EmotionExcited       Emotion = "excited"
	EmotionFrustrated    Emotion = "frustrated"
	EmotionCurious       Emotion = "curious"
	EmotionConfident     Emotion = "confident"
	EmotionContemplative Emotion = "contemplative"
	EmotionPlayful       Emotion = "playful"
	EmotionAmused        Emotion = "amused"
)

// EmotionalSnapshot is an immutable copy of the emotional state for
// read-only consumption by the pipeline and response metadata.
type EmotionalSnapshot struct {
	Current    Emotion   `json:"current"`
	Intensity  float64   `json:"intensity"` // 0..100
	Triggers   []string  `json:"triggers"`
	LastUpdate time.Time `json:"last_update"`
}

// PersonalitySnapshot maps trait name to its value in [0,100].
type PersonalitySnapshot map[string]float64

// Default trait set. One persona shared across all rooms; values drift
// slowly and are nudged by conversation signals.
func defaultTraits() map[string]float64 {
	return map[string]float64{
		"openness":         70,
		"empathy":          65,
		"humor":            75,
		"sarcasm":          55,
		"confidence":       80,
		"curiosity":        72,
		"solana_affinity":  85,
		"community_pride":  68,
		"meme_affinity":    60,
		"contrarianism":    45,
	}
}
