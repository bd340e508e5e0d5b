package persona

import "strings"

// Decay behavior. Intensity never drops below the floor; once it crosses the
// reset threshold the mood returns to baseline.
const (
	intensityFloor  = 20.0
	resetThreshold  = 30.0
	decayStep       = 10.0
	maxTriggers     = 5
	triggerMaxChars = 60
)

// emotionTriggers maps each emotion to the keywords that fire it. First
// match wins; no match leaves the state untouched.
var emotionTriggers = []struct {
	emotion  Emotion
	keywords []string
}{
	{EmotionExcited, []string{"amazing", "bullish", "moon", "pump", "lfg", "huge", "incredible", "lets go"}},
	{EmotionFrustrated, []string{"broken", "scam", "rug", "down bad", "rekt", "trash", "awful", "hate"}},
	{EmotionCurious, []string{"why", "how does", "what if", "interesting", "wonder", "curious"}},
	{EmotionConfident, []string{"i told you", "called it", "knew it", "obviously", "easy"}},
	{EmotionContemplative, []string{"think about", "philosophy", "meaning", "long term", "reflect"}},
	{EmotionPlayful, []string{"lol", "lmao", "haha", "joke", "meme", "funny"}},
}

// UpdateEmotion scans text for trigger keywords. On the first match it sets
// the current emotion, rolls a fresh intensity in [60,100], and records a
// truncated trigger string. No match is a no-op, the mood persists.
func (s *State) UpdateEmotion(text string) {
	lower := strings.ToLower(text)

	for _, t := range emotionTriggers {
		for _, kw := range t.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			s.mu.Lock()
			s.emotion = t.emotion
			s.intensity = 60 + s.rng.Float64()*40
			trigger := text
			if runes := []rune(trigger); len(runes) > triggerMaxChars {
				trigger = string(runes[:triggerMaxChars])
			}
			s.triggers = append(s.triggers, trigger)
			if len(s.triggers) > maxTriggers {
				s.triggers = s.triggers[len(s.triggers)-maxTriggers:]
			}
			s.lastUpdate = s.now()
			s.mu.Unlock()
			return
		}
	}
}

// DecayTick reduces intensity by one step when the persistence window has
// elapsed without an update, floored at intensityFloor. Once intensity is at
// or below the reset threshold the mood returns to calm. Run on a timer.
func (s *State) DecayTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Sub(s.lastUpdate) <= s.persistence {
		return
	}
	s.intensity -= decayStep
	if s.intensity < intensityFloor {
		s.intensity = intensityFloor
	}
	if s.intensity <= resetThreshold {
		s.emotion = EmotionCalm
	}
}

// EmotionSnapshot returns an immutable copy of the emotional state.
func (s *State) EmotionSnapshot() EmotionalSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	triggers := make([]string, len(s.triggers))
	copy(triggers, s.triggers)
	return EmotionalSnapshot{
		Current:    s.emotion,
		Intensity:  s.intensity,
		Triggers:   triggers,
		LastUpdate: s.lastUpdate,
	}
}
