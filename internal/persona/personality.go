package persona

import "strings"

// MaxTraitDelta bounds any single nudge so one message can never radically
// move the persona. Larger deltas are truncated, not rejected.
const MaxTraitDelta = 2.0

const driftAmplitude = 0.25

// ApplyDelta adds each delta to its named trait and clamps to [0,100].
// Unknown trait names are ignored; callers may report traits this persona
// does not carry.
func (s *State) ApplyDelta(deltas map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, d := range deltas {
		cur, ok := s.traits[name]
		if !ok {
			continue
		}
		if d > MaxTraitDelta {
			d = MaxTraitDelta
		}
		if d < -MaxTraitDelta {
			d = -MaxTraitDelta
		}
		s.traits[name] = clampTrait(cur + d)
	}
}

// DriftTick applies a small symmetric random perturbation to every trait.
// Run hourly so the persona wanders slowly over days, not per message.
func (s *State) DriftTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, v := range s.traits {
		s.traits[name] = clampTrait(v + (s.rng.Float64()*2-1)*driftAmplitude)
	}
}

// TraitSnapshot returns a read-only copy of all traits.
func (s *State) TraitSnapshot() PersonalitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(PersonalitySnapshot, len(s.traits))
	for k, v := range s.traits {
		out[k] = v
	}
	return out
}

// traitSignals maps message keywords to small trait deltas. Deltas stay well
// under MaxTraitDelta so personality shifts are gradual.
var traitSignals = []struct {
	keywords []string
	deltas   map[string]float64
}{
	{[]string{"sol", "solana", "phantom", "jupiter"}, map[string]float64{"solana_affinity": 0.5, "confidence": 0.1}},
	{[]string{"lol", "lmao", "meme", "haha"}, map[string]float64{"humor": 0.3, "meme_affinity": 0.4}},
	{[]string{"thank", "appreciate", "love this"}, map[string]float64{"empathy": 0.3, "community_pride": 0.2}},
	{[]string{"scam", "rug", "dump"}, map[string]float64{"sarcasm": 0.2, "contrarianism": 0.2}},
	{[]string{"why", "how", "explain"}, map[string]float64{"curiosity": 0.3, "openness": 0.1}},
}

// NudgeFromMessage derives trait deltas from message content and applies
// them. This is the per-message personality update stage of the pipeline.
func (s *State) NudgeFromMessage(text string) {
	lower := strings.ToLower(text)
	for _, sig := range traitSignals {
		for _, kw := range sig.keywords {
			if strings.Contains(lower, kw) {
				s.ApplyDelta(sig.deltas)
				break
			}
		}
	}
}
