package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIsIdempotent(t *testing.T) {
	r := NewResolver(nil)

	a := r.Resolve(PlatformDiscord, "123", "anubis_fan", "Anubis Fan", "room-1")
	b := r.Resolve(PlatformDiscord, "123", "anubis_fan", "Anubis Fan", "room-1")

	require.NotNil(t, a)
	assert.Equal(t, a.InternalID, b.InternalID)
	assert.Equal(t, PlatformDiscord, a.Platform)
	assert.Equal(t, "123", a.PlatformUserID)
}

func TestResolveDistinctPlatformsMintDistinctIdentities(t *testing.T) {
	r := NewResolver(nil)

	a := r.Resolve(PlatformDiscord, "123", "same_name", "", "")
	b := r.Resolve(PlatformTelegram, "123", "same_name", "", "")
	assert.NotEqual(t, a.InternalID, b.InternalID)
}

func TestResolveRefreshesObservationFields(t *testing.T) {
	r := NewResolver(nil)

	r.Resolve(PlatformTwitter, "t1", "old_handle", "Old Name", "")
	id := r.Resolve(PlatformTwitter, "t1", "new_handle", "New Name", "room-2")

	assert.Equal(t, "new_handle", id.PlatformUsername)
	assert.Equal(t, "New Name", id.DisplayName)
	assert.Equal(t, "room-2", id.RoomID)
	assert.False(t, id.LastSeen.Before(id.FirstSeen))
}

func TestLinkIdentitiesIsSymmetricAndDeduped(t *testing.T) {
	r := NewResolver(nil)
	a := r.Resolve(PlatformDiscord, "d1", "userA", "", "")
	b := r.Resolve(PlatformTwitter, "t1", "userA", "", "")

	r.LinkIdentities(a.InternalID, b.InternalID, 0.9, "username containment")
	r.LinkIdentities(b.InternalID, a.InternalID, 0.9, "username containment")

	fromA := r.GetLinkedIdentities(a.InternalID)
	fromB := r.GetLinkedIdentities(b.InternalID)
	require.Len(t, fromA, 1)
	require.Len(t, fromB, 1)
	assert.Equal(t, b.InternalID, fromA[0].InternalID)
	assert.Equal(t, a.InternalID, fromB[0].InternalID)
}

func TestLinkIdentitiesRejectsSelfAndEmpty(t *testing.T) {
	r := NewResolver(nil)
	a := r.Resolve(PlatformDiscord, "d1", "userA", "", "")

	r.LinkIdentities(a.InternalID, a.InternalID, 1, "self")
	r.LinkIdentities(a.InternalID, "", 1, "empty")
	assert.Empty(t, r.GetLinkedIdentities(a.InternalID))
}

func TestGetLinkedIdentitiesIsTransitive(t *testing.T) {
	r := NewResolver(nil)
	a := r.Resolve(PlatformDiscord, "d1", "userA", "", "")
	b := r.Resolve(PlatformTwitter, "t1", "userB", "", "")
	c := r.Resolve(PlatformTelegram, "g1", "userC", "", "")

	r.LinkIdentities(a.InternalID, b.InternalID, 0.9, "manual")
	r.LinkIdentities(b.InternalID, c.InternalID, 0.9, "manual")

	linked := r.GetLinkedIdentities(a.InternalID)
	require.Len(t, linked, 2)
	ids := []string{linked[0].InternalID, linked[1].InternalID}
	assert.Contains(t, ids, b.InternalID)
	assert.Contains(t, ids, c.InternalID)
}

func TestDetectPotentialLinksCrossPlatformOnly(t *testing.T) {
	r := NewResolver(nil)
	id := r.Resolve(PlatformDiscord, "d1", "anubis_dev", "", "")
	r.Resolve(PlatformDiscord, "d2", "anubis_dev", "", "") // same platform, ignored
	other := r.Resolve(PlatformTwitter, "t1", "anubis", "", "")

	candidates := r.DetectPotentialLinks(id)
	require.Len(t, candidates, 1)
	assert.Equal(t, other.InternalID, candidates[0].B)
	assert.Equal(t, 0.9, candidates[0].Confidence)
	assert.Equal(t, "username containment", candidates[0].Reason)
}

func TestDetectPotentialLinksIgnoresDissimilarNames(t *testing.T) {
	r := NewResolver(nil)
	id := r.Resolve(PlatformDiscord, "d1", "anubis_dev", "", "")
	r.Resolve(PlatformTwitter, "t1", "zzqqxxyy", "", "")

	assert.Empty(t, r.DetectPotentialLinks(id))
}

func TestSimilarityDisplayNameMatch(t *testing.T) {
	a := &Identity{DisplayName: "Anubis Dev", PlatformUsername: "completely_different"}
	b := &Identity{DisplayName: "anubis dev", PlatformUsername: "unrelated_handle9"}

	score, reason := similarity(a, b)
	assert.Equal(t, 0.8, score)
	assert.Equal(t, "display name match", reason)
}

func TestSimilarityEditDistance(t *testing.T) {
	a := &Identity{PlatformUsername: "anubis_dev"}
	b := &Identity{PlatformUsername: "anubis_rev"}

	score, reason := similarity(a, b)
	assert.Greater(t, score, 0.6)
	assert.Equal(t, "username similarity", reason)
}

func TestExtractFromEnvelopeDispatch(t *testing.T) {
	tg := ExtractFromEnvelope("telegram", map[string]any{
		"from": map[string]any{
			"id":         float64(42),
			"username":   "tg_user",
			"first_name": "Tee",
			"last_name":  "Gee",
		},
	})
	assert.Equal(t, PlatformTelegram, tg.Platform)
	assert.Equal(t, "42", tg.UserID)
	assert.Equal(t, "tg_user", tg.Username)
	assert.Equal(t, "Tee Gee", tg.DisplayName)

	dc := ExtractFromEnvelope("discord", map[string]any{
		"author": map[string]any{
			"id":          "999",
			"username":    "dc_user",
			"global_name": "DC User",
		},
	})
	assert.Equal(t, PlatformDiscord, dc.Platform)
	assert.Equal(t, "999", dc.UserID)

	tw := ExtractFromEnvelope("twitter", map[string]any{
		"user": map[string]any{
			"id_str":      "777",
			"screen_name": "tw_user",
			"name":        "Tw User",
		},
	})
	assert.Equal(t, PlatformTwitter, tw.Platform)
	assert.Equal(t, "777", tw.UserID)
	assert.Equal(t, "tw_user", tw.Username)
}

func TestExtractFromEnvelopeStructuralFallback(t *testing.T) {
	got := ExtractFromEnvelope("", map[string]any{
		"from": map[string]any{"id": float64(7), "username": "guessed"},
	})
	assert.Equal(t, PlatformTelegram, got.Platform)
	assert.Equal(t, "7", got.UserID)
}

func TestExtractFromEnvelopeUnknown(t *testing.T) {
	got := ExtractFromEnvelope("", nil)
	assert.Equal(t, PlatformUnknown, got.Platform)
	assert.Empty(t, got.UserID)
}
