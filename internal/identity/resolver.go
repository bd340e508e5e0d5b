package identity

import (
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// usernameSimilarityThreshold is the minimum score for a candidate link.
const usernameSimilarityThreshold = 0.6

// containmentConfidence is assigned when one username contains the other.
const containmentConfidence = 0.9

// Resolver caches identities in memory and persists through Store. Storage
// failures degrade to in-memory operation; they never block resolution.
type Resolver struct {
	mu         sync.RWMutex
	store      Store
	byPlatform map[string]*Identity // "platform:userID" -> identity
	byInternal map[string]*Identity
	links      map[string][]Link // in-memory mirror of the edge list
	now        func() time.Time
}

// NewResolver creates a resolver over store. store may be nil for pure
// in-memory operation (tests, degraded startup).
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:      store,
		byPlatform: make(map[string]*Identity),
		byInternal: make(map[string]*Identity),
		links:      make(map[string][]Link),
		now:        time.Now,
	}
}

func platformKey(p Platform, userID string) string {
	return string(p) + ":" + userID
}

// Resolve returns the canonical identity for (platform, platformUserID),
// checking cache, then storage, then minting a new record. Observation
// fields (username, display name, last seen) refresh on every call.
func (r *Resolver) Resolve(platform Platform, platformUserID, username, displayName, roomID string) *Identity {
	key := platformKey(platform, platformUserID)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.byPlatform[key]
	if id == nil && r.store != nil {
		stored, found, err := r.store.GetIdentity(string(platform), platformUserID)
		if err != nil {
			log.Warn().Err(err).Str("platform", string(platform)).Msg("identity store lookup failed, running in-memory")
		} else if found {
			id = stored
		}
	}

	if id == nil {
		id = &Identity{
			InternalID:     uuid.NewString(),
			Platform:       platform,
			PlatformUserID: platformUserID,
			FirstSeen:      now,
			Metadata:       map[string]string{},
		}
	}

	id.PlatformUsername = username
	id.DisplayName = displayName
	if roomID != "" {
		id.RoomID = roomID
	}
	id.LastSeen = now

	r.byPlatform[key] = id
	r.byInternal[id.InternalID] = id

	if r.store != nil {
		if err := r.store.SaveIdentity(id); err != nil {
			log.Warn().Err(err).Str("internal_id", id.InternalID).Msg("identity persist failed")
		}
	}
	return id
}

// LinkIdentities records a bidirectional edge between two internal IDs.
// Duplicate edges (in either direction) are ignored.
func (r *Resolver) LinkIdentities(a, b string, confidence float64, reason string) {
	if a == "" || b == "" || a == b {
		return
	}
	link := Link{A: a, B: b, Confidence: confidence, Reason: reason, CreatedAt: r.now()}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links[a] {
		if (l.A == a && l.B == b) || (l.A == b && l.B == a) {
			return
		}
	}
	r.links[a] = append(r.links[a], link)
	r.links[b] = append(r.links[b], link)

	if r.store != nil {
		if err := r.store.SaveLink(link); err != nil {
			log.Warn().Err(err).Msg("identity link persist failed")
		}
	}
}

// GetLinkedIdentities walks the link graph breadth-first and returns every
// identity transitively reachable from internalID (excluding itself).
func (r *Resolver) GetLinkedIdentities(internalID string) []*Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := map[string]bool{internalID: true}
	queue := []string{internalID}
	var out []*Identity

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, l := range r.linksOfLocked(cur) {
			next := l.A
			if next == cur {
				next = l.B
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
			if id := r.byInternal[next]; id != nil {
				out = append(out, id)
			}
		}
	}
	return out
}

func (r *Resolver) linksOfLocked(internalID string) []Link {
	if links, ok := r.links[internalID]; ok {
		return links
	}
	if r.store == nil {
		return nil
	}
	links, err := r.store.LinksFor(internalID)
	if err != nil {
		return nil
	}
	return links
}

// DetectPotentialLinks compares the identity's username and display name
// against all identities on other platforms and returns candidate links
// above the similarity threshold. Candidates are not auto-confirmed.
func (r *Resolver) DetectPotentialLinks(id *Identity) []Link {
	if id == nil {
		return nil
	}
	others := r.allIdentities()

	var candidates []Link
	for _, other := range others {
		if other.Platform == id.Platform || other.InternalID == id.InternalID {
			continue
		}
		if score, reason := similarity(id, other); score > 0 {
			candidates = append(candidates, Link{
				A:          id.InternalID,
				B:          other.InternalID,
				Confidence: score,
				Reason:     reason,
				CreatedAt:  r.now(),
			})
		}
	}
	return candidates
}

func (r *Resolver) allIdentities() []*Identity {
	r.mu.RLock()
	cached := make([]*Identity, 0, len(r.byInternal))
	seen := make(map[string]bool, len(r.byInternal))
	for _, id := range r.byInternal {
		cached = append(cached, id)
		seen[id.InternalID] = true
	}
	store := r.store
	r.mu.RUnlock()

	if store != nil {
		stored, err := store.AllIdentities()
		if err == nil {
			for _, id := range stored {
				if !seen[id.InternalID] {
					cached = append(cached, id)
				}
			}
		}
	}
	return cached
}

// similarity scores two identities: exact display-name match and username
// containment are high confidence; otherwise normalized edit distance above
// the threshold qualifies.
func similarity(a, b *Identity) (float64, string) {
	ua := strings.ToLower(strings.TrimSpace(a.PlatformUsername))
	ub := strings.ToLower(strings.TrimSpace(b.PlatformUsername))

	if a.DisplayName != "" && strings.EqualFold(a.DisplayName, b.DisplayName) {
		return 0.8, "display name match"
	}
	if ua != "" && ub != "" {
		if strings.Contains(ua, ub) || strings.Contains(ub, ua) {
			return containmentConfidence, "username containment"
		}
		dist := levenshtein.ComputeDistance(ua, ub)
		maxLen := len(ua)
		if len(ub) > maxLen {
			maxLen = len(ub)
		}
		if maxLen > 0 {
			score := 1 - float64(dist)/float64(maxLen)
			if score > usernameSimilarityThreshold {
				return score, "username similarity"
			}
		}
	}
	return 0, ""
}
