// /internal/storage/storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keshon/datastore"

	"nubi/internal/identity"
)

const interactionHistoryLimit = 50

// Storage wraps the JSON datastore with persona-domain records: the identity
// graph and per-room interaction history.
type Storage struct {
	ds *datastore.DataStore
}

// InteractionRecord is one processed exchange, persisted per room.
type InteractionRecord struct {
	UserID          string    `json:"user_id"`
	Text            string    `json:"text"`
	Reply           string    `json:"reply"`
	Topics          []string  `json:"topics,omitempty"`
	AppliedPatterns []string  `json:"applied_patterns,omitempty"`
	Emotion         string    `json:"emotion"`
	Datetime        time.Time `json:"datetime"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func identityKey(platform, platformUserID string) string {
	return "identity:" + platform + ":" + platformUserID
}

const identityIndexKey = "identity:index"

// decode round-trips a datastore value (stored as any, reloaded as generic
// JSON) into a typed record.
func decode(data any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshalling data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("error unmarshalling record: %w", err)
	}
	return nil
}

// GetIdentity returns the stored record for (platform, platformUserID).
func (s *Storage) GetIdentity(platform, platformUserID string) (*identity.Identity, bool, error) {
	data, exists := s.ds.Get(identityKey(platform, platformUserID))
	if !exists {
		return nil, false, nil
	}
	var rec identity.Identity
	if err := decode(data, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// SaveIdentity upserts the record and maintains the identity index used by
// link detection scans.
func (s *Storage) SaveIdentity(rec *identity.Identity) error {
	if rec == nil {
		return fmt.Errorf("nil identity record")
	}
	key := identityKey(string(rec.Platform), rec.PlatformUserID)
	s.ds.Add(key, rec)

	index, err := s.identityIndex()
	if err != nil {
		return err
	}
	for _, k := range index {
		if k == key {
			return nil
		}
	}
	s.ds.Add(identityIndexKey, append(index, key))
	return nil
}

func (s *Storage) identityIndex() ([]string, error) {
	data, exists := s.ds.Get(identityIndexKey)
	if !exists {
		return nil, nil
	}
	var index []string
	if err := decode(data, &index); err != nil {
		return nil, err
	}
	return index, nil
}

// AllIdentities returns every stored identity record.
func (s *Storage) AllIdentities() ([]*identity.Identity, error) {
	index, err := s.identityIndex()
	if err != nil {
		return nil, err
	}
	out := make([]*identity.Identity, 0, len(index))
	for _, key := range index {
		data, exists := s.ds.Get(key)
		if !exists {
			continue
		}
		var rec identity.Identity
		if err := decode(data, &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

func linksKey(internalID string) string {
	return "links:" + internalID
}

// SaveLink persists the edge on both endpoints. Duplicate links are ignored.
func (s *Storage) SaveLink(link identity.Link) error {
	for _, id := range []string{link.A, link.B} {
		existing, err := s.LinksFor(id)
		if err != nil {
			return err
		}
		dup := false
		for _, l := range existing {
			if (l.A == link.A && l.B == link.B) || (l.A == link.B && l.B == link.A) {
				dup = true
				break
			}
		}
		if !dup {
			s.ds.Add(linksKey(id), append(existing, link))
		}
	}
	return nil
}

// LinksFor returns all edges touching internalID.
func (s *Storage) LinksFor(internalID string) ([]identity.Link, error) {
	data, exists := s.ds.Get(linksKey(internalID))
	if !exists {
		return nil, nil
	}
	var links []identity.Link
	if err := decode(data, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func interactionsKey(roomID string) string {
	return "interactions:" + roomID
}

// AddInteraction appends a processed exchange to the room history, keeping
// the most recent interactionHistoryLimit entries.
func (s *Storage) AddInteraction(roomID string, rec InteractionRecord) error {
	history, err := s.Interactions(roomID)
	if err != nil {
		return err
	}
	history = append(history, rec)
	if len(history) > interactionHistoryLimit {
		history = history[len(history)-interactionHistoryLimit:]
	}
	s.ds.Add(interactionsKey(roomID), history)
	return nil
}

// Interactions returns the room's interaction history, oldest first.
func (s *Storage) Interactions(roomID string) ([]InteractionRecord, error) {
	data, exists := s.ds.Get(interactionsKey(roomID))
	if !exists {
		return nil, nil
	}
	var history []InteractionRecord
	if err := decode(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// UserMessageCount counts prior messages from userID in the room. Feeds the
// community-member classification.
func (s *Storage) UserMessageCount(roomID, userID string) int {
	history, err := s.Interactions(roomID)
	if err != nil {
		return 0
	}
	count := 0
	for _, rec := range history {
		if rec.UserID == userID {
			count++
		}
	}
	return count
}
