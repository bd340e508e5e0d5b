// Package identity maps platform-specific user identifiers to one internal
// identity and maintains a cross-platform link graph.
package identity

import "time"

// Platform is the message source a user was observed on.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
	PlatformUnknown  Platform = "unknown"
)

// Identity is one platform-scoped user record. (Platform, PlatformUserID)
// is unique; InternalID is the durable handle other records reference.
type Identity struct {
	InternalID       string            `json:"internal_id"`
	Platform         Platform          `json:"platform"`
	PlatformUserID   string            `json:"platform_user_id"`
	PlatformUsername string            `json:"platform_username"`
	DisplayName      string            `json:"display_name"`
	RoomID           string            `json:"room_id"`
	FirstSeen        time.Time         `json:"first_seen"`
	LastSeen         time.Time         `json:"last_seen"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Link is a bidirectional edge asserting two identities belong to the same
// person. Links are never auto-deleted.
type Link struct {
	A          string    `json:"a"`
	B          string    `json:"b"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the durable backend the resolver persists through. A nil store
// (or a failing one) degrades the resolver to in-memory-only operation.
type Store interface {
	GetIdentity(platform, platformUserID string) (*Identity, bool, error)
	SaveIdentity(*Identity) error
	SaveLink(Link) error
	LinksFor(internalID string) ([]Link, error)
	AllIdentities() ([]*Identity, error)
}
