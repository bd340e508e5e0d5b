package identity

import "fmt"

// Extracted is what platform envelopes yield before resolution.
type Extracted struct {
	Platform    Platform
	UserID      string
	Username    string
	DisplayName string
}

// ExtractFromEnvelope pulls user fields from a platform message envelope.
// source disambiguates when present; otherwise the envelope's structural
// shape decides (Telegram carries "from", Discord an "author" object,
// Twitter a "user"/"screen_name" author).
func ExtractFromEnvelope(source string, metadata map[string]any) Extracted {
	switch Platform(source) {
	case PlatformTwitter:
		return extractTwitter(metadata)
	case PlatformTelegram:
		return extractTelegram(metadata)
	case PlatformDiscord:
		return extractDiscord(metadata)
	}

	if _, ok := metadata["from"]; ok {
		return extractTelegram(metadata)
	}
	if _, ok := metadata["author"]; ok {
		return extractDiscord(metadata)
	}
	if _, ok := metadata["user"]; ok {
		return extractTwitter(metadata)
	}
	return Extracted{Platform: PlatformUnknown}
}

func extractTwitter(metadata map[string]any) Extracted {
	author := subMap(metadata, "user")
	return Extracted{
		Platform:    PlatformTwitter,
		UserID:      str(author, "id_str", "id"),
		Username:    str(author, "screen_name", "username"),
		DisplayName: str(author, "name"),
	}
}

func extractTelegram(metadata map[string]any) Extracted {
	from := subMap(metadata, "from")
	display := str(from, "first_name")
	if last := str(from, "last_name"); last != "" {
		display += " " + last
	}
	return Extracted{
		Platform:    PlatformTelegram,
		UserID:      str(from, "id"),
		Username:    str(from, "username"),
		DisplayName: display,
	}
}

func extractDiscord(metadata map[string]any) Extracted {
	author := subMap(metadata, "author")
	display := str(author, "global_name")
	if member := subMap(metadata, "member"); member != nil {
		if nick := str(member, "nick"); nick != "" {
			display = nick
		}
	}
	return Extracted{
		Platform:    PlatformDiscord,
		UserID:      str(author, "id"),
		Username:    str(author, "username"),
		DisplayName: display,
	}
}

func subMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

// str returns the first non-empty string value among keys, stringifying
// numeric IDs (Telegram sends them as numbers).
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case int64:
			return fmt.Sprintf("%d", v)
		}
	}
	return ""
}
