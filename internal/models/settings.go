package models

// Settings is the user configuration snapshot passed into each core operation.
type Settings struct {
	Instance          string            `json:"instance"`            // normalized origin, e.g. "https://mastodon.social"
	Language          string            `json:"language"`            // template language, e.g. "en-us"
	DefaultVisibility Visibility        `json:"default_visibility"`  // visibility preselected for new threads
	EmojiDone         string            `json:"emoji_done"`          // heatmap glyph for a done day
	EmojiEmpty        string            `json:"emoji_empty"`         // heatmap glyph for a missed day
	EnableThreading   bool              `json:"enable_threading"`    // publish through the API instead of the share page
	Templates         map[string]string `json:"templates,omitempty"` // per-language user template overrides
	Timezone          string            `json:"timezone"`            // IANA timezone name or "Local"
}
