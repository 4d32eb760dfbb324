package constants

import "time"

const (
	AppName           = "streaktoot"
	Version           = "v0.3.0"
	DefaultConfigPath = "~/.config/streaktoot/streaktoot.db"
	DefaultConfigFile = "~/.config/streaktoot/config.toml"
	EnvPrefix         = "STREAKTOOT_"

	// Keyring entry holding the current access token
	DefaultKeyringUser = "access-token"

	// DateFormat is the calendar-day key format used for habit records (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Heatmap layout: 14 days rendered as two rows of 7
	HeatmapDays   = 14
	HeatmapRowLen = 7

	// Habit limits
	MaxHabits        = 10
	MaxShortcutSlots = 3

	// Shortcut actions
	ShortcutActionCheckIn  = "checkin"
	ShortcutActionOpenLink = "open-link"

	// OAuth application registration
	DefaultClientName  = "streaktoot"
	DefaultScopes      = "read:statuses write:statuses write:media"
	OOBRedirectURI     = "urn:ietf:wg:oauth:2.0:oob"
	FallbackInstance   = "https://example.social"
	DefaultHTTPTimeout = 30 * time.Second

	// Mastodon allows 300 requests per 5 minutes per account
	DefaultRateLimit = 1.0
	DefaultBurst     = 5

	// Persisted key-value store keys
	KeyHabits      = "habits"
	KeySettings    = "settings"
	KeyClients     = "clients"
	KeyAccessToken = "access_token"
)
