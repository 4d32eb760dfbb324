package constants

const (
	// Setting names accepted by `streaktoot settings`
	SettingInstance          = "instance"
	SettingLanguage          = "language"
	SettingDefaultVisibility = "default_visibility"
	SettingEmojiDone         = "emoji_done"
	SettingEmojiEmpty        = "emoji_empty"
	SettingEnableThreading   = "enable_threading"
	SettingTimezone          = "timezone"

	// Default Settings Values
	DefaultLanguage        = "en-us"
	FallbackLanguage       = "en-us"
	DefaultVisibility      = "public"
	DefaultEmojiDone       = "🔥"
	DefaultEmojiEmpty      = "⬜"
	DefaultEnableThreading = false
	DefaultTimezone        = "Local" // Use system local timezone by default
)
