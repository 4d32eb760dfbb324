package models

import (
	"strconv"

	"github.com/julianstephens/streaktoot/internal/constants"
)

// SettingsToMap converts the scalar fields of a Settings struct to a map of
// key-value pairs. Template overrides are not included.
func SettingsToMap(settings Settings) map[string]string {
	return map[string]string{
		constants.SettingInstance:          settings.Instance,
		constants.SettingLanguage:          settings.Language,
		constants.SettingDefaultVisibility: string(settings.DefaultVisibility),
		constants.SettingEmojiDone:         settings.EmojiDone,
		constants.SettingEmojiEmpty:        settings.EmojiEmpty,
		constants.SettingEnableThreading:   strconv.FormatBool(settings.EnableThreading),
		constants.SettingTimezone:          settings.Timezone,
	}
}

// ApplyDefaultSettings applies default values to missing settings.
func ApplyDefaultSettings(settings *Settings) {
	if settings.Language == "" {
		settings.Language = constants.DefaultLanguage
	}
	if !settings.DefaultVisibility.Valid() {
		settings.DefaultVisibility = Visibility(constants.DefaultVisibility)
	}
	if settings.EmojiDone == "" {
		settings.EmojiDone = constants.DefaultEmojiDone
	}
	if settings.EmojiEmpty == "" {
		settings.EmojiEmpty = constants.DefaultEmojiEmpty
	}
	if settings.Timezone == "" {
		settings.Timezone = constants.DefaultTimezone
	}
	if settings.Templates == nil {
		settings.Templates = map[string]string{}
	}
}

// DefaultSettings returns the settings of a freshly initialized store.
func DefaultSettings() Settings {
	settings := Settings{EnableThreading: constants.DefaultEnableThreading}
	ApplyDefaultSettings(&settings)
	return settings
}
