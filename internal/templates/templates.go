// Package templates renders check-in post text from per-language templates.
package templates

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/julianstephens/streaktoot/internal/constants"
	"github.com/julianstephens/streaktoot/internal/models"
	"github.com/julianstephens/streaktoot/internal/streak"
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Defaults holds the built-in template for every supported language.
var Defaults = map[string]string{
	"zh-cn": "关于 {topic} 的最新嘟嘟 ✨\n连续记录第 {streak} 天！\n{heatmap}\n\n由 streaktoot 发送，可在设置中修改这段模板。",
	"zh-tw": "關於 {topic} 的最新嘟嘟 ✨\n連續記錄第 {streak} 天！\n{heatmap}\n\n由 streaktoot 發送，可在設定中修改這段範本。",
	"en-us": "Latest update on {topic} ✨\nDay {streak} of my streak!\n{heatmap}\n\nSent via streaktoot. Customize this template with `streaktoot settings`.",
	"jp":    "{topic} についてのアップデート ✨\n現在 {streak} 日連続で更新中！\n{heatmap}\n\nstreaktoot から送信。テンプレートは設定で変更できます。",
}

var languageAliases = map[string]string{
	"en":    "en-us",
	"en-gb": "en-us",
	"en-au": "en-us",
	"ja":    "jp",
	"ja-jp": "jp",
	"zh":    "zh-cn",
	"zh-sg": "zh-cn",
	"zh-hk": "zh-tw",
	"zh-mo": "zh-tw",
}

// Context is the set of values available to a template.
type Context struct {
	Topic   string
	Streak  int
	Best    int
	Total   int
	Heatmap string
}

func (c Context) lookup(name string) (string, bool) {
	switch name {
	case "topic":
		return c.Topic, true
	case "streak":
		return fmt.Sprint(c.Streak), true
	case "best":
		return fmt.Sprint(c.Best), true
	case "total":
		return fmt.Sprint(c.Total), true
	case "heatmap":
		return c.Heatmap, true
	}
	return "", false
}

// Render substitutes every {name} placeholder with its context value.
// Placeholders without a value are left verbatim.
func Render(tmpl string, ctx Context) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		if value, ok := ctx.lookup(match[1 : len(match)-1]); ok {
			return value
		}
		return match
	})
}

// Select picks the template for a post. A non-blank per-habit custom template
// wins, then a non-blank user override for the language, then the built-in
// default for the language, then the built-in default of the fallback
// language.
func Select(custom string, userTemplates map[string]string, language string, defaults map[string]string) string {
	if strings.TrimSpace(custom) != "" {
		return custom
	}
	if tmpl := userTemplates[language]; strings.TrimSpace(tmpl) != "" {
		return tmpl
	}
	if tmpl, ok := defaults[language]; ok {
		return tmpl
	}
	return defaults[constants.FallbackLanguage]
}

// Languages returns the supported language codes in display order.
func Languages() []string {
	return []string{"en-us", "zh-cn", "zh-tw", "jp"}
}

// NormalizeLanguage maps a language tag to a supported template language.
// Unknown tags map to the fallback language.
func NormalizeLanguage(tag string) string {
	if lang, ok := LookupLanguage(tag); ok {
		return lang
	}
	return constants.FallbackLanguage
}

// LookupLanguage resolves a language tag or one of its aliases. The second
// result is false when no template language matches.
func LookupLanguage(tag string) (string, bool) {
	lang := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(tag, "_", "-")))
	if _, ok := Defaults[lang]; ok {
		return lang, true
	}
	if alias, ok := languageAliases[lang]; ok {
		return alias, true
	}
	if i := strings.Index(lang, "-"); i > 0 {
		if alias, ok := languageAliases[lang[:i]]; ok {
			return alias, true
		}
	}
	return "", false
}

// BuildPostText renders the check-in text of h as of asOf using the template
// precedence of Select. It does not mutate h.
func BuildPostText(h models.Habit, settings models.Settings, asOf time.Time) string {
	records := h.Records
	if records == nil {
		records = models.Records{}
	}
	current := streak.Compute(records, asOf)
	best := h.BestStreak
	if current > best {
		best = current
	}

	ctx := Context{
		Topic:   h.Title,
		Streak:  current,
		Best:    best,
		Total:   records.Total(),
		Heatmap: streak.HeatmapText(records, asOf, settings.EmojiDone, settings.EmojiEmpty),
	}
	lang := NormalizeLanguage(settings.Language)
	return Render(Select(h.CustomTemplate, settings.Templates, lang, Defaults), ctx)
}
