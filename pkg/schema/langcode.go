package schema

import "strings"

// knownLanguageCodes is the set of ISO 639-1 codes the translation-suffix
// parser recognizes. A suffix outside this set is not a language variant.
var knownLanguageCodes = map[string]string{
	"ar": "Arabic",
	"bg": "Bulgarian",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"fa": "Persian",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sv": "Swedish",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// SplitTranslationName parses a translation field name of the form
// "<base>_<langCode>". It returns the base name and language code, with
// ok=false when the name carries no recognized language suffix.
func SplitTranslationName(name string) (base, lang string, ok bool) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	suffix := name[idx+1:]
	if _, known := knownLanguageCodes[suffix]; !known {
		return "", "", false
	}
	return name[:idx], suffix, true
}

// LanguageName returns the English display name for a language code, or the
// code itself when unknown.
func LanguageName(code string) string {
	if name, ok := knownLanguageCodes[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

// Languages returns the distinct language codes present across the schema's
// translation fields, in first-seen field order. This is the tab set the form
// engine renders.
func (s Schema) Languages() []string {
	var (
		out  []string
		seen = map[string]struct{}{}
	)
	for _, f := range s.Fields {
		if !f.IsTranslation {
			continue
		}
		_, lang, ok := SplitTranslationName(f.Name)
		if !ok {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out
}
