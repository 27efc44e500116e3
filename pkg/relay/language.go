package relay

import "strings"

// SupportedLanguages maps supported ISO 639 codes to display names.
var SupportedLanguages = map[string]string{
	"en":    "English",
	"es":    "Spanish",
	"fr":    "French",
	"de":    "German",
	"it":    "Italian",
	"pt":    "Portuguese",
	"ru":    "Russian",
	"zh":    "Chinese (Simplified)",
	"zh-TW": "Chinese (Traditional)",
	"yue":   "Cantonese",
	"ja":    "Japanese",
	"ko":    "Korean",
	"ar":    "Arabic",
	"hi":    "Hindi",
	"id":    "Indonesian",
	"ms":    "Malay",
	"vi":    "Vietnamese",
	"ur":    "Urdu",
	"nl":    "Dutch",
	"sv":    "Swedish",
	"no":    "Norwegian",
	"da":    "Danish",
	"fi":    "Finnish",
	"pl":    "Polish",
	"tr":    "Turkish",
}

// FlagToLanguage maps country flag emoji to target language codes.
var FlagToLanguage = map[string]string{
	"🇺🇸": "en", "🇬🇧": "en", "🇦🇺": "en",
	"🇪🇸": "es", "🇲🇽": "es", "🇦🇷": "es",
	"🇫🇷": "fr", "🇨🇦": "fr",
	"🇩🇪": "de",
	"🇮🇹": "it",
	"🇵🇹": "pt", "🇧🇷": "pt",
	"🇷🇺": "ru",
	"🇨🇳": "zh",
	"🇹🇼": "zh-TW",
	"🇭🇰": "yue",
	"🇯🇵": "ja",
	"🇰🇷": "ko",
	"🇸🇦": "ar",
	"🇮🇳": "hi",
	"🇮🇩": "id",
	"🇲🇾": "ms",
	"🇻🇳": "vi",
	"🇵🇰": "ur",
	"🇳🇱": "nl",
	"🇸🇪": "sv",
	"🇳🇴": "no",
	"🇩🇰": "da",
	"🇫🇮": "fi",
	"🇵🇱": "pl",
	"🇹🇷": "tr",
}

// IsSupportedLanguage reports whether code is a recognized target language.
func IsSupportedLanguage(code string) bool {
	_, ok := SupportedLanguages[code]

	return ok
}

// EffectiveTargetLang remaps regional target codes that the translation
// backends handle better as their generic form. Traditional Chinese is sent
// as generic "zh".
func EffectiveTargetLang(target string) string {
	if target == "zh-TW" {
		return "zh"
	}

	return target
}

// PrimarySubtag returns the primary language subtag of code ("pt-BR" -> "pt").
func PrimarySubtag(code string) string {
	primary, _, _ := strings.Cut(code, "-")

	return primary
}

// SameLanguage reports whether source and target are effectively the same
// language, compared by primary subtag. Requests between same languages skip
// the remote call entirely.
func SameLanguage(source, target string) bool {
	if source == "" || target == "" {
		return false
	}

	return PrimarySubtag(source) == PrimarySubtag(EffectiveTargetLang(target))
}
