package entities

import "strings"

// Language is the translation target directive
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageChinese Language = "zh"
)

// Locale returns the speech synthesis locale for the language.
// Anything that is not English is spoken as Mandarin.
func (l Language) Locale() string {
	if l == LanguageEnglish {
		return "en-US"
	}
	return "zh-CN"
}

// Branch is the routing outcome of one turn
type Branch string

const (
	BranchChineseToEnglish Branch = "cn_to_en"
	BranchEnglishToChinese Branch = "en_to_cn"
	BranchUnrecognized     Branch = "unrecognized"
)

// ClassifyLanguage routes a free-text language label reported by the transcriber.
// Matching is a case-insensitive substring test and "chinese" wins over "english".
func ClassifyLanguage(label string) Branch {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "chinese"):
		return BranchChineseToEnglish
	case strings.Contains(l, "english"):
		return BranchEnglishToChinese
	default:
		return BranchUnrecognized
	}
}

// Target returns the language the branch translates into
func (b Branch) Target() (Language, bool) {
	switch b {
	case BranchChineseToEnglish:
		return LanguageEnglish, true
	case BranchEnglishToChinese:
		return LanguageChinese, true
	default:
		return "", false
	}
}

// SpeechCue asks the page to speak text aloud
type SpeechCue struct {
	Text   string   `json:"text"`
	Lang   Language `json:"lang"`
	Locale string   `json:"locale"`
}

// NewSpeechCue builds a cue with the locale resolved from lang
func NewSpeechCue(text string, lang Language) SpeechCue {
	return SpeechCue{
		Text:   text,
		Lang:   lang,
		Locale: lang.Locale(),
	}
}
