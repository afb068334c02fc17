package speech

import (
	"strings"

	"golang.org/x/text/language"
)

const fallbackLanguageCode = "en-US"

// LanguageCode derives the BCP-47 language code from a cloud TTS voice name,
// which leads with its language and region ("ja-JP-Neural2-B" speaks ja-JP).
func LanguageCode(voice string) string {
	parts := strings.Split(strings.TrimSpace(voice), "-")
	if len(parts) < 2 {
		return fallbackLanguageCode
	}
	tag, err := language.Parse(parts[0] + "-" + parts[1])
	if err != nil {
		return fallbackLanguageCode
	}
	return tag.String()
}
