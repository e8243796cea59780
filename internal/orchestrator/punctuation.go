package orchestrator

import (
	"strings"
	"unicode"

	"github.com/voicebridge/sttcoord/internal/codec"
)

// applyPunctuation post-processes engine output text according to the
// Producer-configured punctuation mode (spec §3, §9). "auto" passes the
// engine's own punctuation through unchanged; "none" strips it; "sentence"
// strips it and reapplies a single capitalised-leading-letter,
// period-terminated form.
func applyPunctuation(mode codec.PunctuationMode, text string) string {
	switch mode {
	case codec.PunctuationNone:
		return stripPunctuation(text)
	case codec.PunctuationSentence:
		return sentenceCase(stripPunctuation(text))
	default:
		return text
	}
}

func stripPunctuation(text string) string {
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(".,!?;:", r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func sentenceCase(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return trimmed
	}
	runes := []rune(trimmed)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes) + "."
}
