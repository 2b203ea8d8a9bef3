package classifier

import (
	"strings"
	"unicode"
)

// signatureMarkers are common sign-off phrases; everything from the first
// marker onward carries no classification signal.
var signatureMarkers = []string{
	"best regards", "sincerely", "thanks", "thank you",
	"regards", "cheers", "yours truly", "yours sincerely",
}

const maxTextLength = 512

// Normalize produces the stable key for a text: trimmed, lowercased,
// with runs of whitespace collapsed to single spaces. This is the
// deduplication key for the training corpus.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}

// Preprocess prepares a text for the model: normalization plus signature
// stripping and a length cap.
func Preprocess(text string) string {
	text = Normalize(text)

	for _, marker := range signatureMarkers {
		if idx := strings.Index(text, marker); idx >= 0 {
			text = strings.TrimSpace(text[:idx])
			break
		}
	}

	if len(text) > maxTextLength {
		text = text[:maxTextLength]
	}
	return text
}

// Tokenize splits a preprocessed text into lowercase word tokens.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
