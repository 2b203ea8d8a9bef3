package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and trims",
			input:    "  Hello World  ",
			expected: "hello world",
		},
		{
			name:     "collapses whitespace runs",
			input:    "order\t\tissue\n\nneed   help",
			expected: "order issue need help",
		},
		{
			name:     "empty input",
			input:    "   \n\t ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsStableKey(t *testing.T) {
	a := Normalize("Order Issue  I need HELP")
	b := Normalize("order issue i need help")
	assert.Equal(t, a, b)
}

func TestPreprocessStripsSignature(t *testing.T) {
	text := Preprocess("I cannot log in to my account. Best regards, Alice")
	assert.Equal(t, "i cannot log in to my account.", text)
	assert.NotContains(t, text, "alice")
}

func TestPreprocessCapsLength(t *testing.T) {
	long := strings.Repeat("a", 2000)
	assert.Len(t, Preprocess(long), maxTextLength)
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("order #123: won't arrive!")
	assert.Equal(t, []string{"order", "123", "won", "t", "arrive"}, tokens)
}
