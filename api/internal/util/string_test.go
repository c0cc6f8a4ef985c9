package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitMessageShort(t *testing.T) {
	assert.Equal(t, []string{"hi"}, SplitMessage("  hi \n", 10))
	assert.Nil(t, SplitMessage("   ", 10))
}

func TestSplitMessagePrefersParagraphs(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph"
	assert.Equal(t, []string{"first paragraph", "second paragraph"}, SplitMessage(text, 20))
}

func TestSplitMessageKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("é", 50)
	parts := SplitMessage(text, 7)
	assert.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 7)
		assert.True(t, utf8.ValidString(p))
	}
	assert.Equal(t, text, strings.Join(parts, ""))
}
