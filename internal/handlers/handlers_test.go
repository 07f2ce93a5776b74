package handlers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageShortTextStaysWhole(t *testing.T) {
	chunks := splitMessage("короткий ответ", 4000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "короткий ответ", chunks[0])
}

func TestSplitMessagePrefersLineBreaks(t *testing.T) {
	para := strings.Repeat("пункт договора\n", 300)
	chunks := splitMessage(para, 4000)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 4000)
		assert.True(t, strings.HasSuffix(c, "пункт договора"))
	}
}

func TestSplitMessageNeverCutsInsideRune(t *testing.T) {
	// Cyrillic runes are two bytes wide; the ASCII prefix puts every rune on
	// an odd byte offset, so the fallback cut at 4000 lands mid-rune and has
	// to back off to a boundary
	text := "x" + strings.Repeat("ю", 4101)
	chunks := splitMessage(text, 4000)
	require.Greater(t, len(chunks), 1)

	var rebuilt strings.Builder
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, len(c), 4000)
		rebuilt.WriteString(c)
	}
	assert.Equal(t, text, rebuilt.String())
}
