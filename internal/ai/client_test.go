package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaultModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")

	c := NewClient()
	assert.Equal(t, "gpt-4o-mini", c.model)
	assert.False(t, c.Configured())
}

func TestNewClientModelOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	c := NewClient()
	assert.Equal(t, "gpt-4o", c.model)
	assert.True(t, c.Configured())
}

func TestUnconfiguredClientReturnsErrNotConfigured(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewClient()

	_, err := c.Answer(context.Background(), "вопрос")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.AnalyzePhoto(context.Background(), "https://example.com/x.jpg", "")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.AnalyzeDocument(context.Background(), "a.txt", "текст")
	require.ErrorIs(t, err, ErrNotConfigured)
}
