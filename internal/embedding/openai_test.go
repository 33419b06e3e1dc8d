package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbedText_RejectsEmptyInput(t *testing.T) {
	c := NewClient(Config{APIKey: "test-key", Model: "text-embedding-3-small"})

	_, err := c.EmbedText(context.Background(), "   ")
	require.Error(t, err)

	_, err = c.EmbedText(context.Background(), "")
	require.Error(t, err)
}

func TestDimension(t *testing.T) {
	c := NewClient(Config{APIKey: "test-key", Dimensions: 1536})
	require.Equal(t, 1536, c.Dimension())
}
