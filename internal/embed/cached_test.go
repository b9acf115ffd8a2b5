package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_ServesHits(t *testing.T) {
	stub := &stubEmbedder{}
	c := NewCachedEmbedder(stub, 16)

	first, err := c.Embed(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, first)

	second, err := c.Embed(context.Background(), []string{"2", "3", "1"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}, {3}, {1}}, second)

	require.Len(t, stub.requests, 2)
	assert.Equal(t, []string{"3"}, stub.requests[1], "only the miss is sent")
	assert.Equal(t, 3, c.Len())
}

func TestCachedEmbedder_AllHitsSkipInner(t *testing.T) {
	stub := &stubEmbedder{}
	c := NewCachedEmbedder(stub, 0)
	_, err := c.Embed(context.Background(), []string{"7"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), []string{"7", "7"})
	require.NoError(t, err)
	assert.Len(t, stub.requests, 1)
	assert.Equal(t, "stub", c.Model())
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	stub := &stubEmbedder{failOn: "9"}
	c := NewCachedEmbedder(stub, 4)
	_, err := c.Embed(context.Background(), []string{"9"})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
