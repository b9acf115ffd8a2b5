package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docchunk/internal/retry"
)

func TestOpenAIClient_Embed(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		// Out of order on purpose.
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/", "text-embedding-3-small")
	vecs, err := c.Embed(context.Background(), []string{"line one\nline two", "second"})
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", got.Model)
	assert.Equal(t, []string{"line one line two", "second"}, got.Input)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
		permanent bool
	}{
		{http.StatusTooManyRequests, true, false},
		{http.StatusBadGateway, true, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusBadRequest, false, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))
		c := NewOpenAIClient("k", srv.URL, "m")
		_, err := c.Embed(context.Background(), []string{"x"})
		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.transient, retry.IsTransient(err), "status %d", tt.status)
		assert.Equal(t, tt.permanent, retry.IsPermanent(err), "status %d", tt.status)
		srv.Close()
	}
}

func TestOpenAIClient_MissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", srv.URL, "m")
	_, err := c.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "missing embedding for input 1")
}

func TestOpenAIClient_EmptyInput(t *testing.T) {
	c := NewOpenAIClient("k", "http://127.0.0.1:0", "m")
	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
