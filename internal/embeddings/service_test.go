package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEntry struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func newFakeProvider(t *testing.T, dims int, shuffle bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, dims, req.Dimensions)

		entries := make([]apiEntry, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dims)
			// Encode the input index into the vector so order is checkable.
			vec[0] = float32(i)
			entries[i] = apiEntry{Index: i, Embedding: vec}
		}
		if shuffle && len(entries) > 1 {
			entries[0], entries[len(entries)-1] = entries[len(entries)-1], entries[0]
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"data": entries})
	}))
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(Config{Dimensions: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	svc, err := NewService(Config{BaseURL: "http://localhost:9999"})
	require.NoError(t, err)
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	srv := newFakeProvider(t, 8, true)
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL, Dimensions: 8})
	require.NoError(t, err)

	texts := []string{"alpha", "beta", "gamma", "delta"}
	vectors, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, vec := range vectors {
		assert.Len(t, vec, 8)
		assert.Equal(t, float32(i), vec[0], "vector %d out of order", i)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	svc, err := NewService(Config{BaseURL: "http://localhost:9999"})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbedQuery(t *testing.T) {
	srv := newFakeProvider(t, 4, false)
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL, Dimensions: 4})
	require.NoError(t, err)

	vec, err := svc.EmbedQuery(context.Background(), "what is osmosis")
	require.NoError(t, err)
	assert.Len(t, vec, 4)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbedBatchDimensionMismatch(t *testing.T) {
	// Provider ignores the dimensions parameter and returns 3-dim
	// vectors while the service expects 8.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []apiEntry{{Index: 0, Embedding: []float32{1, 2, 3}}},
		})
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL, Dimensions: 8})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbedBatchProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingFailed))
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []apiEntry{}})
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}
