package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Query(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"matches": []Match{
				{ID: "txt-1", Score: 0.9123, Metadata: Metadata{Name: "Compact Printer Air", Category: "Office", Brand: "Printex", Price: "129.99", Description: "Portable printer."}},
				{ID: "txt-2", Score: 0.8, Metadata: Metadata{Name: "Desk Lamp"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "secret", Index: "khroma-products"})
	matches, err := c.Query(context.Background(), []float32{0.1, 0.2, 0.3}, 3)
	require.NoError(t, err)

	assert.Equal(t, "/indexes/khroma-products/query", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, float64(3), gotBody["topK"])
	assert.Equal(t, true, gotBody["includeMetadata"])
	assert.Len(t, gotBody["vector"], 3)

	require.Len(t, matches, 2)
	assert.Equal(t, "Compact Printer Air", matches[0].Metadata.Name)
	assert.InDelta(t, 0.9123, matches[0].Score, 1e-9)
}

func TestClient_Query_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index melted", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Index: "khroma-products"})
	_, err := c.Query(context.Background(), []float32{0.1}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_Upsert(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Vectors []Record `json:"vectors"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Index: "khroma-products"})
	err := c.Upsert(context.Background(), []Record{
		{ID: "txt-1", Values: []float32{0.1, 0.2}, Metadata: Metadata{Name: "Lamp"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "/indexes/khroma-products/vectors/upsert", gotPath)
	require.Len(t, gotBody.Vectors, 1)
	assert.Equal(t, "txt-1", gotBody.Vectors[0].ID)

	t.Run("empty upsert is a no-op", func(t *testing.T) {
		gotPath = ""
		require.NoError(t, c.Upsert(context.Background(), nil))
		assert.Empty(t, gotPath)
	})
}
