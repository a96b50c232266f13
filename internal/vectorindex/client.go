// Package vectorindex is a minimal REST client to the hosted product vector
// index. It speaks the index's JSON query/upsert API directly; the index
// itself (and the ingestion pipeline that fills it) is externally owned.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Metadata is the product payload stored alongside each vector.
type Metadata struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// Match is one similarity hit, ordered by descending cosine score.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Record is an upsert payload entry. Upsert is driven by the ingestion
// pipeline, not by the chat path; it lives here so the index boundary is
// complete.
type Record struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

type Config struct {
	URL     string
	APIKey  string
	Index   string
	Timeout time.Duration
}

type Client struct {
	url    string
	apiKey string
	index  string
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		index:  cfg.Index,
		client: &http.Client{Timeout: timeout},
	}
}

// Query returns the topK nearest vectors with their product metadata.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 3
	}
	req := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	var resp struct {
		Matches []Match `json:"matches"`
	}
	if err := c.postJSON(ctx, fmt.Sprintf("%s/indexes/%s/query", c.url, c.index), req, &resp); err != nil {
		return nil, fmt.Errorf("vector index query failed: %w", err)
	}
	return resp.Matches, nil
}

// Upsert writes vectors and their metadata into the index.
func (c *Client) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	req := map[string]any{"vectors": records}
	if err := c.postJSON(ctx, fmt.Sprintf("%s/indexes/%s/vectors/upsert", c.url, c.index), req, nil); err != nil {
		return fmt.Errorf("vector index upsert failed: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
