// Package pricing is a thin client to the predictive-price service. The
// model behind it is trained and served elsewhere; this package only speaks
// its predict endpoint.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrModelNotFound reports that the price-prediction model is not available
// upstream. The dispatcher degrades this to an informative answer instead of
// failing the turn; every other error from Predict is fatal.
var ErrModelNotFound = errors.New("price prediction model not found")

type Config struct {
	URL     string
	Timeout time.Duration
}

type Client struct {
	url    string
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Description string `json:"description"`
}

type predictResponse struct {
	Price *float64 `json:"price"`
	Error string   `json:"error,omitempty"`
}

// Predict returns the predicted price for a product description.
func (c *Client) Predict(ctx context.Context, description string) (float64, error) {
	payload, err := json.Marshal(predictRequest{Description: description})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/predict", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrModelNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("price prediction returned status %d: %s", resp.StatusCode, string(data))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode price prediction response: %w", err)
	}
	if out.Error == "model_not_found" {
		return 0, ErrModelNotFound
	}
	if out.Error != "" {
		return 0, fmt.Errorf("price prediction failed: %s", out.Error)
	}
	if out.Price == nil {
		return 0, ErrModelNotFound
	}
	return *out.Price, nil
}
