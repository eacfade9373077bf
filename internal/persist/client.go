package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dungeon-editor/internal/asset"
)

// ModelMetadata is the backend's optional per-model placement defaults.
type ModelMetadata struct {
	Scale    float32 `json:"scale,omitempty"`
	Rotation float32 `json:"rotation,omitempty"`
}

// ModelInfo describes one placeable model offered by the backend.
type ModelInfo struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Icon     string        `json:"icon,omitempty"`
	Metadata ModelMetadata `json:"metadata"`
}

type modelListResponse struct {
	Models []ModelInfo `json:"models"`
}

type layoutRequest struct {
	PlacedAssets []asset.Record `json:"placedAssets"`
}

// Client talks to the backend's model-listing and terrain-layout endpoints.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

// ListModels fetches the placeable model catalog.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("persist: list models: %s", resp.Status)
	}
	var out modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	return out.Models, nil
}

// ReplaceLayout bulk-replaces the placed-asset layout for a terrain. A nil or
// empty records slice clears the layout.
func (c *Client) ReplaceLayout(ctx context.Context, terrainID string, records []asset.Record) error {
	if records == nil {
		records = []asset.Record{}
	}
	body, err := json.Marshal(layoutRequest{PlacedAssets: records})
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	url := fmt.Sprintf("%s/terrains/%s/layout", c.baseURL, terrainID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("persist: replace layout: %s", resp.Status)
	}
	return nil
}
