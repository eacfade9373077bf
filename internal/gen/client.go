// Package gen is the client side of the asynchronous dungeon-layout
// generation pipeline. Generation itself runs on the backend; this client
// carries the request, honors cancellation, and reports aborts distinctly
// from hard failures so the UI can avoid presenting them as errors.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dungeon-editor/internal/asset"
)

// ErrCancelled marks a generation request aborted by the user, e.g. by
// closing the initiating dialog while the request was outstanding.
var ErrCancelled = errors.New("gen: cancelled")

// Request describes the layout to generate. Width and Height are grid cells;
// zero lets the backend choose.
type Request struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Layout is a generation result: the terrain to load, its grid dimensions,
// and the placed assets to sync into the scene.
type Layout struct {
	TerrainURL   string         `json:"terrainUrl"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	PlacedAssets []asset.Record `json:"placedAssets"`
}

// Client posts generation requests to the backend.
type Client struct {
	baseURL string
	hc      *http.Client
	log     *zap.Logger
}

// NewClient returns a generation client. The HTTP client carries no timeout;
// generation is long-running and bounded by the caller's context instead.
func NewClient(log *zap.Logger, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{},
		log:     log,
	}
}

// GenerateLayout requests a layout and blocks until the backend answers or
// ctx is done. Cancelling ctx aborts the in-flight request and returns an
// error wrapping ErrCancelled rather than leaking it.
func (c *Client) GenerateLayout(ctx context.Context, r Request) (*Layout, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("gen: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gen: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			c.log.Info("generation cancelled", zap.Duration("after", time.Since(started)))
			return nil, fmt.Errorf("%w after %s", ErrCancelled, time.Since(started).Round(time.Millisecond))
		}
		return nil, fmt.Errorf("gen: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gen: generate: %s", resp.Status)
	}
	var out Layout
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("gen: %w", err)
	}
	c.log.Info("generation finished",
		zap.Duration("took", time.Since(started)),
		zap.Int("assets", len(out.PlacedAssets)))
	return &out, nil
}
