// Package config loads editor settings from config/editor.yaml with defaults
// for anything absent, plus a small set of environment overrides for values
// that differ per machine.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Path is the config file location relative to the working directory.
const Path = "config/editor.yaml"

// Config is the full editor configuration.
type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Camera  CameraConfig  `yaml:"camera"`
	Grid    GridConfig    `yaml:"grid"`
	Terrain TerrainConfig `yaml:"terrain"`
	Backend BackendConfig `yaml:"backend"`
	Data    DataConfig    `yaml:"data"`
	Logging LoggingConfig `yaml:"logging"`
}

type WindowConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Title     string `yaml:"title"`
	TargetFPS int    `yaml:"target_fps"`
}

type CameraConfig struct {
	Fovy     float32 `yaml:"fovy"`
	Distance float32 `yaml:"distance"` // initial orbit distance when no terrain sets one
	Damping  float32 `yaml:"damping"`  // orbit smoothing factor per frame, 0..1
}

type GridConfig struct {
	CellSize  float32 `yaml:"cell_size"` // world units per cell when terrain has no declared dims
	Divisions int     `yaml:"divisions"` // fallback ground cell count per axis (0: derive from cell_size)
	Visible   bool    `yaml:"visible"`
}

type TerrainConfig struct {
	URL            string  `yaml:"url"`             // initial terrain; empty = fallback ground
	Width          int     `yaml:"width"`           // declared grid cells on X, 0 = infer
	Height         int     `yaml:"height"`          // declared grid cells on Z, 0 = infer
	FallbackExtent float32 `yaml:"fallback_extent"` // half-size of the ground plane without terrain
}

type BackendConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type DataConfig struct {
	Dir string `yaml:"dir"` // model cache + layout store root
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Window:  WindowConfig{Width: 1600, Height: 900, Title: "dungeon editor", TargetFPS: 60},
		Camera:  CameraConfig{Fovy: 45, Distance: 18, Damping: 0.15},
		Grid:    GridConfig{CellSize: 2, Divisions: 20, Visible: true},
		Terrain: TerrainConfig{FallbackExtent: 20},
		Backend: BackendConfig{URL: "http://localhost:8080/api", TimeoutSeconds: 30},
		Data:    DataConfig{Dir: "data"},
		Logging: LoggingConfig{Level: "info", Development: true},
	}
}

// Load reads the config at path, fills unset fields from Default, and applies
// environment overrides (EDITOR_BACKEND_URL, EDITOR_DATA_DIR). A missing file
// is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Default(), fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.fillDefaults()
	} else if !os.IsNotExist(err) {
		return Default(), fmt.Errorf("config: %w", err)
	}
	if v := os.Getenv("EDITOR_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("EDITOR_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	return cfg, nil
}

// fillDefaults patches zero values left by a partial file back to defaults.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Window.Width <= 0 {
		c.Window.Width = d.Window.Width
	}
	if c.Window.Height <= 0 {
		c.Window.Height = d.Window.Height
	}
	if c.Window.Title == "" {
		c.Window.Title = d.Window.Title
	}
	if c.Window.TargetFPS <= 0 {
		c.Window.TargetFPS = d.Window.TargetFPS
	}
	if c.Camera.Fovy <= 0 {
		c.Camera.Fovy = d.Camera.Fovy
	}
	if c.Camera.Distance <= 0 {
		c.Camera.Distance = d.Camera.Distance
	}
	if c.Camera.Damping <= 0 || c.Camera.Damping > 1 {
		c.Camera.Damping = d.Camera.Damping
	}
	if c.Grid.CellSize <= 0 {
		c.Grid.CellSize = d.Grid.CellSize
	}
	if c.Grid.Divisions <= 0 {
		c.Grid.Divisions = d.Grid.Divisions
	}
	if c.Terrain.FallbackExtent <= 0 {
		c.Terrain.FallbackExtent = d.Terrain.FallbackExtent
	}
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = d.Backend.TimeoutSeconds
	}
	if c.Data.Dir == "" {
		c.Data.Dir = d.Data.Dir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}
