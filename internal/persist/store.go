package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dungeon-editor/internal/asset"
)

// Store keeps named layout snapshots in a local sqlite database so layouts
// survive offline sessions; the REST client remains the authoritative backend
// path.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS layouts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	terrain_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	assets     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_layouts_terrain ON layouts(terrain_id);
`

// LayoutMeta describes a stored snapshot without its asset payload.
type LayoutMeta struct {
	ID        string
	Name      string
	TerrainID string
	CreatedAt time.Time
	Assets    int
}

// OpenStore opens (creating if needed) the layout database at dir/layouts.db.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "layouts.db"))
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveLayout stores a named snapshot of records for a terrain and returns the
// snapshot id.
func (s *Store) SaveLayout(ctx context.Context, name, terrainID string, records []asset.Record) (string, error) {
	if records == nil {
		records = []asset.Record{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("persist: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO layouts (id, name, terrain_id, created_at, assets) VALUES (?, ?, ?, ?, ?)`,
		id, name, terrainID, time.Now().Unix(), string(payload))
	if err != nil {
		return "", fmt.Errorf("persist: save layout: %w", err)
	}
	return id, nil
}

// LoadLayout returns the records of a stored snapshot.
func (s *Store) LoadLayout(ctx context.Context, id string) ([]asset.Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT assets FROM layouts WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("persist: layout %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("persist: load layout: %w", err)
	}
	var records []asset.Record
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	return records, nil
}

// ListLayouts returns snapshot metadata for a terrain, newest first. An empty
// terrainID lists every snapshot.
func (s *Store) ListLayouts(ctx context.Context, terrainID string) ([]LayoutMeta, error) {
	query := `SELECT id, name, terrain_id, created_at, assets FROM layouts`
	args := []any{}
	if terrainID != "" {
		query += ` WHERE terrain_id = ?`
		args = append(args, terrainID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("persist: list layouts: %w", err)
	}
	defer rows.Close()
	var out []LayoutMeta
	for rows.Next() {
		var m LayoutMeta
		var created int64
		var payload string
		if err := rows.Scan(&m.ID, &m.Name, &m.TerrainID, &created, &payload); err != nil {
			return nil, fmt.Errorf("persist: %w", err)
		}
		m.CreatedAt = time.Unix(created, 0)
		var records []asset.Record
		if err := json.Unmarshal([]byte(payload), &records); err == nil {
			m.Assets = len(records)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteLayout removes a stored snapshot.
func (s *Store) DeleteLayout(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM layouts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("persist: delete layout: %w", err)
	}
	return nil
}
