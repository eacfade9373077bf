package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/geom"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	records := []asset.Record{
		{ID: "a1", ModelURL: "crate.glb", Name: "Crate",
			Position: geom.V3(3, 0.25, -5), Rotation: geom.V3(0, 90, 0), Scale: geom.V3(2, 2, 2)},
		{ID: "a2", ModelURL: "torch.glb", Position: geom.V3(-1, 0, 7)},
	}

	id, err := s.SaveLayout(ctx, "throne room", "t-1", records)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.LoadLayout(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0], got[0])
	assert.Equal(t, records[1], got[1])
}

func TestSaveNilRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveLayout(ctx, "empty", "t-1", nil)
	require.NoError(t, err)

	got, err := s.LoadLayout(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadUnknownLayout(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadLayout(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListLayoutsFiltersByTerrain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveLayout(ctx, "one", "t-1", []asset.Record{{ID: "a"}})
	require.NoError(t, err)
	_, err = s.SaveLayout(ctx, "two", "t-1", []asset.Record{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	_, err = s.SaveLayout(ctx, "other", "t-2", nil)
	require.NoError(t, err)

	all, err := s.ListLayouts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	t1, err := s.ListLayouts(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, t1, 2)
	for _, m := range t1 {
		assert.Equal(t, "t-1", m.TerrainID)
	}

	// Asset counts come from the stored payload.
	counts := map[string]int{}
	for _, m := range t1 {
		counts[m.Name] = m.Assets
	}
	assert.Equal(t, map[string]int{"one": 1, "two": 2}, counts)
}

func TestDeleteLayout(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.SaveLayout(ctx, "doomed", "t-1", nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteLayout(ctx, id))
	_, err = s.LoadLayout(ctx, id)
	assert.Error(t, err)

	// Deleting twice is not an error.
	assert.NoError(t, s.DeleteLayout(ctx, id))
}
