package persist

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/geom"
)

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/models", r.URL.Path)
		io.WriteString(w, `{"models":[
			{"id":"m1","name":"Crate","metadata":{"scale":1.5}},
			{"id":"m2","name":"Torch","icon":"torch.png","metadata":{"rotation":90}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", time.Second)
	models, err := c.ListModels(context.Background())

	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "Crate", models[0].Name)
	assert.InDelta(t, 1.5, models[0].Metadata.Scale, 1e-4)
	assert.InDelta(t, 90.0, models[1].Metadata.Rotation, 1e-4)
}

func TestListModelsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ListModels(context.Background())
	assert.Error(t, err)
}

func TestReplaceLayout(t *testing.T) {
	var got layoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/terrains/t-9/layout", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.ReplaceLayout(context.Background(), "t-9", []asset.Record{
		{ID: "a1", ModelURL: "crate.glb", Position: geom.V3(3, 0.25, -5)},
	})

	require.NoError(t, err)
	require.Len(t, got.PlacedAssets, 1)
	assert.Equal(t, "a1", got.PlacedAssets[0].ID)
	assert.InDelta(t, -5.0, got.PlacedAssets[0].Position.Z, 1e-4)
}

func TestReplaceLayoutNilClearsWithEmptyArray(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).ReplaceLayout(context.Background(), "t-9", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"placedAssets":[]}`, body, "nil must serialize as an empty list, not null")
}

func TestReplaceLayoutErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).ReplaceLayout(context.Background(), "t-9", nil)
	assert.Error(t, err)
}
