package asset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dungeon-editor/internal/geom"
)

func TestTransformEqual(t *testing.T) {
	a := Record{ID: "x", Position: geom.V3(1, 2, 3), Rotation: geom.V3(0, 90, 0), Scale: geom.V3(1, 1, 1)}

	b := a
	b.ID = "y"
	b.Name = "different identity"
	assert.True(t, a.TransformEqual(b), "identity fields are not part of the transform")

	b = a
	b.Position.X += 5e-5
	assert.True(t, a.TransformEqual(b), "sub-tolerance drift is equal")

	b = a
	b.Rotation.Y = 91
	assert.False(t, a.TransformEqual(b))

	b = a
	b.Scale.Z = 2
	assert.False(t, a.TransformEqual(b))
}

func TestRecordWireFormat(t *testing.T) {
	rec := Record{
		ID:       "a1",
		ModelURL: "crate.glb",
		Name:     "Crate",
		Position: geom.V3(3, 0.25, -5),
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	// Field names are the backend's camelCase contract.
	assert.JSONEq(t, `{
		"id": "a1",
		"modelUrl": "crate.glb",
		"name": "Crate",
		"position": {"x": 3, "y": 0.25, "z": -5},
		"rotation": {"x": 0, "y": 0, "z": 0},
		"scale": {"x": 0, "y": 0, "z": 0}
	}`, string(raw))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "added", KindAdded.String())
	assert.Equal(t, "updated", KindUpdated.String())
	assert.Equal(t, "deleted", KindDeleted.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
