package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-4

func TestScaledAABB(t *testing.T) {
	box := AABB{Min: V3(-1, 0, -1), Max: V3(1, 2, 1)}

	scaled := ScaledAABB(box, V3(2, 3, 0.5))
	assert.True(t, scaled.Min.NearEqual(V3(-2, 0, -0.5), eps))
	assert.True(t, scaled.Max.NearEqual(V3(2, 6, 0.5), eps))

	// Zero components read as "unset": the extent is unchanged on that axis.
	same := ScaledAABB(box, Vec3{})
	assert.Equal(t, box, same)
}

func TestRotatedAABBQuarterTurn(t *testing.T) {
	// 2 long on X, 1 on Z; a 90° yaw swaps the footprint axes.
	box := AABB{Min: V3(-1, 0, -0.5), Max: V3(1, 1, 0.5)}
	r := RotatedAABB(box, V3(0, 90, 0))

	size := r.Size()
	assert.InDelta(t, 1, size.X, eps)
	assert.InDelta(t, 1, size.Y, eps)
	assert.InDelta(t, 2, size.Z, eps)
}

func TestRotatedAABBIdentity(t *testing.T) {
	box := AABB{Min: V3(-3, -1, -2), Max: V3(4, 5, 6)}
	assert.Equal(t, box, RotatedAABB(box, Vec3{}))
}

func TestRotatedAABBContainsOriginal45(t *testing.T) {
	box := AABB{Min: V3(-1, -1, -1), Max: V3(1, 1, 1)}
	r := RotatedAABB(box, V3(0, 45, 0))
	// A diagonal cube fits in sqrt(2) on the rotated axes.
	assert.InDelta(t, 2*1.41421356, r.Size().X, 1e-3)
	assert.InDelta(t, 2, r.Size().Y, eps)
}

func TestSnapYFlatGround(t *testing.T) {
	// Base 0.25 below the origin: resting on Y=0 means origin at 0.25.
	local := AABB{Min: V3(-1, -0.25, -1), Max: V3(1, 1.75, 1)}

	y, ok := SnapY(FlatGround{}, local, 0, 0, Vec3{}, Vec3{})
	require.True(t, ok)
	assert.InDelta(t, 0.25, y, eps)
}

func TestSnapYElevatedGround(t *testing.T) {
	local := AABB{Min: V3(-1, -0.25, -1), Max: V3(1, 1.75, 1)}
	y, ok := SnapY(FlatGround{Y: 3}, local, 5, -2, Vec3{}, Vec3{})
	require.True(t, ok)
	assert.InDelta(t, 3.25, y, eps)
}

func TestSnapYScaleRescalesOffset(t *testing.T) {
	local := AABB{Min: V3(-1, -0.5, -1), Max: V3(1, 1.5, 1)}

	y1, ok := SnapY(FlatGround{}, local, 0, 0, Vec3{}, V3(1, 1, 1))
	require.True(t, ok)
	y2, ok := SnapY(FlatGround{}, local, 0, 0, Vec3{}, V3(1, 2, 1))
	require.True(t, ok)

	assert.InDelta(t, 0.5, y1, eps)
	assert.InDelta(t, 1.0, y2, eps, "doubling Y scale doubles the base offset")
}

func TestSnapYRotationRefitsBase(t *testing.T) {
	// A tall box tipped 90° around X rests on what used to be a side.
	local := AABB{Min: V3(-0.5, 0, -0.5), Max: V3(0.5, 4, 0.5)}

	upright, ok := SnapY(FlatGround{}, local, 0, 0, Vec3{}, Vec3{})
	require.True(t, ok)
	tipped, ok := SnapY(FlatGround{}, local, 0, 0, V3(90, 0, 0), Vec3{})
	require.True(t, ok)

	assert.InDelta(t, 0, upright, eps)
	assert.InDelta(t, 4, tipped, eps)
}

type holeySurface struct{}

func (holeySurface) HeightAt(x, z float32) (float32, bool) { return 0, false }

func TestSnapYNoSurfaceHeight(t *testing.T) {
	_, ok := SnapY(holeySurface{}, AABB{}, 0, 0, Vec3{}, Vec3{})
	assert.False(t, ok)
}

func TestVecHelpers(t *testing.T) {
	v := V3(3, 4, 0)
	assert.InDelta(t, 5, v.Length(), eps)
	assert.InDelta(t, 5, V3(0, 0, 0).Dist(v), eps)
	assert.True(t, v.Add(V3(1, 1, 1)).NearEqual(V3(4, 5, 1), eps))
	assert.True(t, v.Mul(V3(2, 0.5, 9)).NearEqual(V3(6, 2, 0), eps))
	assert.False(t, v.NearEqual(V3(3, 4, 0.001), 1e-5))
}

func TestAABBSizeCenter(t *testing.T) {
	b := AABB{Min: V3(-2, 0, 4), Max: V3(2, 6, 8)}
	assert.True(t, b.Size().NearEqual(V3(4, 6, 4), eps))
	assert.True(t, b.Center().NearEqual(V3(0, 3, 6), eps))
}
