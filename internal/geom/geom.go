package geom

import (
	"github.com/chewxy/math32"
)

// Vec3 is a float32 3D vector. X/Z span the ground plane; Y is up.
// JSON tags match the backend's lowercase wire format.
type Vec3 struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
}

// V3 is shorthand for constructing a Vec3.
func V3(x, y, z float32) Vec3 { return Vec3{X: x, Y: y, Z: z} }

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Mul returns the componentwise product of v and o.
func (v Vec3) Mul(o Vec3) Vec3 { return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z} }

// Length returns the Euclidean length of v.
func (v Vec3) Length() float32 {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dist returns the distance between v and o.
func (v Vec3) Dist(o Vec3) float32 { return v.Sub(o).Length() }

// NearEqual reports whether every component of v is within eps of o.
func (v Vec3) NearEqual(o Vec3, eps float32) bool {
	return math32.Abs(v.X-o.X) <= eps && math32.Abs(v.Y-o.Y) <= eps && math32.Abs(v.Z-o.Z) <= eps
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// Size returns the box extents on each axis.
func (b AABB) Size() Vec3 { return b.Max.Sub(b.Min) }

// Center returns the box midpoint.
func (b AABB) Center() Vec3 { return b.Min.Add(b.Max).Scale(0.5) }

// ScaledAABB scales the box componentwise about the origin. Zero scale components
// are treated as 1 so an unset scale keeps the original extents.
func ScaledAABB(b AABB, scale Vec3) AABB {
	sx, sy, sz := scale.X, scale.Y, scale.Z
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	if sz == 0 {
		sz = 1
	}
	return AABB{
		Min: Vec3{b.Min.X * sx, b.Min.Y * sy, b.Min.Z * sz},
		Max: Vec3{b.Max.X * sx, b.Max.Y * sy, b.Max.Z * sz},
	}
}

// rotateEuler applies an XYZ Euler rotation (degrees) to v: X first, then Y, then Z.
func rotateEuler(v Vec3, rotDeg Vec3) Vec3 {
	rx := rotDeg.X * math32.Pi / 180
	ry := rotDeg.Y * math32.Pi / 180
	rz := rotDeg.Z * math32.Pi / 180

	// X
	cy, sy := math32.Cos(rx), math32.Sin(rx)
	v = Vec3{v.X, v.Y*cy - v.Z*sy, v.Y*sy + v.Z*cy}
	// Y
	cy, sy = math32.Cos(ry), math32.Sin(ry)
	v = Vec3{v.X*cy + v.Z*sy, v.Y, -v.X*sy + v.Z*cy}
	// Z
	cy, sy = math32.Cos(rz), math32.Sin(rz)
	return Vec3{v.X*cy - v.Y*sy, v.X*sy + v.Y*cy, v.Z}
}

// RotatedAABB re-fits b after an Euler rotation (degrees) about the origin:
// all eight corners are rotated and a new axis-aligned box is taken over them.
func RotatedAABB(b AABB, rotDeg Vec3) AABB {
	if rotDeg == (Vec3{}) {
		return b
	}
	corners := [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
	first := rotateEuler(corners[0], rotDeg)
	out := AABB{Min: first, Max: first}
	for _, c := range corners[1:] {
		r := rotateEuler(c, rotDeg)
		out.Min.X = math32.Min(out.Min.X, r.X)
		out.Min.Y = math32.Min(out.Min.Y, r.Y)
		out.Min.Z = math32.Min(out.Min.Z, r.Z)
		out.Max.X = math32.Max(out.Max.X, r.X)
		out.Max.Y = math32.Max(out.Max.Y, r.Y)
		out.Max.Z = math32.Max(out.Max.Z, r.Z)
	}
	return out
}

// Surface answers "what is the supporting height at this ground position".
// The terrain loader implements it with a downward mesh raycast; FlatGround is
// the no-terrain fallback.
type Surface interface {
	HeightAt(x, z float32) (float32, bool)
}

// FlatGround is a Surface at a fixed height, used when no terrain is loaded.
type FlatGround struct {
	Y float32
}

// HeightAt always answers with the fixed ground height.
func (g FlatGround) HeightAt(x, z float32) (float32, bool) { return g.Y, true }

// SnapY returns the Y position that rests an object's base on the surface at
// (x, z). local is the object's local-space bounds at unit scale; rotDeg and
// scale describe the candidate transform. The object's bottom-to-origin offset
// is recomputed from the transformed bounds, so scale and rotation edits re-snap
// rather than merely translating. ok is false when the surface has no height
// at that position.
func SnapY(s Surface, local AABB, x, z float32, rotDeg, scale Vec3) (float32, bool) {
	ground, ok := s.HeightAt(x, z)
	if !ok {
		return 0, false
	}
	box := RotatedAABB(ScaledAABB(local, scale), rotDeg)
	return ground - box.Min.Y, true
}
