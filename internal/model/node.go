// Package model loads placeable models and wraps them in a three-tier
// level-of-detail node. Fetching runs off the main thread; GPU-side model
// creation is deferred to a per-frame queue drained on the main thread, after
// the window/GL context exists.
package model

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"dungeon-editor/internal/geom"
)

// Detail tier thresholds, in world units of camera distance. Fixed, not
// user-configurable: full detail near the camera, a cheaper-shaded draw at a
// medium distance, a flat proxy beyond.
const (
	lodMidDistance = 40.0
	lodFarDistance = 90.0
)

// midTint is the flat shading tint for the medium tier.
var midTint = rl.NewColor(190, 190, 190, 255)

// proxyColor is the far tier's stand-in box color.
var proxyColor = rl.NewColor(140, 140, 140, 255)

// LODNode is one placed model with position/rotation/scale and distance-based
// detail selection. It implements reconcile.Node.
type LODNode struct {
	model    rl.Model
	local    geom.AABB
	pos      geom.Vec3
	rotDeg   geom.Vec3
	scale    geom.Vec3
	released bool
}

// newLODNode wraps a loaded raylib model. Must run on the main thread.
func newLODNode(m rl.Model) *LODNode {
	box := rl.GetModelBoundingBox(m)
	return &LODNode{
		model: m,
		local: geom.AABB{
			Min: geom.V3(box.Min.X, box.Min.Y, box.Min.Z),
			Max: geom.V3(box.Max.X, box.Max.Y, box.Max.Z),
		},
		scale: geom.V3(1, 1, 1),
	}
}

// SetTransform applies position, Euler rotation (degrees), and scale.
func (n *LODNode) SetTransform(pos, rotDeg, scale geom.Vec3) {
	n.pos = pos
	n.rotDeg = rotDeg
	n.scale = scale
	rad := rl.NewVector3(
		rotDeg.X*rl.Deg2rad,
		rotDeg.Y*rl.Deg2rad,
		rotDeg.Z*rl.Deg2rad,
	)
	n.model.Transform = rl.MatrixRotateXYZ(rad)
}

// Transform returns the current position, rotation (degrees), and scale.
func (n *LODNode) Transform() (pos, rotDeg, scale geom.Vec3) {
	return n.pos, n.rotDeg, n.scale
}

// LocalBounds is the model's local-space bounding box at unit scale.
func (n *LODNode) LocalBounds() geom.AABB { return n.local }

// WorldBounds is the axis-aligned box around the node at its current
// transform, used for picking.
func (n *LODNode) WorldBounds() geom.AABB {
	box := geom.RotatedAABB(geom.ScaledAABB(n.local, n.scale), n.rotDeg)
	return geom.AABB{Min: box.Min.Add(n.pos), Max: box.Max.Add(n.pos)}
}

// Draw renders the node at the detail tier for the camera distance. Must be
// called between BeginMode3D and EndMode3D.
func (n *LODNode) Draw(camPos geom.Vec3) {
	if n.released {
		return
	}
	pos := rl.NewVector3(n.pos.X, n.pos.Y, n.pos.Z)
	scale := rl.NewVector3(n.orOne(n.scale.X), n.orOne(n.scale.Y), n.orOne(n.scale.Z))
	dist := camPos.Dist(n.pos)
	switch {
	case dist < lodMidDistance:
		rl.DrawModelEx(n.model, pos, rl.NewVector3(0, 1, 0), 0, scale, rl.White)
	case dist < lodFarDistance:
		// Cheaper tier: same geometry, flat tint, no per-model shader work.
		rl.DrawModelEx(n.model, pos, rl.NewVector3(0, 1, 0), 0, scale, midTint)
	default:
		// Flat proxy: a box the size of the world bounds stands in for the mesh.
		wb := n.WorldBounds()
		center := wb.Center()
		size := wb.Size()
		rl.DrawCubeV(rl.NewVector3(center.X, center.Y, center.Z),
			rl.NewVector3(size.X, size.Y, size.Z), proxyColor)
	}
}

func (n *LODNode) orOne(v float32) float32 {
	if v == 0 {
		return 1
	}
	return v
}

// Release frees the model's meshes and materials. Safe to call once; further
// draws become no-ops.
func (n *LODNode) Release() {
	if n.released {
		return
	}
	n.released = true
	rl.UnloadModel(n.model)
}
