package scenehost

import (
	"github.com/chewxy/math32"
	rl "github.com/gen2brain/raylib-go/raylib"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/geom"
	"dungeon-editor/internal/reconcile"
)

// Gizmo modes, cycled with the W/E/R keys while an asset is attached.
type gizmoMode int

const (
	gizmoTranslate gizmoMode = iota
	gizmoRotate
	gizmoScale
)

const (
	gizmoArmLen     = 1.6
	gizmoHandleSize = 0.22
	rotateDegPerPx  = 0.5
	scalePerPx      = 0.01
	minScaleFactor  = 0.05
)

// gizmo manipulates the attached instance's node directly and narrates the
// edit over the bus. It holds only the asset id, never the node: the
// reconciler detaches it before an instance is destroyed.
type gizmo struct {
	attachedID string
	mode       gizmoMode

	dragging  bool
	dragAxis  int // 0=X 1=Y 2=Z, translate mode only
	dragStart rl.Vector2
	grabT     float32 // axis parameter under the cursor at grab time
	initPos   geom.Vec3
	initRot   geom.Vec3
	initScale geom.Vec3
}

var gizmoAxisDirs = [3]geom.Vec3{
	geom.V3(1, 0, 0),
	geom.V3(0, 1, 0),
	geom.V3(0, 0, 1),
}

var gizmoAxisColors = [3]rl.Color{
	rl.NewColor(230, 70, 70, 255),
	rl.NewColor(80, 210, 80, 255),
	rl.NewColor(80, 120, 235, 255),
}

// Attach points the gizmo at an asset. Implements the reconciler's gizmo
// contract together with Detach.
func (h *Host) Attach(id string) {
	if h.gizmo.attachedID != id {
		h.endDrag(false)
	}
	h.gizmo.attachedID = id
}

// Detach lets go of the given id if it is the current attachment. A drag in
// progress is abandoned without a final commit: the asset is going away.
func (h *Host) Detach(id string) {
	if h.gizmo.attachedID != id {
		return
	}
	h.endDrag(false)
	h.gizmo.attachedID = ""
}

// AttachedID returns the id the gizmo currently points at.
func (h *Host) AttachedID() string { return h.gizmo.attachedID }

// GizmoActive reports whether a gizmo drag is consuming mouse input, so the
// interaction layer can ignore clicks during it.
func (h *Host) GizmoActive() bool { return h.gizmo.dragging }

func (h *Host) updateGizmo() {
	g := &h.gizmo
	if g.attachedID == "" {
		return
	}
	in, ok := h.rec.Lookup(g.attachedID)
	if !ok || in.Node == nil {
		return
	}

	switch {
	case rl.IsKeyPressed(rl.KeyW):
		g.mode = gizmoTranslate
	case rl.IsKeyPressed(rl.KeyE):
		g.mode = gizmoRotate
	case rl.IsKeyPressed(rl.KeyR):
		g.mode = gizmoScale
	}

	if !g.dragging {
		if rl.IsMouseButtonPressed(rl.MouseLeftButton) {
			h.tryBeginDrag(in)
		}
		return
	}

	if rl.IsMouseButtonReleased(rl.MouseLeftButton) {
		h.endDrag(true)
		return
	}
	h.dragTick(in)
}

func (h *Host) tryBeginDrag(in *reconcile.Instance) {
	g := &h.gizmo
	mouse := rl.GetMousePosition()
	pos, rot, scale := in.Node.Transform()

	switch g.mode {
	case gizmoTranslate:
		axis, ok := h.pickAxisHandle(pos, mouse)
		if !ok {
			return
		}
		g.dragAxis = axis
		ray := h.mouseRay(mouse.X, mouse.Y)
		g.grabT, _ = closestAxisParam(pos, gizmoAxisDirs[axis], ray)
	case gizmoRotate, gizmoScale:
		// Grab anywhere on the asset's box.
		hit := rl.GetRayCollisionBox(h.mouseRay(mouse.X, mouse.Y), nodeWorldBox(in.Node))
		if !hit.Hit {
			return
		}
	}

	g.dragging = true
	g.dragStart = mouse
	g.initPos, g.initRot, g.initScale = pos, rot, scale
	h.orbit.enabled = false
	// Move topics carry the asset id, same shape on every emitter.
	h.bus.Emit(eventbus.TopicAssetMoveStarted, in.Record.ID)
}

func (h *Host) dragTick(in *reconcile.Instance) {
	g := &h.gizmo
	mouse := rl.GetMousePosition()
	pos, rot, scale := g.initPos, g.initRot, g.initScale

	switch g.mode {
	case gizmoTranslate:
		ray := h.mouseRay(mouse.X, mouse.Y)
		t, ok := closestAxisParam(g.initPos, gizmoAxisDirs[g.dragAxis], ray)
		if ok {
			pos = g.initPos.Add(gizmoAxisDirs[g.dragAxis].Scale(t - g.grabT))
		}
	case gizmoRotate:
		rot.Y = g.initRot.Y + (mouse.X-g.dragStart.X)*rotateDegPerPx
	case gizmoScale:
		factor := 1 + (mouse.X-g.dragStart.X)*scalePerPx
		if factor < minScaleFactor {
			factor = minScaleFactor
		}
		// One factor for every axis: the gizmo never skews proportions.
		scale = g.initScale.Scale(factor)
	}

	if g.mode != gizmoTranslate && h.surface != nil {
		if y, ok := geom.SnapY(h.surface(), in.Node.LocalBounds(), pos.X, pos.Z, rot, scale); ok {
			pos.Y = y
		}
	}

	in.Node.SetTransform(pos, rot, scale)
	rec := in.Record
	rec.Position, rec.Rotation, rec.Scale = pos, rot, scale
	h.bus.Emit(eventbus.TopicAssetUpdated, asset.Mutation{
		Kind:      asset.KindUpdated,
		Record:    rec,
		FromGizmo: true,
	})
}

// endDrag finishes a drag. commit==true publishes the settled transform as a
// plain update so it reaches persistence; false abandons it silently (the
// attachment is being torn down).
func (h *Host) endDrag(commit bool) {
	g := &h.gizmo
	if !g.dragging {
		return
	}
	g.dragging = false
	h.orbit.enabled = true

	in, ok := h.rec.Lookup(g.attachedID)
	if !ok || in.Node == nil {
		return
	}
	if commit {
		pos, rot, scale := in.Node.Transform()
		rec := in.Record
		rec.Position, rec.Rotation, rec.Scale = pos, rot, scale
		h.bus.Emit(eventbus.TopicAssetUpdated, asset.Mutation{Kind: asset.KindUpdated, Record: rec})
	}
	h.bus.Emit(eventbus.TopicAssetMoveFinished, in.Record.ID)
}

// pickAxisHandle tests the mouse ray against the three arm-tip handles and
// returns the nearest hit axis.
func (h *Host) pickAxisHandle(center geom.Vec3, mouse rl.Vector2) (int, bool) {
	ray := h.mouseRay(mouse.X, mouse.Y)
	best := float32(-1)
	bestAxis := 0
	for axis, dir := range gizmoAxisDirs {
		tip := center.Add(dir.Scale(gizmoArmLen))
		half := float32(gizmoHandleSize)
		box := rl.NewBoundingBox(
			rl.NewVector3(tip.X-half, tip.Y-half, tip.Z-half),
			rl.NewVector3(tip.X+half, tip.Y+half, tip.Z+half),
		)
		hit := rl.GetRayCollisionBox(ray, box)
		if hit.Hit && (best < 0 || hit.Distance < best) {
			best = hit.Distance
			bestAxis = axis
		}
	}
	return bestAxis, best >= 0
}

// closestAxisParam finds the parameter t along the axis line origin+t*dir at
// the closest approach to the mouse ray. Degenerate (near-parallel) pairs
// report false.
func closestAxisParam(origin, dir geom.Vec3, ray rl.Ray) (float32, bool) {
	rd := geom.V3(ray.Direction.X, ray.Direction.Y, ray.Direction.Z)
	ro := geom.V3(ray.Position.X, ray.Position.Y, ray.Position.Z)
	w := origin.Sub(ro)

	a := dir.Length() * dir.Length() // 1 for unit axes, kept general
	b := dir.X*rd.X + dir.Y*rd.Y + dir.Z*rd.Z
	c := rd.Length() * rd.Length()
	d := dir.X*w.X + dir.Y*w.Y + dir.Z*w.Z
	e := rd.X*w.X + rd.Y*w.Y + rd.Z*w.Z

	denom := a*c - b*b
	if math32.Abs(denom) < 1e-6 {
		return 0, false
	}
	return (b*e - c*d) / denom, true
}

func (h *Host) drawGizmo() {
	g := &h.gizmo
	if g.attachedID == "" {
		return
	}
	in, ok := h.rec.Lookup(g.attachedID)
	if !ok || in.Node == nil {
		return
	}
	pos, _, _ := in.Node.Transform()
	center := rl.NewVector3(pos.X, pos.Y, pos.Z)

	switch g.mode {
	case gizmoTranslate:
		for axis, dir := range gizmoAxisDirs {
			tip := rl.NewVector3(pos.X+dir.X*gizmoArmLen, pos.Y+dir.Y*gizmoArmLen, pos.Z+dir.Z*gizmoArmLen)
			rl.DrawLine3D(center, tip, gizmoAxisColors[axis])
			rl.DrawCubeV(tip, rl.NewVector3(gizmoHandleSize, gizmoHandleSize, gizmoHandleSize), gizmoAxisColors[axis])
		}
	case gizmoRotate:
		rl.DrawCircle3D(center, gizmoArmLen, rl.NewVector3(1, 0, 0), 90, gizmoAxisColors[1])
	case gizmoScale:
		rl.DrawCubeWiresV(center, rl.NewVector3(gizmoArmLen, gizmoArmLen, gizmoArmLen), rl.NewColor(235, 200, 80, 255))
	}
}
