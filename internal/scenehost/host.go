// Package scenehost owns the render surface: window, damped orbit camera,
// per-frame loop, screen→world picking, and the transform gizmo.
package scenehost

import (
	"fmt"

	"github.com/chewxy/math32"
	rl "github.com/gen2brain/raylib-go/raylib"
	"go.uber.org/zap"

	"dungeon-editor/internal/config"
	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/geom"
	"dungeon-editor/internal/reconcile"
)

// cameraFitFactor scales the framing distance relative to the target's larger
// world dimension, leaving a margin around it.
const cameraFitFactor = 1.2

// Orbit limits.
const (
	minPitch    = -85.0
	maxPitch    = 85.0
	minDistance = 2.0
	orbitSpeed  = 0.3 // degrees per pixel of mouse drag
	zoomSpeed   = 1.5 // world units per wheel notch
)

// WorldSource answers picking queries against whatever the world currently
// is; the terrain loader implements it.
type WorldSource interface {
	RayHit(ray rl.Ray) (geom.Vec3, bool)
}

// orbit is a damped orbit camera: yaw/pitch/distance ease toward their
// targets each frame instead of jumping.
type orbit struct {
	target   geom.Vec3
	yaw      float32
	pitch    float32
	distance float32

	goalTarget   geom.Vec3
	goalYaw      float32
	goalPitch    float32
	goalDistance float32

	damping float32
	enabled bool
}

// Host constructs and owns the render surface lifecycle.
type Host struct {
	log     *zap.Logger
	bus     *eventbus.Bus
	rec     *reconcile.Reconciler
	world   WorldSource
	surface func() geom.Surface

	camera rl.Camera3D
	orbit  orbit
	gizmo  gizmo

	open bool
}

// New returns an unopened host. Call Init before Run.
func New(log *zap.Logger, bus *eventbus.Bus, rec *reconcile.Reconciler) *Host {
	return &Host{log: log, bus: bus, rec: rec}
}

// SetWorld installs the pick target for ground raycasts.
func (h *Host) SetWorld(w WorldSource) { h.world = w }

// SetSurface supplies the snapping surface the gizmo uses when rotate or
// scale edits change the asset's footprint.
func (h *Host) SetSurface(fn func() geom.Surface) { h.surface = fn }

// Init creates the window and camera. Failure to obtain a render surface is
// fatal for the session and is returned once, for the caller to surface
// through its error callback.
func (h *Host) Init(cfg config.Config) error {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Window.Width), int32(cfg.Window.Height), cfg.Window.Title)
	if !rl.IsWindowReady() {
		return fmt.Errorf("scenehost: render surface could not be created")
	}
	rl.SetExitKey(rl.KeyNull) // Escape cancels interactions; close via window button
	rl.SetTargetFPS(int32(cfg.Window.TargetFPS))

	h.orbit = orbit{
		yaw:          45,
		pitch:        40,
		distance:     cfg.Camera.Distance,
		goalYaw:      45,
		goalPitch:    40,
		goalDistance: cfg.Camera.Distance,
		damping:      cfg.Camera.Damping,
		enabled:      true,
	}
	h.camera = rl.Camera3D{
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       cfg.Camera.Fovy,
		Projection: rl.CameraPerspective,
	}
	h.open = true
	return nil
}

// Run drives the frame loop: update, then clear and draw, until the window
// closes. draw3D runs inside the 3D pass; drawUI after it.
func (h *Host) Run(update func(), draw3D func(), drawUI func()) {
	for !rl.WindowShouldClose() {
		h.updateOrbit()
		h.updateGizmo()
		update()

		rl.BeginDrawing()
		rl.ClearBackground(rl.NewColor(24, 26, 30, 255))
		rl.BeginMode3D(h.camera)
		draw3D()
		h.drawGizmo()
		rl.EndMode3D()
		if drawUI != nil {
			drawUI()
		}
		rl.EndDrawing()
	}
}

// Close tears the surface down. Ordering matters: the gizmo lets go of its
// attachment before GPU resources disappear with the window.
func (h *Host) Close() {
	if !h.open {
		return
	}
	h.gizmo.attachedID = ""
	h.open = false
	rl.CloseWindow()
}

// Camera returns the current camera.
func (h *Host) Camera() rl.Camera3D { return h.camera }

// CameraPosition returns the camera position as a geom vector.
func (h *Host) CameraPosition() geom.Vec3 {
	return geom.V3(h.camera.Position.X, h.camera.Position.Y, h.camera.Position.Z)
}

// PositionCamera places the camera along a fixed diagonal scaled to frame a
// target of the given world size, and points the orbit at the target. The
// terrain loader calls this after every load.
func (h *Host) PositionCamera(target geom.Vec3, size float32) {
	if size <= 0 {
		size = 10
	}
	dist := size * cameraFitFactor
	if dist < minDistance {
		dist = minDistance
	}
	h.orbit.goalTarget = target
	h.orbit.goalDistance = dist
	h.orbit.goalYaw = 45
	h.orbit.goalPitch = 40
}

// updateOrbit applies input to the orbit goals and eases the camera toward
// them.
func (h *Host) updateOrbit() {
	o := &h.orbit
	if o.enabled {
		if rl.IsMouseButtonDown(rl.MouseRightButton) {
			delta := rl.GetMouseDelta()
			o.goalYaw += delta.X * orbitSpeed
			o.goalPitch += delta.Y * orbitSpeed
			o.goalPitch = math32.Max(minPitch, math32.Min(maxPitch, o.goalPitch))
		}
		if wheel := rl.GetMouseWheelMove(); wheel != 0 {
			o.goalDistance -= wheel * zoomSpeed
			if o.goalDistance < minDistance {
				o.goalDistance = minDistance
			}
		}
	}

	d := o.damping
	o.yaw += (o.goalYaw - o.yaw) * d
	o.pitch += (o.goalPitch - o.pitch) * d
	o.distance += (o.goalDistance - o.distance) * d
	o.target = o.target.Add(o.goalTarget.Sub(o.target).Scale(d))

	yawRad := o.yaw * rl.Deg2rad
	pitchRad := o.pitch * rl.Deg2rad
	horiz := o.distance * math32.Cos(pitchRad)
	h.camera.Position = rl.NewVector3(
		o.target.X+horiz*math32.Cos(yawRad),
		o.target.Y+o.distance*math32.Sin(pitchRad),
		o.target.Z+horiz*math32.Sin(yawRad),
	)
	h.camera.Target = rl.NewVector3(o.target.X, o.target.Y, o.target.Z)
}

// mouseRay builds the picking ray through the given screen position.
func (h *Host) mouseRay(x, y float32) rl.Ray {
	return rl.GetScreenToWorldRay(rl.NewVector2(x, y), h.camera)
}

// nodeWorldBox is the axis-aligned box around an instance at its current
// transform.
func nodeWorldBox(n reconcile.Node) rl.BoundingBox {
	pos, rot, scale := n.Transform()
	box := geom.RotatedAABB(geom.ScaledAABB(n.LocalBounds(), scale), rot)
	return rl.NewBoundingBox(
		rl.NewVector3(box.Min.X+pos.X, box.Min.Y+pos.Y, box.Min.Z+pos.Z),
		rl.NewVector3(box.Max.X+pos.X, box.Max.Y+pos.Y, box.Max.Z+pos.Z),
	)
}

// PickAsset raycasts against every settled instance and returns the nearest
// hit's asset id.
func (h *Host) PickAsset(x, y float32) (string, bool) {
	ray := h.mouseRay(x, y)
	bestDist := float32(-1)
	bestID := ""
	h.rec.Each(func(in *reconcile.Instance) {
		if in.Node == nil {
			return
		}
		hit := rl.GetRayCollisionBox(ray, nodeWorldBox(in.Node))
		if hit.Hit && (bestDist < 0 || hit.Distance < bestDist) {
			bestDist = hit.Distance
			bestID = in.ID
		}
	})
	return bestID, bestDist >= 0
}

// PickWorld raycasts against the terrain, falling back to the Y=0 ground
// plane, and returns the world hit point.
func (h *Host) PickWorld(x, y float32) (geom.Vec3, bool) {
	ray := h.mouseRay(x, y)
	if h.world != nil {
		if p, ok := h.world.RayHit(ray); ok {
			return p, true
		}
	}
	if ray.Direction.Y >= 0 {
		return geom.Vec3{}, false
	}
	t := -ray.Position.Y / ray.Direction.Y
	return geom.V3(
		ray.Position.X+ray.Direction.X*t,
		0,
		ray.Position.Z+ray.Direction.Z*t,
	), true
}
