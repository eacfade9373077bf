// Package terrain owns the terrain mesh lifecycle: loading on URL change,
// bounding box and world↔grid mapping, surface height queries for snapping,
// and the visibility-toggled grid overlay.
package terrain

import (
	"go.uber.org/zap"

	rl "github.com/gen2brain/raylib-go/raylib"

	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/geom"
	"dungeon-editor/internal/grid"
	"dungeon-editor/internal/model"
)

// State is the loader's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

// Selection is the payload of the terrain:selected topic: which terrain to
// load and its declared grid dimensions (0 = infer from the bounding box).
type Selection struct {
	ID     string
	URL    string
	Width  int
	Height int
}

// overlayColor and overlayAlpha style the grid overlay lines.
var overlayColor = rl.NewColor(160, 160, 160, 120)

// CameraFitter repositions the camera to frame a newly loaded terrain.
type CameraFitter interface {
	PositionCamera(target geom.Vec3, size float32)
}

// Loader loads and owns the terrain model.
type Loader struct {
	log     *zap.Logger
	bus     *eventbus.Bus
	files   *model.Loader
	host    CameraFitter
	onError func(msg string)

	cellSize       float32
	fallbackExtent float32
	fallbackDivs   int

	state     State
	terrainID string
	hasModel  bool
	mdl       rl.Model
	box       geom.AABB
	center    geom.Vec3

	mapper     grid.Mapper
	hasMapper  bool
	overlayOn  bool
	generation int // invalidates stale async load results after a URL change
}

// NewLoader wires a terrain loader. cellSize is the configured cell scale
// used when a terrain declares no grid dimensions; fallbackExtent is the
// half-size of the ground plane used when no terrain is loaded, divided into
// fallbackDivs cells per axis (cellSize-stepped when fallbackDivs is 0).
func NewLoader(log *zap.Logger, bus *eventbus.Bus, files *model.Loader, host CameraFitter,
	cellSize, fallbackExtent float32, fallbackDivs int, overlayVisible bool, onError func(msg string)) *Loader {
	if onError == nil {
		onError = func(string) {}
	}
	l := &Loader{
		log:            log,
		bus:            bus,
		files:          files,
		host:           host,
		onError:        onError,
		cellSize:       cellSize,
		fallbackExtent: fallbackExtent,
		fallbackDivs:   fallbackDivs,
		overlayOn:      overlayVisible,
	}
	bus.On(eventbus.TopicTerrainSelected, "terrain", func(payload any) {
		if sel, ok := payload.(Selection); ok {
			l.SetTerrain(sel)
		}
	})
	bus.On(eventbus.TopicGridToggle, "terrain", func(payload any) {
		if visible, ok := payload.(bool); ok {
			l.overlayOn = visible
		} else {
			l.overlayOn = !l.overlayOn
		}
	})
	return l
}

// State returns the loader's lifecycle state.
func (l *Loader) State() State { return l.state }

// TerrainID returns the id of the current terrain, used to scope persistence.
func (l *Loader) TerrainID() string { return l.terrainID }

// SetTerrain switches terrains. An empty URL skips loading and installs the
// fallback ground extent, sized by the declared dimensions when present.
func (l *Loader) SetTerrain(sel Selection) {
	l.generation++
	gen := l.generation
	l.terrainID = sel.ID
	l.dispose()

	if sel.URL == "" {
		l.installFallback(sel.Width, sel.Height)
		return
	}

	l.state = StateLoading
	l.files.FetchFile(sel.URL, func(path string, err error) {
		if gen != l.generation {
			return // a newer terrain was selected while this fetch ran
		}
		if err != nil {
			l.fail(sel.URL, err.Error())
			return
		}
		l.install(path, sel.Width, sel.Height)
	})
}

func (l *Loader) fail(url, msg string) {
	l.state = StateFailed
	l.log.Error("terrain load failed", zap.String("url", url), zap.String("err", msg))
	l.onError("failed to load terrain: " + msg)
	l.bus.Emit(eventbus.TopicTerrainError, msg)
}

// install creates the GPU model and derives box, mapper, and camera framing.
// Runs on the main thread via the file loader's queue.
func (l *Loader) install(path string, widthCells, heightCells int) {
	m := rl.LoadModel(path)
	if m.MeshCount == 0 {
		l.fail(path, "no meshes in terrain model")
		return
	}
	l.mdl = m
	l.hasModel = true

	box := rl.GetModelBoundingBox(m)
	l.box = geom.AABB{
		Min: geom.V3(box.Min.X, box.Min.Y, box.Min.Z),
		Max: geom.V3(box.Max.X, box.Max.Y, box.Max.Z),
	}
	l.center = l.box.Center()
	size := l.box.Size()

	if widthCells > 0 && heightCells > 0 {
		l.mapper = grid.NewMapper(l.box.Min.X, l.box.Min.Z, size.X, size.Z, widthCells, heightCells)
	} else {
		l.mapper = grid.NewMapperCellSize(l.box.Min.X, l.box.Min.Z, size.X, size.Z, l.cellSize)
	}
	l.hasMapper = true

	fit := size.X
	if size.Z > fit {
		fit = size.Z
	}
	l.host.PositionCamera(l.center, fit)

	l.state = StateLoaded
	l.log.Info("terrain loaded",
		zap.String("terrain", l.terrainID),
		zap.Int("cellsX", l.mapper.CellsX),
		zap.Int("cellsZ", l.mapper.CellsZ))
	l.bus.Emit(eventbus.TopicTerrainLoaded, l.terrainID)
}

// installFallback builds a flat ground extent when no terrain URL is given:
// declared layout dimensions when available, the configured default extent
// otherwise.
func (l *Loader) installFallback(widthCells, heightCells int) {
	ext := l.fallbackExtent
	switch {
	case widthCells > 0 && heightCells > 0:
		l.mapper = grid.NewMapper(
			-float32(widthCells)*l.cellSize/2, -float32(heightCells)*l.cellSize/2,
			float32(widthCells)*l.cellSize, float32(heightCells)*l.cellSize,
			widthCells, heightCells)
	case l.fallbackDivs > 0:
		l.mapper = grid.NewMapper(-ext, -ext, ext*2, ext*2, l.fallbackDivs, l.fallbackDivs)
	default:
		l.mapper = grid.NewMapperCellSize(-ext, -ext, ext*2, ext*2, l.cellSize)
	}
	l.hasMapper = true
	l.box = geom.AABB{
		Min: geom.V3(l.mapper.MinX, 0, l.mapper.MinZ),
		Max: geom.V3(l.mapper.MinX+float32(l.mapper.CellsX)*l.mapper.StepX, 0,
			l.mapper.MinZ+float32(l.mapper.CellsZ)*l.mapper.StepZ),
	}
	l.center = l.box.Center()
	size := l.box.Size()
	fit := size.X
	if size.Z > fit {
		fit = size.Z
	}
	l.host.PositionCamera(l.center, fit)
	l.state = StateLoaded
	l.bus.Emit(eventbus.TopicTerrainLoaded, l.terrainID)
}

func (l *Loader) dispose() {
	if l.hasModel {
		rl.UnloadModel(l.mdl)
		l.hasModel = false
	}
	l.hasMapper = false
	l.state = StateIdle
}

// Unload disposes the terrain and resets to idle.
func (l *Loader) Unload() { l.dispose() }

// Mapper returns the current grid mapper.
func (l *Loader) Mapper() (grid.Mapper, bool) { return l.mapper, l.hasMapper }

// Bounds returns the terrain bounding box (or the fallback extent).
func (l *Loader) Bounds() (geom.AABB, bool) { return l.box, l.hasMapper }

// Surface returns the current supporting surface: the terrain mesh when one
// is loaded, a flat ground plane otherwise.
func (l *Loader) Surface() geom.Surface {
	if l.hasModel {
		return l
	}
	return geom.FlatGround{Y: 0}
}

// HeightAt raycasts straight down from above the terrain at (x, z) and
// returns the surface height. ok is false when the ray misses the mesh.
func (l *Loader) HeightAt(x, z float32) (float32, bool) {
	if !l.hasModel {
		return 0, false
	}
	ray := rl.NewRay(
		rl.NewVector3(x, l.box.Max.Y+1, z),
		rl.NewVector3(0, -1, 0),
	)
	best := float32(-1)
	hitY := float32(0)
	for _, mesh := range l.mdl.GetMeshes() {
		hit := rl.GetRayCollisionMesh(ray, mesh, l.mdl.Transform)
		if hit.Hit && (best < 0 || hit.Distance < best) {
			best = hit.Distance
			hitY = hit.Point.Y
		}
	}
	if best < 0 {
		return 0, false
	}
	return hitY, true
}

// RayHit intersects an arbitrary ray with the terrain mesh, for picking. ok
// is false when no terrain is loaded or the ray misses.
func (l *Loader) RayHit(ray rl.Ray) (geom.Vec3, bool) {
	if !l.hasModel {
		return geom.Vec3{}, false
	}
	best := float32(-1)
	var point rl.Vector3
	for _, mesh := range l.mdl.GetMeshes() {
		hit := rl.GetRayCollisionMesh(ray, mesh, l.mdl.Transform)
		if hit.Hit && (best < 0 || hit.Distance < best) {
			best = hit.Distance
			point = hit.Point
		}
	}
	if best < 0 {
		return geom.Vec3{}, false
	}
	return geom.V3(point.X, point.Y, point.Z), true
}

// Draw renders the terrain model and, when visible, the grid overlay. Call
// between BeginMode3D and EndMode3D.
func (l *Loader) Draw() {
	if l.hasModel {
		rl.DrawModel(l.mdl, rl.NewVector3(0, 0, 0), 1, rl.White)
	}
	if l.overlayOn && l.hasMapper {
		l.drawOverlay()
	}
}

// drawOverlay draws cell boundary lines across the mapped extent, slightly
// above the surface so they are not z-fought away by the terrain.
func (l *Loader) drawOverlay() {
	const lift = 0.02
	m := l.mapper
	maxX := m.MinX + float32(m.CellsX)*m.StepX
	maxZ := m.MinZ + float32(m.CellsZ)*m.StepZ
	y := l.box.Max.Y + lift
	var start, end rl.Vector3
	for i := 0; i <= m.CellsX; i++ {
		x := m.MinX + float32(i)*m.StepX
		start.X, start.Y, start.Z = x, y, m.MinZ
		end.X, end.Y, end.Z = x, y, maxZ
		rl.DrawLine3D(start, end, overlayColor)
	}
	for j := 0; j <= m.CellsZ; j++ {
		z := m.MinZ + float32(j)*m.StepZ
		start.X, start.Y, start.Z = m.MinX, y, z
		end.X, end.Y, end.Z = maxX, y, z
		rl.DrawLine3D(start, end, overlayColor)
	}
}
