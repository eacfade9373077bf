// Package interact owns the pointer state machine: click-to-select, pick-up
// then re-click to move, and drag placement. It never touches scene nodes; it
// resolves pointer positions through a Picker, validates placements against
// the grid, and requests mutations over the event bus.
package interact

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/geom"
	"dungeon-editor/internal/grid"
)

// Mode is the interaction state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSelected
	ModePickedUp
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSelected:
		return "selected"
	case ModePickedUp:
		return "picked-up"
	default:
		return "unknown"
	}
}

// PlacementResult is the outcome of a placement validation. Rejections carry
// no event: a rejected placement simply does not happen.
type PlacementResult int

const (
	Accepted PlacementResult = iota
	RejectedOccupied
	RejectedOutOfBounds
)

// String returns a short result name for logs.
func (p PlacementResult) String() string {
	switch p {
	case Accepted:
		return "accepted"
	case RejectedOccupied:
		return "rejected-occupied"
	case RejectedOutOfBounds:
		return "rejected-out-of-bounds"
	default:
		return "unknown"
	}
}

// Picker resolves screen positions to scene content. The scene host
// implements it with camera raycasts; tests substitute a table-driven fake.
type Picker interface {
	// PickAsset raycasts against the known asset instances and returns the
	// hit asset's id.
	PickAsset(x, y float32) (string, bool)
	// PickWorld raycasts against the terrain (or ground plane) and returns
	// the world-space hit point.
	PickWorld(x, y float32) (geom.Vec3, bool)
}

// DropPayload is the parsed content of a drag placement: which model is being
// dropped and its declared starting rotation.
type DropPayload struct {
	Name     string
	ModelURL string
	Rotation geom.Vec3
}

// Controller drives the interaction state machine.
type Controller struct {
	log    *zap.Logger
	bus    *eventbus.Bus
	picker Picker

	// mapper and surface reflect the currently loaded terrain; records is the
	// external declarative list occupancy is computed against; bounds supplies
	// an instance's local bounds for re-snapping transform edits.
	mapper  func() (grid.Mapper, bool)
	surface func() geom.Surface
	records func() []asset.Record
	bounds  func(id string) (geom.AABB, bool)

	mode        Mode
	selectedID  string
	highlighted *grid.Cell

	newID func(name string) string
}

// New wires a controller. All four accessors are required.
func New(log *zap.Logger, bus *eventbus.Bus, picker Picker,
	mapper func() (grid.Mapper, bool),
	surface func() geom.Surface,
	records func() []asset.Record,
	bounds func(id string) (geom.AABB, bool)) *Controller {
	return &Controller{
		log:     log,
		bus:     bus,
		picker:  picker,
		mapper:  mapper,
		surface: surface,
		records: records,
		bounds:  bounds,
		newID:   mintDropID,
	}
}

// mintDropID builds a placement id from the asset name, a millisecond
// timestamp, and a short random suffix to break same-millisecond collisions.
func mintDropID(name string) string {
	return fmt.Sprintf("dragdrop-%s-%d-%s", name, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Mode returns the current interaction state.
func (c *Controller) Mode() Mode { return c.mode }

// SelectedID returns the selected asset id, or "" when nothing is selected.
func (c *Controller) SelectedID() string { return c.selectedID }

// Click handles a primary click at screen position (x, y). In picked-up mode
// it attempts to commit the move; otherwise it selects or deselects.
func (c *Controller) Click(x, y float32) {
	if c.mode == ModePickedUp {
		c.commitMove(x, y)
		return
	}
	if id, ok := c.picker.PickAsset(x, y); ok {
		c.setSelected(id)
		c.mode = ModeSelected
		return
	}
	c.setSelected("")
	c.mode = ModeIdle
}

func (c *Controller) setSelected(id string) {
	if id == c.selectedID {
		return
	}
	c.selectedID = id
	c.bus.Emit(eventbus.TopicAssetSelected, id)
}

// BeginMove switches to picked-up mode for the given asset. Called from the
// selection affordance; announces the move so the host can park the gizmo.
func (c *Controller) BeginMove(id string) {
	if id == "" {
		return
	}
	c.setSelected(id)
	c.mode = ModePickedUp
	c.bus.Emit(eventbus.TopicAssetMoveStarted, id)
}

// CancelMove force-returns the controller to idle without emitting any
// mutation event; only the transient cursor highlight is cleared. The owning
// UI calls this on escape.
func (c *Controller) CancelMove() {
	c.mode = ModeIdle
	c.clearHighlight()
}

// commitMove resolves the click to a cell and, if the placement is accepted,
// emits the updated record with the cell center and a re-snapped Y.
func (c *Controller) commitMove(x, y float32) {
	cell, ok := c.cellUnder(x, y)
	if !ok {
		return // outside the grid: stay picked up
	}
	if c.occupiedBy(cell, c.selectedID) {
		return // silently rejected, cursor already shows occupied
	}
	rec, ok := c.findRecord(c.selectedID)
	if !ok {
		c.CancelMove()
		return
	}
	rec.Position = geom.Vec3{X: cell.CenterX, Y: c.snappedY(rec, cell), Z: cell.CenterZ}
	c.bus.Emit(eventbus.TopicAssetUpdated, asset.Mutation{Kind: asset.KindUpdated, Record: rec})
	c.mode = ModeIdle
	c.clearHighlight()
}

// snappedY derives the committed Y from the instance bounds at the record's
// rotation and scale, resting its base on the surface at the cell center.
func (c *Controller) snappedY(rec asset.Record, cell grid.Cell) float32 {
	local, ok := c.bounds(rec.ID)
	if !ok {
		local = geom.AABB{} // pending load: reconciler re-snaps on settle
	}
	if y, ok := geom.SnapY(c.surface(), local, cell.CenterX, cell.CenterZ, rec.Rotation, rec.Scale); ok {
		return y
	}
	return rec.Position.Y
}

// PointerMove updates the transient cell highlight while an asset is picked
// up. It emits grid:highlight only when the hovered cell changes.
func (c *Controller) PointerMove(x, y float32) {
	if c.mode != ModePickedUp {
		return
	}
	c.highlightUnder(x, y, c.selectedID)
}

// DragOver performs the drag placement's hover step and reports whether a
// drop at this position would be accepted, for the caller's drop affordance.
func (c *Controller) DragOver(x, y float32) bool {
	cell, ok := c.highlightUnder(x, y, "")
	if !ok {
		return false
	}
	return c.CanDrop(cell)
}

// highlightUnder resolves the pointer to a cell and maintains the highlight,
// excluding excludeID from the occupancy check.
func (c *Controller) highlightUnder(x, y float32, excludeID string) (grid.Cell, bool) {
	cell, ok := c.cellUnder(x, y)
	if !ok {
		c.clearHighlight()
		return grid.Cell{}, false
	}
	if c.highlighted != nil && grid.SameCell(*c.highlighted, cell) {
		return cell, true
	}
	held := cell
	c.highlighted = &held
	c.bus.Emit(eventbus.TopicGridHighlight, grid.Highlight{
		Cell:     cell,
		Occupied: c.occupiedBy(cell, excludeID),
	})
	return cell, true
}

func (c *Controller) clearHighlight() {
	if c.highlighted == nil {
		return
	}
	c.highlighted = nil
	c.bus.Emit(eventbus.TopicGridClearHighlight, nil)
}

// Drop commits a drag placement. On acceptance it emits an added record with
// a minted id, the cell center, the payload's declared rotation, and a scale
// derived from the cell step so the dropped asset visually fills its cell.
func (c *Controller) Drop(x, y float32, payload DropPayload) PlacementResult {
	cell, ok := c.cellUnder(x, y)
	if !ok {
		c.clearHighlight()
		return RejectedOutOfBounds
	}
	if !c.CanDrop(cell) {
		c.log.Debug("drop rejected", zap.Int("gridX", cell.GridX), zap.Int("gridZ", cell.GridZ))
		return RejectedOccupied
	}
	step := cell.StepX
	if cell.StepZ < step {
		step = cell.StepZ
	}
	rec := asset.Record{
		ID:       c.newID(payload.Name),
		ModelURL: payload.ModelURL,
		Name:     payload.Name,
		Position: geom.Vec3{X: cell.CenterX, Y: c.groundY(cell), Z: cell.CenterZ},
		Rotation: payload.Rotation,
		Scale:    geom.Vec3{X: step, Y: step, Z: step},
	}
	c.bus.Emit(eventbus.TopicAssetAdded, asset.Mutation{Kind: asset.KindAdded, Record: rec})
	c.clearHighlight()
	return Accepted
}

// groundY is the surface height at the cell center. The exact base offset is
// applied by the reconciler once the model's bounds are known.
func (c *Controller) groundY(cell grid.Cell) float32 {
	if y, ok := c.surface().HeightAt(cell.CenterX, cell.CenterZ); ok {
		return y
	}
	return 0
}

// CanDrop reports whether a new asset may be placed in cell.
func (c *Controller) CanDrop(cell grid.Cell) bool {
	return !c.occupiedBy(cell, "")
}

// ApplyTransformEdit commits a rotation/scale edit for id, recomputing the
// snapped Y from the bounds at the candidate transform. Scale and rotation
// edits re-snap rather than merely translating.
func (c *Controller) ApplyTransformEdit(id string, rotDeg, scale geom.Vec3) bool {
	rec, ok := c.findRecord(id)
	if !ok {
		return false
	}
	rec.Rotation = rotDeg
	rec.Scale = scale
	local, haveBounds := c.bounds(id)
	if haveBounds {
		if y, ok := geom.SnapY(c.surface(), local, rec.Position.X, rec.Position.Z, rotDeg, scale); ok {
			rec.Position.Y = y
		}
	}
	c.bus.Emit(eventbus.TopicAssetUpdated, asset.Mutation{Kind: asset.KindUpdated, Record: rec})
	return true
}

// Delete emits a deletion for the given asset and drops the selection.
func (c *Controller) Delete(id string) {
	rec, ok := c.findRecord(id)
	if !ok {
		rec = asset.Record{ID: id}
	}
	c.bus.Emit(eventbus.TopicAssetDeleted, asset.Mutation{Kind: asset.KindDeleted, Record: rec})
	if c.selectedID == id {
		c.setSelected("")
		c.mode = ModeIdle
	}
}

func (c *Controller) cellUnder(x, y float32) (grid.Cell, bool) {
	m, ok := c.mapper()
	if !ok {
		return grid.Cell{}, false
	}
	point, ok := c.picker.PickWorld(x, y)
	if !ok {
		return grid.Cell{}, false
	}
	return m.CellAt(point.X, point.Z)
}

// occupiedBy reports whether another asset already resolves to cell. The
// occupancy index is rebuilt from the record list on every query; the asset
// being moved is excluded.
func (c *Controller) occupiedBy(cell grid.Cell, excludeID string) bool {
	m, ok := c.mapper()
	if !ok {
		return false
	}
	idx := grid.BuildIndex(m, func(fn func(id string, x, z float32)) {
		for _, rec := range c.records() {
			if rec.ID == excludeID {
				continue
			}
			fn(rec.ID, rec.Position.X, rec.Position.Z)
		}
	})
	_, occupied := idx.OccupantAt(cell)
	return occupied
}

func (c *Controller) findRecord(id string) (asset.Record, bool) {
	for _, rec := range c.records() {
		if rec.ID == id {
			return rec, true
		}
	}
	return asset.Record{}, false
}
