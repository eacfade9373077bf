// Package highlight renders the transient cell cursor: one translucent quad
// over the grid cell under the pointer, green when free and red when
// occupied.
package highlight

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/geom"
	"dungeon-editor/internal/grid"
)

// Quad colors with fixed opacities.
var (
	freeColor     = rl.NewColor(80, 220, 100, 110)
	occupiedColor = rl.NewColor(230, 70, 60, 140)
)

// quadLift keeps the quad just above the surface to avoid z-fighting.
const quadLift = 0.03

// Highlighter holds at most one current highlight. It is purely reactive:
// state changes only through the grid highlight topics.
type Highlighter struct {
	active   bool
	cell     grid.Cell
	occupied bool
	surface  func() geom.Surface
}

// New subscribes a highlighter to bus. surface supplies the height the quad
// is drawn at.
func New(bus *eventbus.Bus, surface func() geom.Surface) *Highlighter {
	h := &Highlighter{surface: surface}
	bus.On(eventbus.TopicGridHighlight, "highlight", func(payload any) {
		if hl, ok := payload.(grid.Highlight); ok {
			h.active = true
			h.cell = hl.Cell
			h.occupied = hl.Occupied
		}
	})
	bus.On(eventbus.TopicGridClearHighlight, "highlight", func(any) {
		h.active = false
	})
	return h
}

// Active reports whether a cell is currently highlighted.
func (h *Highlighter) Active() bool { return h.active }

// Draw renders the highlight quad. Call between BeginMode3D and EndMode3D.
func (h *Highlighter) Draw() {
	if !h.active {
		return
	}
	y := float32(0)
	if hy, ok := h.surface().HeightAt(h.cell.CenterX, h.cell.CenterZ); ok {
		y = hy
	}
	color := freeColor
	if h.occupied {
		color = occupiedColor
	}
	rl.DrawCubeV(
		rl.NewVector3(h.cell.CenterX, y+quadLift, h.cell.CenterZ),
		rl.NewVector3(h.cell.StepX, 0.001, h.cell.StepZ),
		color,
	)
}
