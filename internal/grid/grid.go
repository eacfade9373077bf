// Package grid maps world ground positions to addressable terrain cells. The
// Mapper is the single source of truth for "what cell does this point belong
// to": the live placement cursor and the final commit both resolve through it,
// so the cell shown during a drag is the cell committed on drop.
package grid

import (
	"github.com/chewxy/math32"
)

// Cell identifies one grid cell and carries its world-space center and step.
type Cell struct {
	GridX   int
	GridZ   int
	CenterX float32
	CenterZ float32
	StepX   float32
	StepZ   float32
}

// Mapper partitions a rectangular world extent into CellsX×CellsZ cells.
// The zero value is not usable; construct with NewMapper or NewMapperCellSize.
type Mapper struct {
	MinX   float32
	MinZ   float32
	StepX  float32
	StepZ  float32
	CellsX int
	CellsZ int
}

// NewMapper builds a mapper over the extent starting at (minX, minZ) with the
// given world size and an explicit cell count per axis, the form used when the
// terrain metadata declares its grid dimensions.
func NewMapper(minX, minZ, sizeX, sizeZ float32, cellsX, cellsZ int) Mapper {
	if cellsX < 1 {
		cellsX = 1
	}
	if cellsZ < 1 {
		cellsZ = 1
	}
	return Mapper{
		MinX:   minX,
		MinZ:   minZ,
		StepX:  sizeX / float32(cellsX),
		StepZ:  sizeZ / float32(cellsZ),
		CellsX: cellsX,
		CellsZ: cellsZ,
	}
}

// NewMapperCellSize builds a mapper by inferring cell counts from the extent
// and a configured cell size, the fallback when the terrain only exposes a
// bounding box.
func NewMapperCellSize(minX, minZ, sizeX, sizeZ, cellSize float32) Mapper {
	if cellSize <= 0 {
		cellSize = 1
	}
	cellsX := int(math32.Round(sizeX / cellSize))
	cellsZ := int(math32.Round(sizeZ / cellSize))
	return NewMapper(minX, minZ, sizeX, sizeZ, cellsX, cellsZ)
}

// Valid reports whether the mapper covers a non-degenerate extent.
func (m Mapper) Valid() bool {
	return m.CellsX > 0 && m.CellsZ > 0 && m.StepX > 0 && m.StepZ > 0
}

// CellAt resolves a world ground position to its cell. ok is false when the
// point lies outside the mapped extent.
func (m Mapper) CellAt(x, z float32) (Cell, bool) {
	if !m.Valid() {
		return Cell{}, false
	}
	gx := int(math32.Floor((x - m.MinX) / m.StepX))
	gz := int(math32.Floor((z - m.MinZ) / m.StepZ))
	return m.CellByIndex(gx, gz)
}

// CellByIndex returns the cell at the given indices, or ok=false when the
// indices fall outside the grid.
func (m Mapper) CellByIndex(gx, gz int) (Cell, bool) {
	if !m.Valid() || gx < 0 || gz < 0 || gx >= m.CellsX || gz >= m.CellsZ {
		return Cell{}, false
	}
	return Cell{
		GridX:   gx,
		GridZ:   gz,
		CenterX: m.MinX + (float32(gx)+0.5)*m.StepX,
		CenterZ: m.MinZ + (float32(gz)+0.5)*m.StepZ,
		StepX:   m.StepX,
		StepZ:   m.StepZ,
	}, true
}

// SameCell reports whether two cells address the same grid position.
func SameCell(a, b Cell) bool {
	return a.GridX == b.GridX && a.GridZ == b.GridZ
}

// Index is a cell→occupant map enforcing at most one asset per cell. It is a
// derived view: the record list stays the source of truth, and occupancy
// queries rebuild the index from it.
type Index struct {
	cells map[[2]int]string
}

// NewIndex returns an empty occupancy index.
func NewIndex() *Index {
	return &Index{cells: make(map[[2]int]string)}
}

// BuildIndex places every record position that resolves to a cell. Records
// outside the mapped extent are skipped; on a collision the earlier occupant
// keeps the cell.
func BuildIndex(m Mapper, positions func(fn func(id string, x, z float32))) *Index {
	idx := NewIndex()
	positions(func(id string, x, z float32) {
		if cell, ok := m.CellAt(x, z); ok {
			idx.Place(cell, id)
		}
	})
	return idx
}

// Place records id as the occupant of cell. It reports false without
// overwriting when the cell is already held by another asset.
func (i *Index) Place(cell Cell, id string) bool {
	key := [2]int{cell.GridX, cell.GridZ}
	if held, ok := i.cells[key]; ok && held != id {
		return false
	}
	i.cells[key] = id
	return true
}

// Move reattempts placement in to, releasing from on success.
func (i *Index) Move(from, to Cell, id string) bool {
	if SameCell(from, to) {
		return true
	}
	if !i.Place(to, id) {
		return false
	}
	i.Remove(from, id)
	return true
}

// Remove releases cell if id is its occupant.
func (i *Index) Remove(cell Cell, id string) {
	key := [2]int{cell.GridX, cell.GridZ}
	if i.cells[key] == id {
		delete(i.cells, key)
	}
}

// OccupantAt returns the asset id holding cell.
func (i *Index) OccupantAt(cell Cell) (string, bool) {
	id, ok := i.cells[[2]int{cell.GridX, cell.GridZ}]
	return id, ok
}

// Highlight is the payload for the grid highlight topic: the hovered cell and
// whether it is already occupied by another asset.
type Highlight struct {
	Cell     Cell
	Occupied bool
}
