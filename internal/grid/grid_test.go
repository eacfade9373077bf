package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tenByTen is an origin-centered 10×10 grid with 2-unit cells: the extent
// spans -10..10 on both ground axes.
func tenByTen() Mapper {
	return NewMapper(-10, -10, 20, 20, 10, 10)
}

func TestCellAt(t *testing.T) {
	m := tenByTen()

	cell, ok := m.CellAt(3.1, -4.9)
	require.True(t, ok)
	assert.Equal(t, 6, cell.GridX)
	assert.Equal(t, 2, cell.GridZ)
	assert.InDelta(t, 3.0, cell.CenterX, 1e-4)
	assert.InDelta(t, -5.0, cell.CenterZ, 1e-4)
	assert.InDelta(t, 2.0, cell.StepX, 1e-4)
	assert.InDelta(t, 2.0, cell.StepZ, 1e-4)
}

func TestCellAtCorners(t *testing.T) {
	m := tenByTen()

	cell, ok := m.CellAt(-10, -10)
	require.True(t, ok)
	assert.Equal(t, 0, cell.GridX)
	assert.Equal(t, 0, cell.GridZ)

	// The max edge belongs to no cell; the last representable point does.
	_, ok = m.CellAt(10, 10)
	assert.False(t, ok)
	cell, ok = m.CellAt(9.99, 9.99)
	require.True(t, ok)
	assert.Equal(t, 9, cell.GridX)
	assert.Equal(t, 9, cell.GridZ)
}

func TestCellAtOutside(t *testing.T) {
	m := tenByTen()
	for _, p := range [][2]float32{{-10.01, 0}, {0, -10.01}, {10.5, 0}, {0, 88}} {
		_, ok := m.CellAt(p[0], p[1])
		assert.False(t, ok, "point (%v, %v) lies outside the extent", p[0], p[1])
	}
}

func TestCellByIndex(t *testing.T) {
	m := tenByTen()

	cell, ok := m.CellByIndex(4, 7)
	require.True(t, ok)
	assert.InDelta(t, -1.0, cell.CenterX, 1e-4)
	assert.InDelta(t, 5.0, cell.CenterZ, 1e-4)

	for _, idx := range [][2]int{{-1, 0}, {0, -1}, {10, 0}, {0, 10}} {
		_, ok := m.CellByIndex(idx[0], idx[1])
		assert.False(t, ok)
	}
}

func TestNewMapperCellSizeInference(t *testing.T) {
	m := NewMapperCellSize(-10, -10, 20, 20, 2)
	assert.Equal(t, 10, m.CellsX)
	assert.Equal(t, 10, m.CellsZ)
	assert.InDelta(t, 2.0, m.StepX, 1e-4)

	// A slightly off extent still rounds to a whole cell count.
	m = NewMapperCellSize(0, 0, 19.6, 20.4, 2)
	assert.Equal(t, 10, m.CellsX)
	assert.Equal(t, 10, m.CellsZ)
}

func TestNewMapperClampsDegenerateCounts(t *testing.T) {
	m := NewMapper(0, 0, 10, 10, 0, -3)
	assert.Equal(t, 1, m.CellsX)
	assert.Equal(t, 1, m.CellsZ)
	assert.True(t, m.Valid())
}

func TestZeroMapperInvalid(t *testing.T) {
	var m Mapper
	assert.False(t, m.Valid())
	_, ok := m.CellAt(0, 0)
	assert.False(t, ok)
}

func TestIndexPlaceExclusivity(t *testing.T) {
	m := tenByTen()
	idx := NewIndex()
	cell, _ := m.CellAt(3, -5)

	assert.True(t, idx.Place(cell, "crate"))
	assert.False(t, idx.Place(cell, "barrel"), "one asset per cell")
	assert.True(t, idx.Place(cell, "crate"), "re-placing the occupant is fine")

	id, ok := idx.OccupantAt(cell)
	require.True(t, ok)
	assert.Equal(t, "crate", id)
}

func TestIndexMove(t *testing.T) {
	m := tenByTen()
	idx := NewIndex()
	a, _ := m.CellAt(1, 1)
	b, _ := m.CellAt(5, 5)
	c, _ := m.CellAt(-3, -3)
	idx.Place(a, "crate")
	idx.Place(b, "barrel")

	assert.False(t, idx.Move(a, b, "crate"), "destination held by another asset")
	_, stillThere := idx.OccupantAt(a)
	assert.True(t, stillThere, "failed move leaves the source untouched")

	assert.True(t, idx.Move(a, c, "crate"))
	_, vacated := idx.OccupantAt(a)
	assert.False(t, vacated)
	id, _ := idx.OccupantAt(c)
	assert.Equal(t, "crate", id)

	assert.True(t, idx.Move(c, c, "crate"), "moving in place is a no-op")
}

func TestIndexRemove(t *testing.T) {
	m := tenByTen()
	idx := NewIndex()
	cell, _ := m.CellAt(0, 0)
	idx.Place(cell, "crate")

	idx.Remove(cell, "someone-else") // wrong occupant: no effect
	_, ok := idx.OccupantAt(cell)
	assert.True(t, ok)

	idx.Remove(cell, "crate")
	_, ok = idx.OccupantAt(cell)
	assert.False(t, ok)
}

func TestBuildIndexSkipsOutOfBounds(t *testing.T) {
	m := tenByTen()
	idx := BuildIndex(m, func(fn func(id string, x, z float32)) {
		fn("in", 3, -5)
		fn("out", 99, 99)
	})

	cell, _ := m.CellAt(3, -5)
	id, ok := idx.OccupantAt(cell)
	require.True(t, ok)
	assert.Equal(t, "in", id)
}

func TestSameCell(t *testing.T) {
	m := tenByTen()
	a, _ := m.CellAt(3.1, -4.9)
	b, _ := m.CellAt(2.5, -4.1) // different point, same cell
	c, _ := m.CellAt(1.9, -4.9)
	assert.True(t, SameCell(a, b))
	assert.False(t, SameCell(a, c))
}
