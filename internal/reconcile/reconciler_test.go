package reconcile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/geom"
)

// fakeNode counts lifecycle calls so tests can assert on disposal behavior.
type fakeNode struct {
	pos, rot, scale geom.Vec3
	local           geom.AABB
	released        int
}

func (n *fakeNode) SetTransform(pos, rot, scale geom.Vec3) { n.pos, n.rot, n.scale = pos, rot, scale }
func (n *fakeNode) Transform() (geom.Vec3, geom.Vec3, geom.Vec3) {
	return n.pos, n.rot, n.scale
}
func (n *fakeNode) LocalBounds() geom.AABB { return n.local }
func (n *fakeNode) Draw(geom.Vec3)         {}
func (n *fakeNode) Release()               { n.released++ }

// fakeSource holds load completions until the test settles them, standing in
// for the main-thread completion queue.
type fakeSource struct {
	loads   int
	pending []func(Node, error)
}

func (s *fakeSource) Load(url string, done func(Node, error)) {
	s.loads++
	s.pending = append(s.pending, done)
}

// settle completes the oldest outstanding load.
func (s *fakeSource) settle(n Node, err error) {
	done := s.pending[0]
	s.pending = s.pending[1:]
	done(n, err)
}

type fakeGizmo struct{ detached []string }

func (g *fakeGizmo) Detach(id string) { g.detached = append(g.detached, id) }

func flatSurface() geom.Surface { return geom.FlatGround{} }

func newTestReconciler(t *testing.T) (*Reconciler, *fakeSource, *fakeGizmo) {
	t.Helper()
	src := &fakeSource{}
	giz := &fakeGizmo{}
	return New(zap.NewNop(), src, flatSurface, giz, nil), src, giz
}

func added(id string) asset.Mutation {
	return asset.Mutation{Kind: asset.KindAdded, Record: asset.Record{ID: id, ModelURL: id + ".glb"}}
}

func deleted(id string) asset.Mutation {
	return asset.Mutation{Kind: asset.KindDeleted, Record: asset.Record{ID: id}}
}

func TestAddRegistersPlaceholderBeforeLoadSettles(t *testing.T) {
	r, src, _ := newTestReconciler(t)

	r.Apply(added("crate"))
	require.Equal(t, 1, r.Len())
	in, ok := r.Lookup("crate")
	require.True(t, ok)
	assert.True(t, in.Pending())

	src.settle(&fakeNode{}, nil)
	assert.False(t, in.Pending())
}

func TestDuplicateAddLoadsOnce(t *testing.T) {
	r, src, _ := newTestReconciler(t)

	r.Apply(added("crate"))
	r.Apply(added("crate"))
	r.Apply(added("crate"))

	assert.Equal(t, 1, src.loads)
	assert.Equal(t, 1, r.Len())
}

func TestSettleSnapsToSurface(t *testing.T) {
	r, src, _ := newTestReconciler(t)

	m := added("crate")
	m.Record.Position = geom.V3(3, 99, -5) // incoming Y is never trusted
	r.Apply(m)

	node := &fakeNode{local: geom.AABB{Min: geom.V3(-1, -0.25, -1), Max: geom.V3(1, 1.75, 1)}}
	src.settle(node, nil)

	assert.InDelta(t, 0.25, node.pos.Y, 1e-4)
	assert.InDelta(t, 3.0, node.pos.X, 1e-4)
	in, _ := r.Lookup("crate")
	assert.InDelta(t, 0.25, in.Record.Position.Y, 1e-4)
}

func TestDeleteDuringLoadDiscardsResult(t *testing.T) {
	r, src, _ := newTestReconciler(t)

	r.Apply(added("crate"))
	r.Apply(deleted("crate"))
	require.Zero(t, r.Len())

	node := &fakeNode{}
	src.settle(node, nil)

	assert.Equal(t, 1, node.released, "orphaned load result must be released")
	assert.Zero(t, r.Len())
}

func TestLoadFailureRemovesPlaceholder(t *testing.T) {
	var msgs []string
	src := &fakeSource{}
	r := New(zap.NewNop(), src, flatSurface, nil, func(msg string) { msgs = append(msgs, msg) })

	r.Apply(added("crate"))
	src.settle(nil, errors.New("404"))

	assert.Zero(t, r.Len())
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "crate")

	// The id is free again: a retry starts a fresh load.
	r.Apply(added("crate"))
	assert.Equal(t, 2, src.loads)
}

func TestUpdateAppliesTransform(t *testing.T) {
	r, src, _ := newTestReconciler(t)
	r.Apply(added("crate"))
	node := &fakeNode{}
	src.settle(node, nil)

	m := asset.Mutation{Kind: asset.KindUpdated, Record: asset.Record{
		ID:       "crate",
		Position: geom.V3(4, 1, 4),
		Rotation: geom.V3(0, 90, 0),
		Scale:    geom.V3(2, 2, 2),
	}}
	r.Apply(m)

	assert.Equal(t, geom.V3(4, 1, 4), node.pos)
	assert.Equal(t, geom.V3(0, 90, 0), node.rot)
	assert.Equal(t, geom.V3(2, 2, 2), node.scale)
}

func TestGizmoUpdateSkipsNodeWrite(t *testing.T) {
	r, src, _ := newTestReconciler(t)
	r.Apply(added("crate"))
	node := &fakeNode{}
	src.settle(node, nil)
	node.pos = geom.V3(7, 0, 7) // the gizmo already moved the node

	r.Apply(asset.Mutation{
		Kind:      asset.KindUpdated,
		Record:    asset.Record{ID: "crate", Position: geom.V3(7, 0, 7)},
		FromGizmo: true,
	})

	assert.Equal(t, geom.V3(7, 0, 7), node.pos)
	in, _ := r.Lookup("crate")
	assert.Equal(t, geom.V3(7, 0, 7), in.Record.Position, "record catches up to the gizmo")
}

func TestUpdateForUnknownIDIsIgnored(t *testing.T) {
	r, src, _ := newTestReconciler(t)

	r.Apply(asset.Mutation{Kind: asset.KindUpdated, Record: asset.Record{ID: "ghost"}})

	assert.Zero(t, r.Len())
	assert.Zero(t, src.loads, "an update must never start a load")
}

func TestDeleteReleasesAndDetaches(t *testing.T) {
	r, src, giz := newTestReconciler(t)
	r.Apply(added("crate"))
	node := &fakeNode{}
	src.settle(node, nil)

	r.Apply(deleted("crate"))

	assert.Equal(t, 1, node.released)
	assert.Equal(t, []string{"crate"}, giz.detached)
	assert.Zero(t, r.Len())
	_, ok := r.IDForNode(node)
	assert.False(t, ok)
}

func TestDeleteUnknownIDIsNoOp(t *testing.T) {
	r, _, giz := newTestReconciler(t)
	r.Apply(deleted("ghost"))
	assert.Empty(t, giz.detached)
}

func TestRegistryMatchesEventHistory(t *testing.T) {
	r, src, _ := newTestReconciler(t)

	live := map[string]bool{}
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("asset-%d", i%10)
		switch i % 3 {
		case 0, 1:
			r.Apply(added(id))
			if !live[id] {
				src.settle(&fakeNode{}, nil)
			}
			live[id] = true
		case 2:
			r.Apply(deleted(id))
			delete(live, id)
		}
	}

	assert.Equal(t, len(live), r.Len())
	for _, id := range r.IDs() {
		assert.True(t, live[id], "registered id %s has no live added event", id)
	}
}

func TestClearReleasesEverything(t *testing.T) {
	r, src, giz := newTestReconciler(t)
	nodes := make([]*fakeNode, 3)
	for i := range nodes {
		r.Apply(added(fmt.Sprintf("a%d", i)))
		nodes[i] = &fakeNode{}
		src.settle(nodes[i], nil)
	}
	r.Apply(added("pending")) // load still in flight

	r.Clear()

	assert.Zero(t, r.Len())
	for _, n := range nodes {
		assert.Equal(t, 1, n.released)
	}
	assert.Len(t, giz.detached, 4)

	// The in-flight load settles after the clear and is discarded.
	orphan := &fakeNode{}
	src.settle(orphan, nil)
	assert.Equal(t, 1, orphan.released)
}

func TestAttachRoutesBusEvents(t *testing.T) {
	bus := eventbus.New(zap.NewNop())
	r, src, _ := newTestReconciler(t)
	r.Attach(bus)

	bus.Emit(eventbus.TopicAssetAdded, added("crate"))
	require.Equal(t, 1, r.Len())
	src.settle(&fakeNode{}, nil)

	bus.Emit(eventbus.TopicAssetDeleted, deleted("crate"))
	assert.Zero(t, r.Len())

	// visualSync creates instances just like added.
	m := added("remote")
	bus.Emit(eventbus.TopicAssetVisualSync, m)
	assert.Equal(t, 1, r.Len())
}
