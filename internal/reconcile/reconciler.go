// Package reconcile keeps the set of live scene instances equal to the set of
// asset ids implied by incoming mutation events. It is the only writer of
// scene-graph asset nodes; every other subsystem requests changes through the
// event bus.
package reconcile

import (
	"fmt"

	"go.uber.org/zap"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/geom"
)

// Node is the scene-side representation of one placed asset. The raylib
// implementation lives in the model package; tests substitute a counting fake.
type Node interface {
	SetTransform(pos, rotDeg, scale geom.Vec3)
	Transform() (pos, rotDeg, scale geom.Vec3)
	// LocalBounds is the node's local-space bounding box at unit scale.
	LocalBounds() geom.AABB
	// Draw renders the node, choosing a detail tier from the camera distance.
	Draw(camPos geom.Vec3)
	// Release frees the node's geometry and material resources. Must be
	// called exactly once before the node reference is dropped.
	Release()
}

// ModelSource loads a model by URL. done is invoked on the main thread once
// the load settles, with either a ready node or an error.
type ModelSource interface {
	Load(url string, done func(Node, error))
}

// Gizmo is the transform gizmo's non-owning attachment: the reconciler tells
// it to let go of an id before destroying that instance.
type Gizmo interface {
	Detach(id string)
}

// Instance pairs an asset id with its scene node. Node is nil while the model
// load is still in flight; the placeholder entry is registered synchronously
// so a second event for the same id cannot start a duplicate load.
type Instance struct {
	ID     string
	Record asset.Record
	Node   Node
}

// Pending reports whether the instance's model load has not settled yet.
func (in *Instance) Pending() bool { return in.Node == nil }

// Reconciler owns the id→instance registry and its reverse index.
type Reconciler struct {
	log     *zap.Logger
	source  ModelSource
	surface func() geom.Surface
	gizmo   Gizmo
	onError func(msg string)

	instances map[string]*Instance
	nodeIDs   map[Node]string
}

// New returns a reconciler with an empty registry. surface supplies the
// current supporting surface for vertical snapping (it changes when terrain
// changes); gizmo and onError may be nil.
func New(log *zap.Logger, source ModelSource, surface func() geom.Surface, gizmo Gizmo, onError func(msg string)) *Reconciler {
	if onError == nil {
		onError = func(string) {}
	}
	return &Reconciler{
		log:       log,
		source:    source,
		surface:   surface,
		gizmo:     gizmo,
		onError:   onError,
		instances: make(map[string]*Instance),
		nodeIDs:   make(map[Node]string),
	}
}

// Attach subscribes the reconciler to the asset mutation topics.
func (r *Reconciler) Attach(bus *eventbus.Bus) {
	const sub = "reconciler"
	bus.On(eventbus.TopicAssetAdded, sub, r.onMutation)
	bus.On(eventbus.TopicAssetVisualSync, sub, r.onMutation)
	bus.On(eventbus.TopicAssetUpdated, sub, r.onMutation)
	bus.On(eventbus.TopicAssetDeleted, sub, r.onMutation)
}

func (r *Reconciler) onMutation(payload any) {
	m, ok := payload.(asset.Mutation)
	if !ok {
		return
	}
	r.Apply(m)
}

// Apply processes one mutation event. Added and visualSync events for an
// unknown id start a load; events for a known id mutate the instance in place
// (unless FromGizmo, which the gizmo already applied); Deleted destroys it.
func (r *Reconciler) Apply(m asset.Mutation) {
	switch m.Kind {
	case asset.KindAdded, asset.KindUpdated:
		r.upsert(m)
	case asset.KindDeleted:
		r.remove(m.Record.ID)
	}
}

func (r *Reconciler) upsert(m asset.Mutation) {
	id := m.Record.ID
	if id == "" {
		return
	}
	if in, ok := r.instances[id]; ok {
		in.Record = m.Record
		if m.FromGizmo || in.Pending() {
			// FromGizmo: the gizmo mutated the node directly, only the
			// record needs catching up. Pending: the transform is applied
			// when the load settles.
			return
		}
		in.Node.SetTransform(m.Record.Position, m.Record.Rotation, m.Record.Scale)
		return
	}
	if m.Kind == asset.KindUpdated {
		// An update for an id that was never added has nothing to apply to.
		return
	}

	// Unknown id: register the placeholder before the asynchronous load so a
	// repeat event arriving mid-flight is treated as "already exists".
	in := &Instance{ID: id, Record: m.Record}
	r.instances[id] = in
	r.source.Load(m.Record.ModelURL, func(node Node, err error) {
		r.loadSettled(id, node, err)
	})
}

// loadSettled finishes (or abandons) an in-flight load. No ordering is
// guaranteed between a load and a later delete for the same id, so membership
// is re-checked and an orphaned result is released on the spot.
func (r *Reconciler) loadSettled(id string, node Node, err error) {
	in, live := r.instances[id]
	if err != nil {
		if live && in.Pending() {
			delete(r.instances, id)
		}
		r.log.Warn("model load failed", zap.String("asset", id), zap.Error(err))
		r.onError(fmt.Sprintf("failed to load model for %s: %v", id, err))
		return
	}
	if !live || !in.Pending() {
		node.Release()
		return
	}
	in.Node = node
	r.nodeIDs[node] = id
	rec := in.Record
	pos := rec.Position
	if y, ok := geom.SnapY(r.surface(), node.LocalBounds(), pos.X, pos.Z, rec.Rotation, rec.Scale); ok {
		pos.Y = y
	}
	in.Record.Position = pos
	node.SetTransform(pos, rec.Rotation, rec.Scale)
}

func (r *Reconciler) remove(id string) {
	in, ok := r.instances[id]
	if !ok {
		return
	}
	if r.gizmo != nil {
		r.gizmo.Detach(id)
	}
	if in.Node != nil {
		delete(r.nodeIDs, in.Node)
		in.Node.Release()
	}
	delete(r.instances, id)
}

// Clear destroys every instance and empties the registry. This is the
// visual-only teardown path used on terrain switch; it emits no events, so
// the persistence layer never sees it.
func (r *Reconciler) Clear() {
	for id, in := range r.instances {
		if r.gizmo != nil {
			r.gizmo.Detach(id)
		}
		if in.Node != nil {
			in.Node.Release()
		}
		delete(r.instances, id)
	}
	r.nodeIDs = make(map[Node]string)
}

// Lookup returns the instance registered under id.
func (r *Reconciler) Lookup(id string) (*Instance, bool) {
	in, ok := r.instances[id]
	return in, ok
}

// IDForNode is the reverse index: the asset id a scene node belongs to.
func (r *Reconciler) IDForNode(n Node) (string, bool) {
	id, ok := r.nodeIDs[n]
	return id, ok
}

// Len returns the number of registered instances, pending ones included.
func (r *Reconciler) Len() int { return len(r.instances) }

// IDs returns the registered asset ids in unspecified order.
func (r *Reconciler) IDs() []string {
	out := make([]string, 0, len(r.instances))
	for id := range r.instances {
		out = append(out, id)
	}
	return out
}

// Each calls fn for every registered instance. fn must not add or remove
// instances.
func (r *Reconciler) Each(fn func(*Instance)) {
	for _, in := range r.instances {
		fn(in)
	}
}

// Draw renders every settled instance. Call between the host's 3D begin/end.
func (r *Reconciler) Draw(camPos geom.Vec3) {
	for _, in := range r.instances {
		if in.Node != nil {
			in.Node.Draw(camPos)
		}
	}
}
