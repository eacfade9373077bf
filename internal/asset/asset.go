// Package asset defines the declarative placed-asset record and the mutation
// events that flow between the interaction layer, the reconciler, and the
// persistence layer.
package asset

import (
	"dungeon-editor/internal/geom"
)

// transformEps is the tolerance used when comparing record transforms.
const transformEps = 1e-4

// Record is the declarative description of one placed asset, owned by the
// external caller. The engine never mutates a Record; it emits mutation events
// that the owner applies.
type Record struct {
	ID       string    `json:"id" yaml:"id"`
	ModelURL string    `json:"modelUrl" yaml:"modelUrl"`
	Name     string    `json:"name" yaml:"name"`
	Position geom.Vec3 `json:"position" yaml:"position"`
	Rotation geom.Vec3 `json:"rotation" yaml:"rotation"` // Euler degrees
	Scale    geom.Vec3 `json:"scale" yaml:"scale"`
}

// TransformEqual reports whether two records agree on position, rotation, and
// scale within a small tolerance. Identity fields are not compared.
func (r Record) TransformEqual(o Record) bool {
	return r.Position.NearEqual(o.Position, transformEps) &&
		r.Rotation.NearEqual(o.Rotation, transformEps) &&
		r.Scale.NearEqual(o.Scale, transformEps)
}

// Kind tags a mutation event.
type Kind int

const (
	KindAdded Kind = iota
	KindUpdated
	KindDeleted
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindUpdated:
		return "updated"
	case KindDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Mutation is the payload for asset mutation topics. FromGizmo marks events
// whose transform has already been applied to the scene graph by the gizmo;
// the reconciler skips re-applying them and the persistence adapter ignores
// them as transient in-drag ticks.
type Mutation struct {
	Kind      Kind
	Record    Record
	FromGizmo bool
}
