// Package extsync diffs the externally owned placed-asset list against the
// last observed snapshot and turns the difference into mutation events, so
// changes made outside the engine (a saved layout loading, a generation
// result arriving) reach the scene without re-triggering persistence.
package extsync

import (
	"time"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/eventbus"
)

// recentTTL is how long a locally placed id suppresses the visualSync echo
// that appears when the owner reflects the placement back into its list.
const recentTTL = 5 * time.Second

// Sync tracks the previously observed record set keyed by id.
type Sync struct {
	bus    *eventbus.Bus
	prev   map[string]asset.Record
	recent map[string]time.Time
	now    func() time.Time
}

// New returns a Sync with an empty snapshot, subscribed to local placements
// on bus so it can suppress their echoes.
func New(bus *eventbus.Bus) *Sync {
	s := &Sync{
		bus:    bus,
		prev:   make(map[string]asset.Record),
		recent: make(map[string]time.Time),
		now:    time.Now,
	}
	bus.On(eventbus.TopicAssetAdded, "extsync", func(payload any) {
		if m, ok := payload.(asset.Mutation); ok {
			s.MarkLocalAdd(m.Record.ID)
		}
	})
	return s
}

// MarkLocalAdd records that id was just placed locally; the next observation
// of that id is the echo of a record the scene already holds and must not
// emit a visualSync.
func (s *Sync) MarkLocalAdd(id string) {
	if id == "" {
		return
	}
	s.recent[id] = s.now().Add(recentTTL)
}

// Observe diffs records against the previous observation and emits
// visualSync, updated, and deleted events for the difference. Records are
// keyed by id; transforms are compared with a small tolerance.
func (s *Sync) Observe(records []asset.Record) {
	next := make(map[string]asset.Record, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		next[rec.ID] = rec
	}

	for id, old := range s.prev {
		if _, still := next[id]; !still {
			s.bus.Emit(eventbus.TopicAssetDeleted, asset.Mutation{Kind: asset.KindDeleted, Record: old})
		}
	}
	now := s.now()
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		old, seen := s.prev[rec.ID]
		switch {
		case !seen:
			if deadline, local := s.recent[rec.ID]; local {
				delete(s.recent, rec.ID)
				if now.Before(deadline) {
					break // reconciler already holds the live instance
				}
			}
			// visualSync, not added: this state already came from storage and
			// must not round-trip through persistence again.
			s.bus.Emit(eventbus.TopicAssetVisualSync, asset.Mutation{Kind: asset.KindAdded, Record: rec})
		case !old.TransformEqual(rec):
			s.bus.Emit(eventbus.TopicAssetUpdated, asset.Mutation{Kind: asset.KindUpdated, Record: rec})
		}
	}
	s.prev = next
}

// ClearAllAssets emits a deleted event for every tracked id and resets the
// snapshot. This path does signal the persistence layer; a teardown that must
// stay visual-only goes through the reconciler's bulk clear instead.
func (s *Sync) ClearAllAssets() {
	for _, rec := range s.prev {
		s.bus.Emit(eventbus.TopicAssetDeleted, asset.Mutation{Kind: asset.KindDeleted, Record: rec})
	}
	s.prev = make(map[string]asset.Record)
	s.recent = make(map[string]time.Time)
}

// Reset drops the snapshot without emitting anything. Used when the scene was
// torn down through another path (bulk clear, terrain switch) and the next
// observation should read as all-new.
func (s *Sync) Reset() {
	s.prev = make(map[string]asset.Record)
	s.recent = make(map[string]time.Time)
}

// Tracked returns the number of ids in the current snapshot.
func (s *Sync) Tracked() int { return len(s.prev) }
