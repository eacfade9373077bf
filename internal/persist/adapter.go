// Package persist forwards accepted scene mutations to the owning
// application's callbacks and to the backend, and keeps local layout
// snapshots in sqlite.
package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/geom"
)

// defaultTimeout bounds each persistence call so a stuck backend cannot pin a
// goroutine forever.
const defaultTimeout = 15 * time.Second

// Callbacks is the contract with the owning application. Any field may be
// nil; nil callbacks are skipped.
type Callbacks struct {
	// Layout supplies the full record list. It runs synchronously on the
	// emitting thread, so the mutation callbacks receive a snapshot taken at
	// commit time — never a live view of a registry another thread mutates.
	Layout func() []asset.Record

	OnAssetPlaced   func(ctx context.Context, rec asset.Record, layout []asset.Record, terrainID string) error
	OnAssetMoved    func(ctx context.Context, id string, pos, rot, scale geom.Vec3, layout []asset.Record, terrainID string) error
	OnAssetDeleted  func(ctx context.Context, id string, layout []asset.Record, terrainID string) error
	OnAssetSelected func(id string)
	OnError         func(msg string)
}

// Adapter subscribes to committed mutations and forwards each to the
// corresponding callback, scoped by the current terrain id. Calls run off the
// render loop; failures are reported through OnError and never retried — the
// visual mutation already happened, and surfacing the divergence beats
// rolling it back.
type Adapter struct {
	log       *zap.Logger
	cb        Callbacks
	terrainID func() string
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewAdapter returns an adapter scoped by terrainID.
func NewAdapter(log *zap.Logger, cb Callbacks, terrainID func() string) *Adapter {
	return &Adapter{
		log:       log,
		cb:        cb,
		terrainID: terrainID,
		timeout:   defaultTimeout,
	}
}

// Attach subscribes the adapter to the committed mutation topics. Gizmo tick
// events are transient in-drag state, not commits, and are ignored here.
func (a *Adapter) Attach(bus *eventbus.Bus) {
	const sub = "persist"
	bus.On(eventbus.TopicAssetAdded, sub, a.onMutation)
	bus.On(eventbus.TopicAssetUpdated, sub, a.onMutation)
	bus.On(eventbus.TopicAssetDeleted, sub, a.onMutation)
	bus.On(eventbus.TopicAssetSelected, sub, func(payload any) {
		if a.cb.OnAssetSelected == nil {
			return
		}
		id, _ := payload.(string)
		a.cb.OnAssetSelected(id)
	})
}

func (a *Adapter) onMutation(payload any) {
	m, ok := payload.(asset.Mutation)
	if !ok || m.FromGizmo {
		return
	}
	// Terrain scope and layout are captured here, on the emitting thread; the
	// goroutine below must not reach back into the scene.
	terrainID := a.terrainID()
	var layout []asset.Record
	if a.cb.Layout != nil {
		layout = a.cb.Layout()
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.forward(ctx, m, layout, terrainID); err != nil {
			a.log.Error("persistence call failed",
				zap.String("kind", m.Kind.String()),
				zap.String("asset", m.Record.ID),
				zap.Error(err))
			a.reportError("failed to save " + m.Record.ID + ": " + err.Error())
		}
	}()
}

func (a *Adapter) forward(ctx context.Context, m asset.Mutation, layout []asset.Record, terrainID string) error {
	switch m.Kind {
	case asset.KindAdded:
		if a.cb.OnAssetPlaced == nil {
			return nil
		}
		return a.cb.OnAssetPlaced(ctx, m.Record, layout, terrainID)
	case asset.KindUpdated:
		if a.cb.OnAssetMoved == nil {
			return nil
		}
		rec := m.Record
		return a.cb.OnAssetMoved(ctx, rec.ID, rec.Position, rec.Rotation, rec.Scale, layout, terrainID)
	case asset.KindDeleted:
		if a.cb.OnAssetDeleted == nil {
			return nil
		}
		return a.cb.OnAssetDeleted(ctx, m.Record.ID, layout, terrainID)
	}
	return nil
}

func (a *Adapter) reportError(msg string) {
	if a.cb.OnError != nil {
		a.cb.OnError(msg)
	}
}

// ClearAllAssets replaces the current terrain's layout with an empty set in
// one bulk request rather than one deletion per asset.
func (a *Adapter) ClearAllAssets(ctx context.Context, client *Client) error {
	return client.ReplaceLayout(ctx, a.terrainID(), nil)
}

// Wait blocks until all in-flight persistence calls settle. Used on shutdown
// and in tests.
func (a *Adapter) Wait() { a.wg.Wait() }
