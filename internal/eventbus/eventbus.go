// Package eventbus is the process-local publish/subscribe channel the editor
// subsystems communicate over. A Bus is constructed once at composition time
// and passed by reference to every subsystem; there is no package-level
// singleton, so independent scene sessions can coexist in one process.
package eventbus

import (
	"sync"

	"go.uber.org/zap"
)

// Topics. Terrain topics announce terrain lifecycle, asset topics carry
// asset.Mutation or selection payloads, grid topics drive the cursor overlay.
const (
	TopicTerrainSelected = "terrain:selected"
	TopicTerrainLoaded   = "terrain:loaded"
	TopicTerrainError    = "terrain:error"

	TopicAssetAdded      = "asset:added"
	TopicAssetVisualSync = "asset:visualSync"
	TopicAssetUpdated    = "asset:updated"
	TopicAssetDeleted    = "asset:deleted"

	// Selection and move lifecycle topics carry the asset id as a string,
	// from every emitter.
	TopicAssetSelected     = "asset:selected"
	TopicAssetMoveStarted  = "asset:moveStarted"
	TopicAssetMoveFinished = "asset:moveFinished"

	TopicGridToggle         = "grid:toggle"
	TopicGridHighlight      = "grid:highlight"
	TopicGridClearHighlight = "grid:clearHighlight"
)

// Handler receives the payload published on a topic.
type Handler func(payload any)

type entry struct {
	id   string
	fn   Handler
	once bool
}

// Bus dispatches published payloads to subscribed handlers. Emit is
// synchronous: all handlers registered at emit time run, in registration
// order, before Emit returns. Go functions are not comparable, so handlers
// are keyed by a caller-chosen id per topic; registering the same id twice
// on one topic is a no-op, which gives set semantics for subscriptions.
type Bus struct {
	mu     sync.Mutex
	log    *zap.Logger
	topics map[string][]entry
}

// New returns an empty bus. log receives recovered handler panics.
func New(log *zap.Logger) *Bus {
	return &Bus{
		log:    log,
		topics: make(map[string][]entry),
	}
}

// On subscribes fn to topic under id. A duplicate id on the same topic is
// ignored so re-registration cannot double-deliver.
func (b *Bus) On(topic, id string, fn Handler) {
	b.subscribe(topic, id, fn, false)
}

// Once subscribes fn to topic under id for a single delivery; the
// subscription is removed before fn runs.
func (b *Bus) Once(topic, id string, fn Handler) {
	b.subscribe(topic, id, fn, true)
}

func (b *Bus) subscribe(topic, id string, fn Handler, once bool) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.topics[topic] {
		if e.id == id {
			return
		}
	}
	b.topics[topic] = append(b.topics[topic], entry{id: id, fn: fn, once: once})
}

// Off removes the subscription registered under id on topic, if any.
func (b *Bus) Off(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.topics[topic]
	for i, e := range entries {
		if e.id == id {
			b.topics[topic] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Emit invokes every handler currently subscribed to topic, synchronously and
// in registration order. A panicking handler is recovered and logged; the
// panic never reaches the emitter or the remaining handlers.
func (b *Bus) Emit(topic string, payload any) {
	b.mu.Lock()
	entries := b.topics[topic]
	run := make([]entry, len(entries))
	copy(run, entries)
	// Drop once-subscriptions before dispatch so a re-emit from inside a
	// handler cannot deliver them twice.
	kept := entries[:0]
	for _, e := range entries {
		if !e.once {
			kept = append(kept, e)
		}
	}
	b.topics[topic] = kept
	b.mu.Unlock()

	for _, e := range run {
		b.invoke(topic, e, payload)
	}
}

func (b *Bus) invoke(topic string, e entry, payload any) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.Error("event handler panicked",
				zap.String("topic", topic),
				zap.String("handler", e.id),
				zap.Any("panic", r))
		}
	}()
	e.fn(payload)
}

// Clear removes all subscriptions on the given topics, or every subscription
// when no topic is given.
func (b *Bus) Clear(topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(topics) == 0 {
		b.topics = make(map[string][]entry)
		return
	}
	for _, t := range topics {
		delete(b.topics, t)
	}
}
