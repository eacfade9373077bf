package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dungeon-editor/internal/asset"
	"dungeon-editor/internal/config"
	"dungeon-editor/internal/eventbus"
	"dungeon-editor/internal/extsync"
	"dungeon-editor/internal/gen"
	"dungeon-editor/internal/geom"
	"dungeon-editor/internal/grid"
	"dungeon-editor/internal/highlight"
	"dungeon-editor/internal/interact"
	"dungeon-editor/internal/model"
	"dungeon-editor/internal/persist"
	"dungeon-editor/internal/reconcile"
	"dungeon-editor/internal/scenehost"
	"dungeon-editor/internal/terrain"
)

// palette is the backend's placeable-model catalog, fetched once at startup
// off the render loop and bound to the number keys.
type palette struct {
	mu      sync.Mutex
	entries []interact.DropPayload
}

func (p *palette) fill(log *zap.Logger, client *persist.Client, baseURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	models, err := client.ListModels(ctx)
	if err != nil {
		log.Warn("model catalog fetch failed", zap.Error(err))
		return
	}
	entries := make([]interact.DropPayload, 0, len(models))
	for _, m := range models {
		entries = append(entries, interact.DropPayload{
			Name:     m.Name,
			ModelURL: fmt.Sprintf("%s/models/%s/model.glb", strings.TrimRight(baseURL, "/"), m.ID),
			Rotation: geom.V3(0, m.Metadata.Rotation, 0),
		})
	}
	p.mu.Lock()
	p.entries = entries
	p.mu.Unlock()
	log.Info("model catalog loaded", zap.Int("models", len(entries)))
}

func (p *palette) entry(i int) (interact.DropPayload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.entries) {
		return interact.DropPayload{}, false
	}
	return p.entries[i], true
}

// lateGizmo breaks the construction cycle between the reconciler and the
// scene host: the reconciler needs a gizmo to detach, the host needs the
// reconciler to pick against.
type lateGizmo struct{ host *scenehost.Host }

func (g *lateGizmo) Detach(id string) {
	if g.host != nil {
		g.host.Detach(id)
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func main() {
	generatePrompt := flag.String("generate", "", "generate a starting layout from a prompt before opening the editor")
	configPath := flag.String("config", config.Path, "path to the editor config file")
	flag.Parse()

	_ = config.LoadEnv(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *generatePrompt); err != nil {
		log.Error("editor exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger, generatePrompt string) error {
	bus := eventbus.New(log)
	onError := func(msg string) { log.Warn("editor error", zap.String("detail", msg)) }

	files := model.NewLoader(log, cfg.Backend.URL, filepath.Join(cfg.Data.Dir, "models"))

	// terr is assigned below; the closures capture the variable, not the value.
	var terr *terrain.Loader
	surface := func() geom.Surface {
		if terr == nil {
			return geom.FlatGround{}
		}
		return terr.Surface()
	}

	gizmoRef := &lateGizmo{}
	rec := reconcile.New(log, files, surface, gizmoRef, onError)
	rec.Attach(bus)

	host := scenehost.New(log, bus, rec)
	gizmoRef.host = host
	if err := host.Init(cfg); err != nil {
		return err
	}
	defer host.Close()
	host.SetSurface(surface)

	terr = terrain.NewLoader(log, bus, files, host,
		cfg.Grid.CellSize, cfg.Terrain.FallbackExtent, cfg.Grid.Divisions, cfg.Grid.Visible, onError)
	host.SetWorld(terr)
	defer terr.Unload()

	records := func() []asset.Record {
		out := make([]asset.Record, 0, rec.Len())
		rec.Each(func(in *reconcile.Instance) { out = append(out, in.Record) })
		return out
	}
	bounds := func(id string) (geom.AABB, bool) {
		in, ok := rec.Lookup(id)
		if !ok || in.Node == nil {
			return geom.AABB{}, false
		}
		return in.Node.LocalBounds(), true
	}
	ctl := interact.New(log, bus, host, terr.Mapper, surface, records, bounds)
	hl := highlight.New(bus, surface)
	esync := extsync.New(bus)

	// A terrain switch tears the visual scene down and drops the remote
	// snapshot; storage for the old terrain is left untouched.
	bus.On(eventbus.TopicTerrainSelected, "scene-reset", func(any) {
		rec.Clear()
		esync.Reset()
	})

	bus.On(eventbus.TopicAssetSelected, "gizmo-follow", func(payload any) {
		id, ok := payload.(string)
		if !ok {
			return
		}
		if id == "" {
			host.Detach(host.AttachedID())
			return
		}
		host.Attach(id)
	})

	timeout := time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	client := persist.NewClient(cfg.Backend.URL, timeout)
	store, err := persist.OpenStore(filepath.Join(cfg.Data.Dir, "layouts"))
	if err != nil {
		return err
	}
	defer store.Close()

	// Every accepted mutation pushes the full layout; the backend owns no
	// per-asset endpoints. The adapter snapshots the layout on the render
	// thread before its goroutine runs, so the callbacks never read the
	// registry concurrently with scene mutations.
	pushLayout := func(ctx context.Context, layout []asset.Record, terrainID string) error {
		return client.ReplaceLayout(ctx, terrainID, layout)
	}
	adapter := persist.NewAdapter(log, persist.Callbacks{
		Layout: records,
		OnAssetPlaced: func(ctx context.Context, _ asset.Record, layout []asset.Record, terrainID string) error {
			return pushLayout(ctx, layout, terrainID)
		},
		OnAssetMoved: func(ctx context.Context, _ string, _, _, _ geom.Vec3, layout []asset.Record, terrainID string) error {
			return pushLayout(ctx, layout, terrainID)
		},
		OnAssetDeleted: func(ctx context.Context, _ string, layout []asset.Record, terrainID string) error {
			return pushLayout(ctx, layout, terrainID)
		},
		OnError: onError,
	}, terr.TerrainID)
	adapter.Attach(bus)
	defer adapter.Wait()

	pal := &palette{}
	go pal.fill(log, client, cfg.Backend.URL)

	// Clear-all tears the scene down visually at once and replaces the stored
	// layout in a single bulk request rather than one deletion per asset.
	clearAll := func() {
		rec.Clear()
		esync.Reset()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := adapter.ClearAllAssets(ctx, client); err != nil {
				log.Warn("bulk clear failed", zap.Error(err))
				onError("failed to clear layout: " + err.Error())
			}
		}()
	}

	if generatePrompt != "" {
		if err := generateStartingLayout(log, bus, esync, cfg, generatePrompt); err != nil {
			onError(err.Error())
		}
	} else {
		bus.Emit(eventbus.TopicTerrainSelected, terrain.Selection{
			ID:     "default",
			URL:    cfg.Terrain.URL,
			Width:  cfg.Terrain.Width,
			Height: cfg.Terrain.Height,
		})
	}

	update := func() {
		files.Drain()
		handleInput(bus, host, ctl, esync, store, terr, pal, clearAll, records, log)
	}
	draw3D := func() {
		terr.Draw()
		rec.Draw(host.CameraPosition())
		hl.Draw()
	}
	drawUI := func() { drawStatus(ctl, rec, terr) }

	host.Run(update, draw3D, drawUI)
	return nil
}

// generateStartingLayout asks the backend for a layout and feeds the result
// through the same paths a remote change would take.
func generateStartingLayout(log *zap.Logger, bus *eventbus.Bus, esync *extsync.Sync,
	cfg config.Config, prompt string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	layout, err := gen.NewClient(log, cfg.Backend.URL).GenerateLayout(ctx, gen.Request{Prompt: prompt})
	if err != nil {
		return err
	}
	bus.Emit(eventbus.TopicTerrainSelected, terrain.Selection{
		ID:     "generated",
		URL:    layout.TerrainURL,
		Width:  layout.Width,
		Height: layout.Height,
	})
	esync.Observe(layout.PlacedAssets)
	return nil
}

func handleInput(bus *eventbus.Bus, host *scenehost.Host, ctl *interact.Controller,
	esync *extsync.Sync, store *persist.Store, terr *terrain.Loader, pal *palette,
	clearAll func(), records func() []asset.Record, log *zap.Logger) {

	mouse := rl.GetMousePosition()
	if !host.GizmoActive() {
		ctl.PointerMove(mouse.X, mouse.Y)
		if rl.IsMouseButtonPressed(rl.MouseLeftButton) {
			ctl.Click(mouse.X, mouse.Y)
		}
	}

	switch {
	case rl.IsKeyPressed(rl.KeyEscape):
		ctl.CancelMove()
	case rl.IsKeyPressed(rl.KeyM):
		ctl.BeginMove(ctl.SelectedID())
	case rl.IsKeyPressed(rl.KeyDelete) && rl.IsKeyDown(rl.KeyLeftControl):
		clearAll()
	case rl.IsKeyPressed(rl.KeyDelete), rl.IsKeyPressed(rl.KeyX):
		ctl.Delete(ctl.SelectedID())
	case rl.IsKeyPressed(rl.KeyG):
		bus.Emit(eventbus.TopicGridToggle, nil)
	case rl.IsKeyPressed(rl.KeyS) && rl.IsKeyDown(rl.KeyLeftControl):
		saveSnapshot(store, terr, records(), log)
	case rl.IsKeyPressed(rl.KeyL) && rl.IsKeyDown(rl.KeyLeftControl):
		loadSnapshot(store, terr, esync, log)
	}

	// Number keys place the corresponding catalog model under the cursor.
	for i := 0; i < 9; i++ {
		if !rl.IsKeyPressed(int32(rl.KeyOne) + int32(i)) {
			continue
		}
		if payload, ok := pal.entry(i); ok {
			res := ctl.Drop(mouse.X, mouse.Y, payload)
			log.Info("palette drop", zap.String("model", payload.Name), zap.Stringer("result", res))
		}
	}

	// Dropping a model file from the OS places it under the cursor.
	if rl.IsFileDropped() {
		for _, path := range rl.LoadDroppedFiles() {
			name := filepath.Base(path)
			res := ctl.Drop(mouse.X, mouse.Y, interact.DropPayload{Name: name, ModelURL: path})
			log.Info("file drop", zap.String("file", name), zap.Stringer("result", res))
		}
	}
}

// saveSnapshot writes the current layout to the local store.
func saveSnapshot(store *persist.Store, terr *terrain.Loader, recs []asset.Record, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	name := time.Now().Format("2006-01-02 15:04:05")
	id, err := store.SaveLayout(ctx, name, terr.TerrainID(), recs)
	if err != nil {
		log.Warn("snapshot save failed", zap.Error(err))
		return
	}
	log.Info("snapshot saved", zap.String("layout", id), zap.Int("assets", len(recs)))
}

// loadSnapshot restores the newest snapshot for the current terrain through
// the external-sync diff, so the scene converges instead of being rebuilt.
func loadSnapshot(store *persist.Store, terr *terrain.Loader, esync *extsync.Sync, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metas, err := store.ListLayouts(ctx, terr.TerrainID())
	if err != nil || len(metas) == 0 {
		log.Warn("no snapshot to load", zap.Error(err))
		return
	}
	recs, err := store.LoadLayout(ctx, metas[0].ID)
	if err != nil {
		log.Warn("snapshot load failed", zap.Error(err))
		return
	}
	esync.Observe(recs)
	log.Info("snapshot loaded", zap.String("layout", metas[0].ID), zap.Int("assets", len(recs)))
}

func drawStatus(ctl *interact.Controller, rec *reconcile.Reconciler, terr *terrain.Loader) {
	y := int32(10)
	rl.DrawFPS(10, y)
	y += 24
	status := fmt.Sprintf("assets: %d  mode: %v", rec.Len(), ctl.Mode())
	if id := ctl.SelectedID(); id != "" {
		status += "  selected: " + id
	}
	rl.DrawText(status, 10, y, 18, rl.RayWhite)
	if m, ok := terr.Mapper(); ok {
		c := describeGrid(m)
		rl.DrawText(c, 10, y+22, 18, rl.LightGray)
	}
}

func describeGrid(m grid.Mapper) string {
	return fmt.Sprintf("grid: %dx%d cells (%.1f x %.1f units)",
		m.CellsX, m.CellsZ, m.StepX, m.StepZ)
}
