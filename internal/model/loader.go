package model

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"go.uber.org/zap"

	"dungeon-editor/internal/reconcile"
)

// fetchTimeout bounds a single remote model download.
const fetchTimeout = 60 * time.Second

var safeNameRe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Loader resolves model URLs, fetches remote files into a disk cache, and
// creates GPU models on the main thread. It implements reconcile.ModelSource.
type Loader struct {
	log      *zap.Logger
	baseURL  string // prefix for relative model URLs
	cacheDir string
	hc       *http.Client

	mu    sync.Mutex
	queue []func()
}

// NewLoader returns a loader that caches remote models under cacheDir and
// resolves relative URLs against baseURL.
func NewLoader(log *zap.Logger, baseURL, cacheDir string) *Loader {
	return &Loader{
		log:      log,
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheDir: cacheDir,
		hc:       &http.Client{Timeout: fetchTimeout},
	}
}

// Load fetches url and delivers a ready node (or error) through done. done
// always runs on the main thread, during a Drain call; Load itself returns
// immediately and never blocks the frame loop.
func (l *Loader) Load(url string, done func(reconcile.Node, error)) {
	resolved := l.resolve(url)
	if !strings.Contains(resolved, "://") {
		// Local file: only the GPU step remains.
		l.enqueue(func() { l.finish(resolved, done) })
		return
	}
	go func() {
		path, err := l.fetch(resolved)
		if err != nil {
			l.enqueue(func() { done(nil, err) })
			return
		}
		l.enqueue(func() { l.finish(path, done) })
	}()
}

// FetchFile resolves url and delivers a local file path through done on the
// main thread, downloading into the cache when the URL is remote. Used by the
// terrain loader, which creates its own GPU resources from the file.
func (l *Loader) FetchFile(url string, done func(path string, err error)) {
	resolved := l.resolve(url)
	if !strings.Contains(resolved, "://") {
		l.enqueue(func() { done(resolved, nil) })
		return
	}
	go func() {
		path, err := l.fetch(resolved)
		l.enqueue(func() { done(path, err) })
	}()
}

// resolve makes a relative model URL absolute against the configured base.
func (l *Loader) resolve(url string) string {
	if strings.Contains(url, "://") || l.baseURL == "" {
		return url
	}
	if _, err := os.Stat(url); err == nil {
		return url // an existing local path wins over the backend base
	}
	return l.baseURL + "/" + strings.TrimLeft(url, "/")
}

// finish creates the GPU model. Runs on the main thread via the queue.
func (l *Loader) finish(path string, done func(reconcile.Node, error)) {
	m := rl.LoadModel(path)
	if m.MeshCount == 0 {
		done(nil, fmt.Errorf("model: %s: no meshes", path))
		return
	}
	l.log.Debug("model loaded", zap.String("path", path), zap.Int32("meshes", m.MeshCount))
	done(newLODNode(m), nil)
}

// fetch downloads url into the cache, reusing an existing file. Runs off the
// main thread.
func (l *Loader) fetch(url string) (string, error) {
	name := cacheName(url)
	path := filepath.Join(l.cacheDir, name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	resp, err := l.hc.Get(url)
	if err != nil {
		return "", fmt.Errorf("model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model: fetch %s: HTTP %d", url, resp.StatusCode)
	}
	if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("model: %w", err)
	}
	// Write to a temp name first so a torn download never looks cached.
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("model: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("model: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("model: %w", err)
	}
	return path, nil
}

// cacheName derives a stable, filesystem-safe cache filename from a URL.
func cacheName(url string) string {
	trimmed := url
	if i := strings.Index(trimmed, "?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	base := filepath.Base(trimmed)
	base = safeNameRe.ReplaceAllString(base, "_")
	if base == "" || base == "." {
		base = "model.bin"
	}
	if len(base) > 96 {
		base = base[len(base)-96:]
	}
	return base
}

// enqueue schedules fn for the next Drain on the main thread.
func (l *Loader) enqueue(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
}

// Drain runs all queued completions. Call once per frame from the main loop;
// GPU resources must be created after the GL context exists and only on the
// main thread.
func (l *Loader) Drain() {
	l.mu.Lock()
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}
