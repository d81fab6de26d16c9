package defscan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// WatchMode provides continuous monitoring of a mods directory: filesystem
// events are debounced per mod root, and each settled root is re-queried
// through the SummaryCache so only genuinely changed mods are rescanned.
type WatchMode struct {
	cache   *SummaryCache
	metrics *StartupMetrics
	logger  *slog.Logger
	fs      afero.Fs

	modsDir      string
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	formatter    Formatter
	out          io.Writer

	// Debouncing state
	mu            sync.Mutex
	pendingRoots  map[string]time.Time
	debounceTimer *time.Timer

	stats WatchStats
}

// WatchStats holds statistics about watch mode operation
type WatchStats struct {
	mu          sync.Mutex
	refreshes   int
	lastRefresh time.Time
}

// Refreshes returns how many debounced refresh rounds have run.
func (s *WatchStats) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

func (s *WatchStats) record() {
	s.mu.Lock()
	s.refreshes++
	s.lastRefresh = time.Now()
	s.mu.Unlock()
}

// WatchConfig holds configuration for watch mode
type WatchConfig struct {
	ModsDir      string
	Logger       *slog.Logger
	FS           afero.Fs
	DebounceTime time.Duration
	Formatter    Formatter
	Metrics      *StartupMetrics
	Out          io.Writer
}

// NewWatchMode creates a WatchMode over an existing cache.
func NewWatchMode(cfg WatchConfig, cache *SummaryCache) (*WatchMode, error) {
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.DebounceTime == 0 {
		cfg.DebounceTime = 250 * time.Millisecond
	}
	if cfg.Formatter == nil {
		cfg.Formatter = NewTextFormatter()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &WatchMode{
		cache:        cache,
		metrics:      cfg.Metrics,
		logger:       ensureLogger(cfg.Logger),
		fs:           cfg.FS,
		modsDir:      NormalizePath(cfg.ModsDir),
		watcher:      watcher,
		debounceTime: cfg.DebounceTime,
		formatter:    cfg.Formatter,
		out:          cfg.Out,
		pendingRoots: make(map[string]time.Time),
	}, nil
}

// Start begins watching and blocks until ctx is cancelled.
func (w *WatchMode) Start(ctx context.Context) error {
	defer w.watcher.Close()

	w.printHeader()
	w.logger.Info("Starting watch mode", "path", w.modsDir)

	if err := w.addWatchesRecursive(w.modsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.modsDir, err)
	}

	// Initial full pass so the first output is not empty
	w.refreshAll()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watch mode stopped", "refreshes", w.stats.Refreshes())
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

// addWatchesRecursive registers the mods dir and every directory below it.
func (w *WatchMode) addWatchesRecursive(root string) error {
	return afero.Walk(w.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if werr := w.watcher.Add(path); werr != nil {
				w.logger.Warn("Failed to watch directory", "path", path, "error", werr)
			}
		}
		return nil
	})
}

// handleEvent records the affected mod root and arms the debounce timer.
func (w *WatchMode) handleEvent(event fsnotify.Event) {
	// Newly created directories need their own watch
	if event.Op.Has(fsnotify.Create) {
		if info, err := w.fs.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
		}
	}

	root, ok := w.modRootFor(event.Name)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pendingRoots[root] = time.Now()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceTime, w.flushPending)
}

// modRootFor maps an event path to the mod root directory it belongs to.
// Event paths come back relative when the mods dir itself is relative, so
// the mapping goes through filepath.Rel rather than prefix arithmetic.
func (w *WatchMode) modRootFor(path string) (string, bool) {
	rel, err := filepath.Rel(w.modsDir, NormalizePath(path))
	if err != nil {
		return "", false
	}
	rel = NormalizePath(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	if i := strings.IndexByte(rel, '/'); i != -1 {
		rel = rel[:i]
	}
	return JoinPaths(w.modsDir, rel), true
}

// flushPending re-queries every settled mod root and prints the refreshed
// summaries.
func (w *WatchMode) flushPending() {
	w.mu.Lock()
	roots := make([]string, 0, len(w.pendingRoots))
	for root := range w.pendingRoots {
		roots = append(roots, root)
	}
	w.pendingRoots = make(map[string]time.Time)
	w.mu.Unlock()

	if len(roots) == 0 {
		return
	}

	report := &Report{Timestamp: time.Now().Format(time.RFC3339)}
	for _, root := range roots {
		summary := w.cache.Get(root)
		mod := ModReport{
			Name:    baseName(root),
			Path:    root,
			Summary: summary,
		}
		if w.metrics != nil {
			mod.StartupMS = w.metrics.ForMod(mod.Name)
		}
		report.Add(mod)
	}

	w.stats.record()
	w.print(report)
}

// refreshAll summarizes every mod root currently present.
func (w *WatchMode) refreshAll() {
	entries, err := afero.ReadDir(w.fs, w.modsDir)
	if err != nil {
		w.logger.Warn("Failed to list mods directory", "path", w.modsDir, "error", err)
		return
	}

	report := &Report{Timestamp: time.Now().Format(time.RFC3339)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		root := w.modsDir + "/" + entry.Name()
		mod := ModReport{
			Name:    entry.Name(),
			Path:    root,
			Summary: w.cache.Get(root),
		}
		if w.metrics != nil {
			mod.StartupMS = w.metrics.ForMod(mod.Name)
		}
		report.Add(mod)
	}
	w.print(report)
}

func (w *WatchMode) print(report *Report) {
	out, err := w.formatter.Format(report)
	if err != nil {
		w.logger.Error("Failed to format report", "error", err)
		return
	}
	fmt.Fprintf(w.out, "%s\n", out)
}

func (w *WatchMode) printHeader() {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintln(w.out, "defscan: watching for defs changes")
	fmt.Fprintln(w.out, "Press Ctrl+C to stop")
	fmt.Fprintln(w.out)
}

func baseName(path string) string {
	normalized := NormalizePath(path)
	for i := len(normalized) - 1; i >= 0; i-- {
		if normalized[i] == '/' {
			return normalized[i+1:]
		}
	}
	return normalized
}
