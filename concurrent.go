package defscan

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

// ModJob represents one mod root to summarize
type ModJob struct {
	Name string
	Path string
}

// ModResult carries a finished per-mod report
type ModResult struct {
	Report ModReport
}

// ScanStats tracks performance metrics
type ScanStats struct {
	modsProcessed atomic.Uint64
	totalMods     atomic.Uint64
	startTime     time.Time
	endTime       time.Time
}

// Duration returns the time taken for the last scan operation
func (s *ScanStats) Duration() time.Duration {
	if s.endTime.IsZero() {
		return time.Since(s.startTime)
	}
	return s.endTime.Sub(s.startTime)
}

// ModsPerSecond returns the processing rate
func (s *ScanStats) ModsPerSecond() float64 {
	duration := s.Duration().Seconds()
	if duration == 0 {
		return 0
	}
	return float64(s.modsProcessed.Load()) / duration
}

// ProgressReporter interface for progress updates
type ProgressReporter interface {
	StartMod(path string)
	CompleteMod(path string, defs int)
	UpdateProgress(current, total int)
	Complete(stats *ScanStats)
}

// NoOpProgressReporter is a no-op implementation
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) StartMod(path string)              {}
func (n *NoOpProgressReporter) CompleteMod(path string, defs int) {}
func (n *NoOpProgressReporter) UpdateProgress(current, total int) {}
func (n *NoOpProgressReporter) Complete(stats *ScanStats)         {}

// ConcurrentScanner summarizes every mod under a mods directory using a
// worker pool. Each worker queries the shared SummaryCache, so unchanged
// mods cost a signature check rather than a rescan.
type ConcurrentScanner struct {
	cache   *SummaryCache
	metrics *StartupMetrics
	logger  *slog.Logger
	fs      afero.Fs

	workerCount int
	bufferSize  int
	progress    ProgressReporter
	stats       *ScanStats
}

// Option is a functional option for ConcurrentScanner
type Option func(*ConcurrentScanner) error

// WithWorkerCount sets the number of worker goroutines
func WithWorkerCount(count int) Option {
	return func(cs *ConcurrentScanner) error {
		if count < 1 {
			return fmt.Errorf("worker count must be at least 1, got %d", count)
		}
		cs.workerCount = count
		return nil
	}
}

// WithBufferSize sets the job buffer size
func WithBufferSize(size int) Option {
	return func(cs *ConcurrentScanner) error {
		if size < 1 {
			return fmt.Errorf("buffer size must be at least 1, got %d", size)
		}
		cs.bufferSize = size
		return nil
	}
}

// WithProgressReporter sets a progress reporter
func WithProgressReporter(reporter ProgressReporter) Option {
	return func(cs *ConcurrentScanner) error {
		cs.progress = reporter
		return nil
	}
}

// WithStartupMetrics attaches startup-timing metrics so each mod report
// carries its StartupImpact total when one is known.
func WithStartupMetrics(metrics *StartupMetrics) Option {
	return func(cs *ConcurrentScanner) error {
		cs.metrics = metrics
		return nil
	}
}

// NewConcurrentScanner creates a concurrent scanner over cache with options.
func NewConcurrentScanner(cache *SummaryCache, logger *slog.Logger, fs afero.Fs, opts ...Option) (*ConcurrentScanner, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	cs := &ConcurrentScanner{
		cache:       cache,
		logger:      ensureLogger(logger),
		fs:          fs,
		workerCount: runtime.NumCPU(),
		bufferSize:  100,
		progress:    &NoOpProgressReporter{},
		stats:       &ScanStats{},
	}

	for _, opt := range opts {
		if err := opt(cs); err != nil {
			return nil, err
		}
	}

	return cs, nil
}

// Stats returns the metrics of the last ScanMods run.
func (cs *ConcurrentScanner) Stats() *ScanStats {
	return cs.stats
}

// ScanMods summarizes every immediate subdirectory of modsDir as a mod root
// and aggregates the results into a Report, ordered by mod name.
func (cs *ConcurrentScanner) ScanMods(ctx context.Context, modsDir string) (*Report, error) {
	cs.stats = &ScanStats{startTime: time.Now()}

	jobs, err := cs.collectMods(modsDir)
	if err != nil {
		return nil, err
	}

	cs.stats.totalMods.Store(uint64(len(jobs)))
	cs.progress.UpdateProgress(0, len(jobs))

	report, err := cs.processModsConcurrently(ctx, jobs)
	if err != nil {
		return nil, err
	}

	cs.stats.endTime = time.Now()
	cs.progress.Complete(cs.stats)

	return report, nil
}

// collectMods lists the mod roots under modsDir.
func (cs *ConcurrentScanner) collectMods(modsDir string) ([]ModJob, error) {
	entries, err := afero.ReadDir(cs.fs, modsDir)
	if err != nil {
		return nil, NewFSError("failed to list mods directory", err).
			WithFile(modsDir).
			WithDetails("ensure the mods directory exists and is readable")
	}

	var jobs []ModJob
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobs = append(jobs, ModJob{
			Name: entry.Name(),
			Path: JoinPaths(modsDir, entry.Name()),
		})
	}
	return jobs, nil
}

// processModsConcurrently fans the jobs out over a worker pool.
func (cs *ConcurrentScanner) processModsConcurrently(ctx context.Context, mods []ModJob) (*Report, error) {
	jobs := make(chan ModJob, cs.bufferSize)
	results := make(chan ModResult, cs.bufferSize)

	var wg sync.WaitGroup
	for i := 0; i < cs.workerCount; i++ {
		wg.Add(1)
		go cs.worker(ctx, &wg, jobs, results)
	}

	report := &Report{Timestamp: time.Now().Format(time.RFC3339)}
	collectorDone := make(chan struct{})
	go cs.collectResults(report, results, collectorDone)

	go func() {
		defer close(jobs)
		for _, mod := range mods {
			select {
			case <-ctx.Done():
				return
			case jobs <- mod:
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sort.Slice(report.Mods, func(i, j int) bool {
		return report.Mods[i].Name < report.Mods[j].Name
	})
	return report, nil
}

// worker processes jobs from the job channel
func (cs *ConcurrentScanner) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan ModJob, results chan<- ModResult) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cs.progress.StartMod(job.Path)
		summary := cs.cache.Get(job.Path)

		mod := ModReport{
			Name:    job.Name,
			Path:    job.Path,
			Summary: summary,
		}
		if cs.metrics != nil {
			mod.StartupMS = cs.metrics.ForMod(job.Name)
		}

		cs.progress.CompleteMod(job.Path, summary.TotalDefs)
		cs.stats.modsProcessed.Add(1)
		cs.progress.UpdateProgress(int(cs.stats.modsProcessed.Load()), int(cs.stats.totalMods.Load()))

		results <- ModResult{Report: mod}
	}
}

// collectResults folds worker results into the report
func (cs *ConcurrentScanner) collectResults(report *Report, results <-chan ModResult, done chan<- struct{}) {
	for result := range results {
		report.Add(result.Report)
	}
	close(done)
}
