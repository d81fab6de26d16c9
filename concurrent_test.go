package defscan

import (
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildModsDir(t *testing.T, fs afero.Fs) {
	t.Helper()
	buildMod(t, fs, "/mods/alpha", map[string]string{
		"Defs/things.xml": defsThreeThings,
	})
	buildMod(t, fs, "/mods/beta", map[string]string{
		"About/About.xml":      aboutXML("1.4"),
		"1.4/Defs/sounds.xml":  `<Defs><SoundDef/><SoundDef/></Defs>`,
		"1.5/Defs/ignored.xml": `<Defs><SoundDef/></Defs>`,
	})
	buildMod(t, fs, "/mods/gamma", map[string]string{
		"Textures/tex.png": "png",
	})
}

func TestScanMods(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildModsDir(t, fs)

	cache, _ := newTestCache(fs)
	cs, err := NewConcurrentScanner(cache, nil, fs, WithWorkerCount(4))
	require.NoError(t, err)

	report, err := cs.ScanMods(context.Background(), "/mods")
	require.NoError(t, err)

	require.Len(t, report.Mods, 3)
	assert.Equal(t, "alpha", report.Mods[0].Name)
	assert.Equal(t, "beta", report.Mods[1].Name)
	assert.Equal(t, "gamma", report.Mods[2].Name)

	assert.Equal(t, 3, report.Mods[0].Summary.TotalDefs)
	assert.Equal(t, 2, report.Mods[1].Summary.TotalDefs)
	assert.True(t, report.Mods[2].Summary.IsZero())

	assert.Equal(t, 5, report.TotalDefs)
	assert.Equal(t, 3, report.TotalFiles)
	assert.Equal(t, uint64(3), cs.Stats().modsProcessed.Load())
}

func TestScanModsMatchesSequentialResults(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildModsDir(t, fs)

	seqCache, _ := newTestCache(fs)
	wantAlpha := seqCache.Get("/mods/alpha")
	wantBeta := seqCache.Get("/mods/beta")

	concCache, _ := newTestCache(fs)
	cs, err := NewConcurrentScanner(concCache, nil, fs)
	require.NoError(t, err)

	report, err := cs.ScanMods(context.Background(), "/mods")
	require.NoError(t, err)

	assert.Equal(t, wantAlpha, report.Mods[0].Summary)
	assert.Equal(t, wantBeta, report.Mods[1].Summary)
}

func TestScanModsWithStartupMetrics(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildModsDir(t, fs)
	writeFile(t, fs, "/metrics.xml",
		`<StartupImpact><Mods><Mod name="Alpha" totalMs="800"/></Mods></StartupImpact>`)

	cache, _ := newTestCache(fs)
	cs, err := NewConcurrentScanner(cache, nil, fs,
		WithStartupMetrics(NewStartupMetrics("/metrics.xml", fs)))
	require.NoError(t, err)

	report, err := cs.ScanMods(context.Background(), "/mods")
	require.NoError(t, err)

	assert.Equal(t, 800, report.Mods[0].StartupMS)
	assert.Equal(t, 0, report.Mods[1].StartupMS)
}

func TestScanModsMissingDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()

	cache, _ := newTestCache(fs)
	cs, err := NewConcurrentScanner(cache, nil, fs)
	require.NoError(t, err)

	_, err = cs.ScanMods(context.Background(), "/nope")
	require.Error(t, err)

	info, found := GetErrorInfo(err)
	require.True(t, found)
	assert.Equal(t, ErrorTypeFS, info.Type)
	assert.Equal(t, "/nope", info.File)
	assert.NotEmpty(t, info.Details)
}

func TestConcurrentScannerOptions(t *testing.T) {
	fs := afero.NewMemMapFs()
	cache, _ := newTestCache(fs)

	_, err := NewConcurrentScanner(cache, nil, fs, WithWorkerCount(0))
	assert.Error(t, err)

	_, err = NewConcurrentScanner(cache, nil, fs, WithBufferSize(0))
	assert.Error(t, err)
}

type recordingReporter struct {
	mu        sync.Mutex
	started   []string
	completed int
	done      bool
}

func (r *recordingReporter) StartMod(path string) {
	r.mu.Lock()
	r.started = append(r.started, path)
	r.mu.Unlock()
}

func (r *recordingReporter) CompleteMod(path string, defs int) {
	r.mu.Lock()
	r.completed++
	r.mu.Unlock()
}

func (r *recordingReporter) UpdateProgress(current, total int) {}

func (r *recordingReporter) Complete(stats *ScanStats) {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
}

func TestScanModsReportsProgress(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildModsDir(t, fs)

	cache, _ := newTestCache(fs)
	reporter := &recordingReporter{}
	cs, err := NewConcurrentScanner(cache, nil, fs, WithProgressReporter(reporter))
	require.NoError(t, err)

	_, err = cs.ScanMods(context.Background(), "/mods")
	require.NoError(t, err)

	assert.Len(t, reporter.started, 3)
	assert.Equal(t, 3, reporter.completed)
	assert.True(t, reporter.done)
}
