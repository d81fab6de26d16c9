package defscan

import (
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(fs afero.Fs) (*SummaryCache, *Scanner) {
	scanner := NewScanner(nil, fs)
	return NewSummaryCache(scanner, nil), scanner
}

func TestCacheIdempotence(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildMod(t, fs, "/mods/a", map[string]string{
		"Defs/things.xml": defsThreeThings,
	})

	cache, scanner := newTestCache(fs)

	first := cache.Get("/mods/a")
	parsesAfterFirst := scanner.ParseCount()
	second := cache.Get("/mods/a")

	assert.Equal(t, first, second)
	assert.Equal(t, parsesAfterFirst, scanner.ParseCount(),
		"second query with no fs changes must perform zero parses")
}

func TestCacheInvalidationOnTouch(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildMod(t, fs, "/mods/a", map[string]string{
		"Defs/things.xml": defsThreeThings,
	})

	cache, scanner := newTestCache(fs)
	cache.Get("/mods/a")
	parses := scanner.ParseCount()

	touched := time.Now().Add(time.Minute)
	require.NoError(t, fs.Chtimes("/mods/a/Defs/things.xml", touched, touched))

	summary := cache.Get("/mods/a")
	assert.Greater(t, scanner.ParseCount(), parses, "touch must trigger a rescan")
	assert.Equal(t, 3, summary.TotalDefs)
}

func TestCacheInvalidationOnAdd(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildMod(t, fs, "/mods/a", map[string]string{
		"Defs/things.xml": defsThreeThings,
	})

	cache, _ := newTestCache(fs)
	before := cache.Get("/mods/a")
	require.Equal(t, 3, before.TotalDefs)

	writeFile(t, fs, "/mods/a/Defs/extra.xml", `<Defs><SoundDef/></Defs>`)

	after := cache.Get("/mods/a")
	assert.Equal(t, 4, after.TotalDefs)
	assert.Equal(t, 2, after.FilesScanned)
}

func TestCacheResetsToZeroWhenFilesRemoved(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildMod(t, fs, "/mods/a", map[string]string{
		"Defs/things.xml": defsThreeThings,
	})

	cache, _ := newTestCache(fs)
	require.Equal(t, 3, cache.Get("/mods/a").TotalDefs)

	require.NoError(t, fs.RemoveAll("/mods/a/Defs"))

	summary := cache.Get("/mods/a")
	assert.True(t, summary.IsZero())
}

func TestCacheMissingModRootYieldsZeroSummary(t *testing.T) {
	fs := afero.NewMemMapFs()
	cache, _ := newTestCache(fs)

	summary := cache.Get("/does/not/exist")
	assert.True(t, summary.IsZero())
	assert.NotNil(t, summary.TypeCounts)
}

func TestCacheReturnedSummaryIsACopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildMod(t, fs, "/mods/a", map[string]string{
		"Defs/things.xml": defsThreeThings,
	})

	cache, _ := newTestCache(fs)
	first := cache.Get("/mods/a")
	first.TypeCounts["ThingDef"] = 999

	second := cache.Get("/mods/a")
	assert.Equal(t, 2, second.TypeCounts["ThingDef"])
}

func TestCacheConcurrentQueries(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildMod(t, fs, "/mods/a", map[string]string{
		"Defs/things.xml": defsThreeThings,
	})

	cache, _ := newTestCache(fs)

	var wg sync.WaitGroup
	results := make([]DefsSummary, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Get("/mods/a")
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 3, r.TotalDefs)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestCacheKeysAreCanonical(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildMod(t, fs, "/mods/a", map[string]string{
		"Defs/things.xml": defsThreeThings,
	})

	cache, scanner := newTestCache(fs)
	cache.Get("/mods/a")
	parses := scanner.ParseCount()

	// same directory through a non-clean path hits the same entry
	cache.Get("/mods//a/")
	assert.Equal(t, parses, scanner.ParseCount())
	assert.Equal(t, 1, cache.Len())
}
