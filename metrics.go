package defscan

import (
	"encoding/xml"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// StartupMetrics reads a StartupImpact metrics file into a mod-name to
// total-milliseconds mapping. The file is loaded once per process and never
// re-read: callers must treat the result as a static snapshot. Any failure
// to locate or parse the file yields an empty mapping.
type StartupMetrics struct {
	fs   afero.Fs
	path string

	once   sync.Once
	byName map[string]int
	max    int
}

// NewStartupMetrics creates a reader for the metrics file at path.
func NewStartupMetrics(path string, fs afero.Fs) *StartupMetrics {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &StartupMetrics{fs: fs, path: path}
}

// DefaultMetricsPath returns the location StartupImpact writes to by
// default, resolved against the current user's home directory.
func DefaultMetricsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return JoinPaths(home,
		"AppData/LocalLow/Ludeon Studios/RimWorld by Ludeon Studios/StartupImpact/metrics.xml")
}

// TotalMSByModName returns total startup milliseconds keyed by lower-cased
// mod name. The returned map is shared; treat it as read-only.
func (m *StartupMetrics) TotalMSByModName() map[string]int {
	m.once.Do(m.load)
	return m.byName
}

// MaxTotalMS returns the largest per-mod total, 0 when no metrics exist.
func (m *StartupMetrics) MaxTotalMS() int {
	m.once.Do(m.load)
	return m.max
}

// ForMod looks up the startup total for one mod name, 0 when unknown.
func (m *StartupMetrics) ForMod(name string) int {
	m.once.Do(m.load)
	return m.byName[strings.ToLower(name)]
}

type metricsDoc struct {
	Mods struct {
		Mods []struct {
			Name    string `xml:"name,attr"`
			TotalMS string `xml:"totalMs,attr"`
		} `xml:"Mod"`
	} `xml:"Mods"`
}

func (m *StartupMetrics) load() {
	m.byName = make(map[string]int)
	if m.path == "" {
		return
	}

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return
	}

	var doc metricsDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return
	}

	for _, mod := range doc.Mods.Mods {
		if mod.Name == "" {
			continue
		}
		totalMS, err := strconv.Atoi(mod.TotalMS)
		if err != nil || totalMS <= 0 {
			continue
		}
		// lower-cased to match metadata lookups by name
		m.byName[strings.ToLower(mod.Name)] = totalMS
		if totalMS > m.max {
			m.max = totalMS
		}
	}
}
