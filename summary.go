package defscan

// DefsSummary is the structural summary of one mod's definition XML: how many
// definition nodes it ships, broken down by type. Values handed out by the
// cache are safe to keep; TypeCounts must be treated as read-only.
type DefsSummary struct {
	TotalDefs    int            `json:"total_defs"`
	TypeCounts   map[string]int `json:"type_counts"`
	FilesScanned int            `json:"files_scanned"`
}

// IsZero reports whether the summary counted nothing.
func (s DefsSummary) IsZero() bool {
	return s.TotalDefs == 0 && s.FilesScanned == 0 && len(s.TypeCounts) == 0
}

// clone returns a copy with its own TypeCounts map, so cached entries cannot
// be corrupted through a returned summary.
func (s DefsSummary) clone() DefsSummary {
	out := s
	out.TypeCounts = make(map[string]int, len(s.TypeCounts))
	for tag, n := range s.TypeCounts {
		out.TypeCounts[tag] = n
	}
	return out
}

// ModReport pairs one mod root with its computed summary.
type ModReport struct {
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Summary   DefsSummary `json:"summary"`
	StartupMS int         `json:"startup_ms,omitempty"`
}

// Report aggregates summaries for a set of mods.
type Report struct {
	Mods       []ModReport `json:"mods"`
	TotalDefs  int         `json:"total_defs"`
	TotalFiles int         `json:"total_files_scanned"`
	Timestamp  string      `json:"timestamp"`
}

// Add appends a mod report and folds its counts into the totals.
func (r *Report) Add(mod ModReport) {
	r.Mods = append(r.Mods, mod)
	r.TotalDefs += mod.Summary.TotalDefs
	r.TotalFiles += mod.Summary.FilesScanned
}
