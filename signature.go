package defscan

import (
	"time"

	"github.com/spf13/afero"
)

// Signature is the cheap fingerprint of a mod's current defs file set: how
// many files there are and the most recent modification time among them.
// It is a pure function of on-disk state and never inspects file contents,
// so an in-place edit that leaves the mtime untouched is invisible to it.
type Signature struct {
	Files  int
	Latest time.Time
}

// Equal reports whether both components match.
func (s Signature) Equal(other Signature) bool {
	return s.Files == other.Files && s.Latest.Equal(other.Latest)
}

// ComputeSignature fingerprints the defs file set of the mod at modRoot.
// Files that cannot be stat'd (removed mid-scan) still count toward Files
// but contribute nothing to Latest. No files yields the zero Signature.
func ComputeSignature(fsys afero.Fs, modRoot string) Signature {
	files := DefsFiles(fsys, modRoot)
	sig := Signature{Files: len(files)}
	for _, path := range files {
		info, err := fsys.Stat(path)
		if err != nil {
			continue
		}
		if mt := info.ModTime(); mt.After(sig.Latest) {
			sig.Latest = mt
		}
	}
	return sig
}
