package defscan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefsFiles returns every XML file that constitutes "the definitions" of the
// mod rooted at modRoot: all .xml files (case-insensitive extension) under a
// root-level Defs directory, plus all .xml files under the Defs directory of
// the single resolved version folder. Both trees contribute when both exist;
// they are structurally distinct, so there is nothing to deduplicate.
//
// Each call re-enumerates from scratch. A mod with no Defs directories, or a
// modRoot that does not exist, yields an empty slice.
func DefsFiles(fsys afero.Fs, modRoot string) []string {
	var files []string

	if rootDefs, ok := findDirInsensitive(fsys, modRoot, "Defs"); ok {
		files = appendXMLFiles(fsys, rootDefs, files)
	}

	if versionDir, ok := ResolveVersionDir(fsys, modRoot); ok {
		if versionDefs, ok := findDirInsensitive(fsys, versionDir, "Defs"); ok {
			files = appendXMLFiles(fsys, versionDefs, files)
		}
	}

	return files
}

func appendXMLFiles(fsys afero.Fs, dir string, files []string) []string {
	// Walk errors on individual entries just mean those entries contribute
	// no files; enumeration itself never fails.
	_ = afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(info.Name()), ".xml") {
			files = append(files, NormalizePath(path))
		}
		return nil
	})
	return files
}
