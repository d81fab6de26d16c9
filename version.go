package defscan

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// versionPattern matches a major.minor pair anywhere in a string. Mods often
// embed the version inside longer folder names ("Legacy 1.4", "v1.5-rework"),
// so the whole name is not required to be a version.
var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)`)

// VersionTag is a (major, minor) version pair parsed from a folder name or a
// declared-support string. Tags order lexicographically on the pair.
type VersionTag struct {
	Major int
	Minor int
}

// ParseVersionTag extracts the first major.minor pair found in s.
// Strings containing no such pair are not version tags.
func ParseVersionTag(s string) (VersionTag, bool) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return VersionTag{}, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return VersionTag{}, false
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return VersionTag{}, false
	}
	return VersionTag{Major: major, Minor: minor}, true
}

// Less reports whether v orders before other.
func (v VersionTag) Less(other VersionTag) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

func (v VersionTag) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// findDirInsensitive returns the path of the first directory under parent
// whose name matches name case-insensitively. Entries come back from
// afero.ReadDir sorted by name, so the match is deterministic.
func findDirInsensitive(fsys afero.Fs, parent, name string) (string, bool) {
	entries, err := afero.ReadDir(fsys, parent)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return JoinPaths(parent, entry.Name()), true
		}
	}
	return "", false
}

// findFileInsensitive is the file counterpart of findDirInsensitive.
func findFileInsensitive(fsys afero.Fs, parent, name string) (string, bool) {
	entries, err := afero.ReadDir(fsys, parent)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return JoinPaths(parent, entry.Name()), true
		}
	}
	return "", false
}

// SupportedVersions reads the version strings a mod declares in
// About/About.xml (both names matched case-insensitively) under the first
// supportedVersions element's li children. This is a best-effort lookup:
// a missing or malformed manifest yields no versions, never an error.
func SupportedVersions(fsys afero.Fs, modRoot string) []string {
	aboutDir, ok := findDirInsensitive(fsys, modRoot, "About")
	if !ok {
		return nil
	}
	aboutFile, ok := findFileInsensitive(fsys, aboutDir, "About.xml")
	if !ok {
		return nil
	}
	f, err := fsys.Open(aboutFile)
	if err != nil {
		return nil
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	var (
		versions []string
		depth    int
		svDepth  = -1 // depth of the supportedVersions element
		liDepth  = -1
		text     strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// malformed manifest: treat as undeclared
			return nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			name := strings.ToLower(StripNamespace(t.Name.Local))
			if svDepth == -1 && name == "supportedversions" {
				svDepth = depth
			} else if svDepth != -1 && depth == svDepth+1 && name == "li" {
				liDepth = depth
				text.Reset()
			}
		case xml.CharData:
			if liDepth != -1 && depth == liDepth {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == liDepth {
				if v := strings.TrimSpace(text.String()); v != "" {
					versions = append(versions, v)
				}
				liDepth = -1
			}
			if depth == svDepth {
				// only the first supportedVersions element counts
				return versions
			}
			depth--
		}
	}
	return versions
}

// availableVersionDirs maps each version tag found among modRoot's immediate
// subdirectories to that subdirectory. ReadDir returns entries sorted by
// name, so when two siblings parse to the same tag the last in sorted order
// wins, deterministically.
func availableVersionDirs(fsys afero.Fs, modRoot string) map[VersionTag]string {
	mapping := make(map[VersionTag]string)
	entries, err := afero.ReadDir(fsys, modRoot)
	if err != nil {
		return mapping
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if tag, ok := ParseVersionTag(entry.Name()); ok {
			mapping[tag] = JoinPaths(modRoot, entry.Name())
		}
	}
	return mapping
}

// ResolveVersionDir picks the single version folder whose definitions count
// for this mod: the highest declared-and-present version, else the highest
// version folder present, else none. This mirrors how the host game decides
// which version-pinned content tree to load.
func ResolveVersionDir(fsys afero.Fs, modRoot string) (string, bool) {
	available := availableVersionDirs(fsys, modRoot)
	if len(available) == 0 {
		return "", false
	}

	var candidates []VersionTag
	for _, raw := range SupportedVersions(fsys, modRoot) {
		tag, ok := ParseVersionTag(raw)
		if !ok {
			continue
		}
		if _, present := available[tag]; present {
			candidates = append(candidates, tag)
		}
	}
	if len(candidates) > 0 {
		return available[maxTag(candidates)], true
	}

	all := make([]VersionTag, 0, len(available))
	for tag := range available {
		all = append(all, tag)
	}
	return available[maxTag(all)], true
}

func maxTag(tags []VersionTag) VersionTag {
	best := tags[0]
	for _, tag := range tags[1:] {
		if best.Less(tag) {
			best = tag
		}
	}
	return best
}
