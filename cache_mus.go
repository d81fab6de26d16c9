package defscan

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/spf13/afero"
)

// SummaryStore persists a SummaryCache's entries to a single snapshot file
// using MUS serialization with varint encoding, so a new process starts
// warm. Stale entries are harmless: every Get re-checks the signature, so a
// snapshot can never serve an outdated summary.
type SummaryStore struct {
	path string
	fs   afero.Fs
}

// NewSummaryStore creates a store writing to path.
func NewSummaryStore(path string, fs afero.Fs) *SummaryStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SummaryStore{path: path, fs: fs}
}

// Save writes all current cache entries to the snapshot file.
func (s *SummaryStore) Save(cache *SummaryCache) error {
	entries := cache.snapshot()

	size := varint.Uint64.Size(uint64(len(entries)))
	for key, entry := range entries {
		size += entrySize(key, entry)
	}

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(len(entries)), buf)
	for key, entry := range entries {
		n += marshalEntryTo(key, entry, buf[n:])
	}

	if err := afero.WriteFile(s.fs, s.path, buf[:n], 0o644); err != nil {
		return NewCacheError("failed to write summary snapshot", err)
	}
	return nil
}

// Load seeds cache with a previously saved snapshot. Errors are advisory: a
// missing or corrupt snapshot simply means a cold start.
func (s *SummaryStore) Load(cache *SummaryCache) error {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return NewCacheError("failed to read summary snapshot", err)
	}

	entries, err := unmarshalEntries(data)
	if err != nil {
		return NewCacheError("failed to decode summary snapshot", err).WithFile(s.path)
	}

	cache.restore(entries)
	return nil
}

// entrySize calculates the exact encoded size of one cache entry.
func entrySize(key string, entry cacheEntry) int {
	size := ord.SizeString(key, varint.PositiveInt)
	size += varint.PositiveInt.Size(entry.sig.Files)
	size += ord.Bool.Size(!entry.sig.Latest.IsZero())
	if !entry.sig.Latest.IsZero() {
		size += varint.Int64.Size(entry.sig.Latest.UnixNano())
	}
	size += varint.PositiveInt.Size(entry.summary.TotalDefs)
	size += varint.PositiveInt.Size(entry.summary.FilesScanned)
	size += varint.Uint64.Size(uint64(len(entry.summary.TypeCounts)))
	for tag, count := range entry.summary.TypeCounts {
		size += ord.SizeString(tag, varint.PositiveInt)
		size += varint.PositiveInt.Size(count)
	}
	return size
}

// marshalEntryTo serializes one cache entry into the buffer.
func marshalEntryTo(key string, entry cacheEntry, buf []byte) int {
	n := ord.MarshalString(key, varint.PositiveInt, buf)
	n += varint.PositiveInt.Marshal(entry.sig.Files, buf[n:])
	hasTime := !entry.sig.Latest.IsZero()
	n += ord.Bool.Marshal(hasTime, buf[n:])
	if hasTime {
		n += varint.Int64.Marshal(entry.sig.Latest.UnixNano(), buf[n:])
	}
	n += varint.PositiveInt.Marshal(entry.summary.TotalDefs, buf[n:])
	n += varint.PositiveInt.Marshal(entry.summary.FilesScanned, buf[n:])
	n += varint.Uint64.Marshal(uint64(len(entry.summary.TypeCounts)), buf[n:])
	for tag, count := range entry.summary.TypeCounts {
		n += ord.MarshalString(tag, varint.PositiveInt, buf[n:])
		n += varint.PositiveInt.Marshal(count, buf[n:])
	}
	return n
}

// unmarshalEntries deserializes a full snapshot.
func unmarshalEntries(buf []byte) (map[string]cacheEntry, error) {
	count, n, err := varint.Uint64.Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry count: %w", err)
	}

	// the decoded count sizes the map only up to a cap; a corrupt count
	// fails in the per-entry decode, not in allocation
	entries := make(map[string]cacheEntry, min(count, 1024))
	for i := uint64(0); i < count; i++ {
		key, entry, bytesRead, err := unmarshalEntryFrom(buf[n:])
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry at index %d: %w", i, err)
		}
		entries[key] = entry
		n += bytesRead
	}
	return entries, nil
}

// unmarshalEntryFrom deserializes a single cache entry from the buffer,
// matching the marshal format.
func unmarshalEntryFrom(buf []byte) (string, cacheEntry, int, error) {
	var entry cacheEntry
	var n int

	key, m, err := unmarshalString(buf)
	if err != nil {
		return "", entry, n, fmt.Errorf("failed to unmarshal key: %w", err)
	}
	n += m

	entry.sig.Files, m, err = varint.PositiveInt.Unmarshal(buf[n:])
	if err != nil {
		return "", entry, n, fmt.Errorf("failed to unmarshal file count: %w", err)
	}
	n += m

	hasTime, m, err := ord.Bool.Unmarshal(buf[n:])
	if err != nil {
		return "", entry, n, fmt.Errorf("failed to unmarshal mtime flag: %w", err)
	}
	n += m

	if hasTime {
		var nanos int64
		nanos, m, err = varint.Int64.Unmarshal(buf[n:])
		if err != nil {
			return "", entry, n, fmt.Errorf("failed to unmarshal mtime: %w", err)
		}
		n += m
		entry.sig.Latest = time.Unix(0, nanos)
	}

	entry.summary.TotalDefs, m, err = varint.PositiveInt.Unmarshal(buf[n:])
	if err != nil {
		return "", entry, n, fmt.Errorf("failed to unmarshal total defs: %w", err)
	}
	n += m

	entry.summary.FilesScanned, m, err = varint.PositiveInt.Unmarshal(buf[n:])
	if err != nil {
		return "", entry, n, fmt.Errorf("failed to unmarshal files scanned: %w", err)
	}
	n += m

	typeCount, m, err := varint.Uint64.Unmarshal(buf[n:])
	if err != nil {
		return "", entry, n, fmt.Errorf("failed to unmarshal type count: %w", err)
	}
	n += m

	entry.summary.TypeCounts = make(map[string]int, min(typeCount, 1024))
	for i := uint64(0); i < typeCount; i++ {
		var tag string
		tag, m, err = unmarshalString(buf[n:])
		if err != nil {
			return "", entry, n, fmt.Errorf("failed to unmarshal type tag: %w", err)
		}
		n += m

		var c int
		c, m, err = varint.PositiveInt.Unmarshal(buf[n:])
		if err != nil {
			return "", entry, n, fmt.Errorf("failed to unmarshal count for %q: %w", tag, err)
		}
		n += m
		entry.summary.TypeCounts[tag] = c
	}

	return key, entry, n, nil
}

// unmarshalString reads a varint-length-prefixed string.
func unmarshalString(data []byte) (string, int, error) {
	length, bytesRead, err := varint.PositiveInt.Unmarshal(data)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read string length: %w", err)
	}

	if len(data[bytesRead:]) < length {
		return "", bytesRead, fmt.Errorf("buffer too small for string of length %d", length)
	}

	str := string(data[bytesRead : bytesRead+length])
	return str, bytesRead + length, nil
}
