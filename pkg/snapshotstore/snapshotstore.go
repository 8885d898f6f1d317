// Package snapshotstore implements the directory of immutable backup
// snapshot files a Repository publishes via create_backup_snapshot.
// Atomic publication (write to a sibling temp path, then rename) is
// grounded on github.com/natefinch/atomic, the same atomic-file-write
// package calvinalkan-agent-task uses for its own durable writes.
package snapshotstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/natefinch/atomic"

	"github.com/cuemby/graphrag/pkg/rerr"
)

// filenamePattern matches snapshot_<20-digit lsn>.rkyv, per spec §6.
var filenamePattern = regexp.MustCompile(`^snapshot_(\d{20})\.rkyv$`)

// Store manages a directory of snapshot files named by lsn.
type Store struct {
	dir string
}

// New ensures dir exists and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "snapshotstore.New")
	}
	return &Store{dir: dir}, nil
}

// FileName returns the canonical file name for lsn.
func FileName(lsn uint64) string {
	return fmt.Sprintf("snapshot_%020d.rkyv", lsn)
}

// Create atomically publishes bytes as the snapshot for lsn: it writes to a
// sibling temp file and renames it into place so a reader never observes a
// partially written snapshot.
func (s *Store) Create(lsn uint64, data []byte) (string, error) {
	path := filepath.Join(s.dir, FileName(lsn))
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", rerr.Wrap(err, rerr.Storage, "snapshotstore.Create")
	}
	return path, nil
}

// LatestAtOrBefore scans the directory once and returns the path and lsn of
// the maximum-lsn snapshot file whose lsn <= maxLSN, or ok=false if none
// qualifies.
func (s *Store) LatestAtOrBefore(maxLSN uint64) (path string, lsn uint64, ok bool, err error) {
	entries, readErr := os.ReadDir(s.dir)
	if readErr != nil {
		return "", 0, false, rerr.Wrap(readErr, rerr.Storage, "snapshotstore.LatestAtOrBefore")
	}

	var best uint64
	var bestName string
	found := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filenamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, convErr := strconv.ParseUint(m[1], 10, 64)
		if convErr != nil {
			continue
		}
		if n > maxLSN {
			continue
		}
		if !found || n > best {
			found = true
			best = n
			bestName = e.Name()
		}
	}
	if !found {
		return "", 0, false, nil
	}
	return filepath.Join(s.dir, bestName), best, true, nil
}

// List returns all known snapshot lsns in ascending order, for diagnostics.
func (s *Store) List() ([]uint64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "snapshotstore.List")
	}
	var lsns []uint64
	for _, e := range entries {
		m := filenamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		lsns = append(lsns, n)
	}
	sort.Slice(lsns, func(i, j int) bool { return lsns[i] < lsns[j] })
	return lsns, nil
}

// Read loads the raw bytes of the snapshot file at path.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "snapshotstore.Read")
	}
	return data, nil
}
