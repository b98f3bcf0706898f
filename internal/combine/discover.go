// Package combine discovers raw logger files under a directory tree,
// groups them per physical logger, drives the parse/normalize/segment
// pipeline for each group, and serializes one merged output per logger.
package combine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DiscoveryError means the top-level search root is missing or unreadable.
// It is the only condition that aborts a batch run before any group is
// processed.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("cannot discover logs under %s: %v", e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// File is one discovered raw log file with its ordering keys.
type File struct {
	Path    string
	Seq     int
	HasSeq  bool
	ModTime time.Time
}

// Group is the set of raw files attributed to one physical logger. Files
// under the same immediate log directory belong to one logger.
type Group struct {
	Dir   string
	Files []File
}

// Loggers pull sequence numbers into the filename when a capture rolls
// over into a new file; use the last run of digits in the stem.
var seqRe = regexp.MustCompile(`(\d+)\D*$`)

// Discover recursively walks topDir for files matching pattern, excluding
// any path containing one of skipStrs as a substring (previously combined
// or trimmed output), and groups the survivors per logger directory.
// Within a group, files are ordered by embedded sequence number when
// present, else by modification time, else by path, with ties always
// broken lexicographically so the ordering is deterministic. Groups are
// returned sorted by directory.
func Discover(topDir, pattern string, skipStrs []string) ([]Group, error) {
	if _, err := os.Stat(topDir); err != nil {
		return nil, &DiscoveryError{Dir: topDir, Err: err}
	}

	byDir := make(map[string][]File)
	err := filepath.WalkDir(topDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("bad log pattern %q: %w", pattern, err)
		}
		if !matched || skipPath(path, skipStrs) {
			return nil
		}

		f := File{Path: path}
		if info, err := d.Info(); err == nil {
			f.ModTime = info.ModTime()
		}

		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if m := seqRe.FindStringSubmatch(stem); m != nil {
			if seq, err := strconv.Atoi(m[1]); err == nil {
				f.Seq = seq
				f.HasSeq = true
			}
		}

		dir := filepath.Dir(path)
		byDir[dir] = append(byDir[dir], f)
		return nil
	})
	if err != nil {
		return nil, &DiscoveryError{Dir: topDir, Err: err}
	}

	groups := make([]Group, 0, len(byDir))
	for dir, files := range byDir {
		orderFiles(files)
		groups = append(groups, Group{Dir: dir, Files: files})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Dir < groups[j].Dir })

	return groups, nil
}

func skipPath(path string, skipStrs []string) bool {
	for _, s := range skipStrs {
		if s != "" && strings.Contains(path, s) {
			return true
		}
	}
	return false
}

func orderFiles(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.HasSeq && b.HasSeq && a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if (!a.HasSeq || !b.HasSeq) && !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.Before(b.ModTime)
		}
		return a.Path < b.Path
	})
}
