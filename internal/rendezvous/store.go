// Package rendezvous implements the typed, atomic read/write/delete/list
// view over the four named subdirectories of one shared-container root
// that the Producer and Consumer processes use as their only shared
// mutable resource (spec §4.1, §5).
package rendezvous

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Subdir names the four rendezvous subdirectories. No other directory is
// addressable.
type Subdir string

const (
	Audio       Subdir = "audio"
	Transcripts Subdir = "transcripts"
	Control     Subdir = "control"
	Settings    Subdir = "settings"
)

var allSubdirs = []Subdir{Audio, Transcripts, Control, Settings}

func (s Subdir) valid() bool {
	switch s {
	case Audio, Transcripts, Control, Settings:
		return true
	default:
		return false
	}
}

// Entry describes one file listed within a subdirectory.
type Entry struct {
	Name    string
	ModTime time.Time
}

// Store is a typed view over one shared-container root.
type Store struct {
	root string
	log  *slog.Logger
}

// Open creates root if it does not exist, checks that it is a directory,
// creates the four subdirectories if they are absent, and returns a Store
// rooted there.
func Open(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, newError(ErrNoContainer, "open", root, errors.New("root must not be empty"))
	}
	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		if mkErr := os.MkdirAll(root, 0o755); mkErr != nil {
			return nil, newError(ErrNoContainer, "open", root, mkErr)
		}
	} else if err != nil {
		return nil, newError(ErrIO, "open", root, err)
	} else if !info.IsDir() {
		return nil, newError(ErrNoContainer, "open", root, fmt.Errorf("%s is not a directory", root))
	}

	store := &Store{root: root, log: logger.With("component", "rendezvous.Store")}
	for _, sub := range allSubdirs {
		if err := os.MkdirAll(store.dirPath(sub), 0o755); err != nil {
			return nil, newError(ErrIO, "open", store.dirPath(sub), err)
		}
	}
	return store, nil
}

// Root returns the shared-container root path.
func (s *Store) Root() string { return s.root }

func (s *Store) dirPath(sub Subdir) string {
	return filepath.Join(s.root, string(sub))
}

func sanitizeName(name string) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("name %q escapes its directory", name)
	}
	return nil
}

func (s *Store) path(sub Subdir, name string) (string, error) {
	if !sub.valid() {
		return "", newError(ErrBadDir, "path", string(sub), fmt.Errorf("unknown subdir %q", sub))
	}
	if err := sanitizeName(name); err != nil {
		return "", newError(ErrBadDir, "path", name, err)
	}
	return filepath.Join(s.dirPath(sub), name), nil
}

// WriteAtomic writes data under (subdir, name) by first writing to a
// temporary sibling file, then rename-replacing the target. Rename is
// atomic with respect to concurrent readers on a single filesystem, which
// is the only cross-process coordination primitive this store relies on
// (spec §4.1, §5).
func (s *Store) WriteAtomic(sub Subdir, name string, data []byte) error {
	target, err := s.path(sub, name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(target)+"-*")
	if err != nil {
		return newError(ErrIO, "write", target, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return newError(ErrIO, "write", target, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return newError(ErrIO, "write", target, err)
	}
	if err := tmp.Close(); err != nil {
		return newError(ErrIO, "write", target, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return newError(ErrIO, "write", target, err)
	}
	return nil
}

// Read returns the bytes stored at (subdir, name).
func (s *Store) Read(sub Subdir, name string) ([]byte, error) {
	path, err := s.path(sub, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, newError(ErrNotFound, "read", path, err)
	}
	if err != nil {
		return nil, newError(ErrIO, "read", path, err)
	}
	return data, nil
}

// Exists reports whether (subdir, name) currently has a file.
func (s *Store) Exists(sub Subdir, name string) (bool, error) {
	path, err := s.path(sub, name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, newError(ErrIO, "exists", path, err)
	}
	return true, nil
}

// Delete removes (subdir, name). A missing file is not an error: deletion
// is idempotent so double-delete-on-consume races are harmless.
func (s *Store) Delete(sub Subdir, name string) error {
	path, err := s.path(sub, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return newError(ErrIO, "delete", path, err)
	}
	return nil
}

// List returns every entry in subdir ordered by ascending modification
// time, the order the Consumer Monitor processes chunk metadata files in
// (spec §4.4).
func (s *Store) List(sub Subdir) ([]Entry, error) {
	if !sub.valid() {
		return nil, newError(ErrBadDir, "list", string(sub), fmt.Errorf("unknown subdir %q", sub))
	}
	dirents, err := os.ReadDir(s.dirPath(sub))
	if err != nil {
		return nil, newError(ErrIO, "list", s.dirPath(sub), err)
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			continue
		}
		info, err := d.Info()
		if err != nil {
			s.log.Warn("failed to stat directory entry", "name", d.Name(), "error", err)
			continue
		}
		entries = append(entries, Entry{Name: d.Name(), ModTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ModTime.Before(entries[j].ModTime) })
	return entries, nil
}

// Mtime returns the modification time of (subdir, name), or the zero time
// if it does not exist.
func (s *Store) Mtime(sub Subdir, name string) (time.Time, error) {
	path, err := s.path(sub, name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, newError(ErrIO, "mtime", path, err)
	}
	return info.ModTime(), nil
}
