package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guiyumin/vfeed/internal/extractor"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/afero"
)

// PersistError reports a failed snapshot write. The in-memory snapshot is
// unaffected; callers log it and keep serving.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist snapshot %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Load reads the durable snapshot and, when it decodes, makes it current.
// A missing or malformed file is not an error: it means there is no prior cache.
// Records without a media URL are dropped. The snapshot is stamped with
// the file's modification time.
func (s *Store) Load() mo.Option[Snapshot] {
	info, err := s.fs.Stat(s.path)
	if err != nil || info.IsDir() {
		return mo.None[Snapshot]()
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return mo.None[Snapshot]()
	}

	var records []extractor.Record
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		return mo.None[Snapshot]()
	}
	// A hand-edited or older file may hold entries nothing can play.
	records = lo.Filter(records, func(r extractor.Record, _ int) bool {
		return r.MediaURL != ""
	})

	snap := Snapshot{FetchedAt: info.ModTime(), Records: records}
	s.restore(snap)
	return mo.Some(snap)
}

// Persist writes the snapshot records as a pretty-printed JSON array,
// replacing the previous file atomically.
func (s *Store) Persist(snap Snapshot) error {
	records := snap.Records
	if records == nil {
		records = []extractor.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &PersistError{Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.fs, s.path, data, 0o644); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	return nil
}

// ReadRaw returns the durable file contents as written by Persist
func (s *Store) ReadRaw() ([]byte, bool, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Exists reports whether a durable snapshot file is present
func (s *Store) Exists() bool {
	ok, err := afero.Exists(s.fs, s.path)
	return err == nil && ok
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers see the old or the new file, never a
// partial one.
func writeFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := fs.Chmod(tmpName, perm); err != nil {
		return err
	}

	// The deferred Remove fails harmlessly once the rename has happened.
	return fs.Rename(tmpName, path)
}
