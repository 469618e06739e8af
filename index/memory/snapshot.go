package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docsift/docsift"
)

// snapshotVersion is bumped on any incompatible change to the on-disk shape.
const snapshotVersion = 1

// snapshot is the serialized form of the whole index.
type snapshot struct {
	Version   int             `json:"version"`
	Dimension int             `json:"dimension"`
	Entries   []docsift.Entry `json:"entries"`
}

// Save writes the full index state to path. The snapshot goes to a temp file
// in the target directory first and is renamed into place, so a concurrent
// Load never observes a partial file. Failures are *docsift.ErrSnapshotWrite
// and leave the in-memory state untouched.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	snap := snapshot{
		Version:   snapshotVersion,
		Dimension: ix.dim,
		Entries:   append([]docsift.Entry(nil), ix.entries...),
	}
	ix.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return &docsift.ErrSnapshotWrite{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &docsift.ErrSnapshotWrite{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &docsift.ErrSnapshotWrite{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &docsift.ErrSnapshotWrite{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &docsift.ErrSnapshotWrite{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &docsift.ErrSnapshotWrite{Path: path, Err: err}
	}
	return nil
}

// Load replaces the index state with the snapshot at path. A missing file
// leaves the index empty and returns nil; a corrupt or incompatible snapshot
// also leaves the index empty and returns *docsift.ErrCorruptSnapshot —
// snapshots are best-effort caching, never a source of truth.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &docsift.ErrCorruptSnapshot{Path: path, Err: err}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return &docsift.ErrCorruptSnapshot{Path: path, Err: err}
	}
	if snap.Version != snapshotVersion {
		return &docsift.ErrCorruptSnapshot{
			Path: path,
			Err:  fmt.Errorf("unsupported snapshot version %d", snap.Version),
		}
	}
	if ix.dim > 0 && snap.Dimension != ix.dim {
		return &docsift.ErrCorruptSnapshot{
			Path: path,
			Err:  fmt.Errorf("snapshot dimension %d, index expects %d", snap.Dimension, ix.dim),
		}
	}
	for _, e := range snap.Entries {
		if e.Vector != nil && ix.dim > 0 && len(e.Vector) != ix.dim {
			return &docsift.ErrCorruptSnapshot{
				Path: path,
				Err:  fmt.Errorf("entry %s/%d vector dimension %d, index expects %d", e.Chunk.DocumentID, e.Chunk.Seq, len(e.Vector), ix.dim),
			}
		}
	}

	ix.entries = snap.Entries
	return nil
}
