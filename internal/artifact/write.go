package artifact

import (
	"os"
	"path/filepath"
)

// WriteArtifact materializes an artifact under dir: every shard file,
// then model.json. The destination is checked before any write; a path
// occupied by a non-directory file is a ConflictError and nothing is
// written. Missing parent directories are created. There is no rollback
// of already-written shards on a later failure — the artifact is
// regenerable from the source model, so partial output is left for the
// caller to clean up.
func WriteArtifact(dir string, a *Artifact) error {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return &ConflictError{Path: dir}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: dir, Err: err}
	}
	for name, data := range a.Files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return &WriteError{Path: path, Err: err}
		}
	}
	mj, err := a.ModelJSONBytes()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, mj, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
