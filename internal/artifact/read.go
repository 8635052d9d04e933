package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadModelJSON loads and decodes model.json from an artifact directory.
func ReadModelJSON(dir string) (*ModelJSON, error) {
	path := filepath.Join(dir, "model.json")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mj ModelJSON
	if err := json.Unmarshal(b, &mj); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &mj, nil
}

// ReadGroupBytes concatenates a manifest entry's shard files in path
// order, reproducing the group's original byte stream.
func ReadGroupBytes(dir string, entry ManifestEntry) ([]byte, error) {
	var out []byte
	for _, p := range entry.Paths {
		b, err := os.ReadFile(filepath.Join(dir, p))
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// SliceWeights splits a group's concatenated shard bytes back into
// per-weight runs, in manifest order, using the shape-implied storage
// lengths. The leftover-byte check catches manifests that disagree with
// their shard files.
func SliceWeights(entry ManifestEntry, data []byte) (map[string][]byte, error) {
	out := make(map[string][]byte, len(entry.Weights))
	off := int64(0)
	for i := range entry.Weights {
		w := &entry.Weights[i]
		n := w.StorageBytes()
		if off+n > int64(len(data)) {
			return nil, fmt.Errorf("weight %s: needs bytes [%d, %d) but group holds %d", w.Name, off, off+n, len(data))
		}
		out[w.Name] = data[off : off+n]
		off += n
	}
	if off != int64(len(data)) {
		return nil, fmt.Errorf("group has %d trailing bytes past the last weight", int64(len(data))-off)
	}
	return out, nil
}
