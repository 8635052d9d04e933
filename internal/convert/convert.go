// Package convert wires the conversion pipeline end to end: parse the
// source model, collect and optionally quantize its weight groups, split
// them into shards, build the manifest, and write the artifact.
package convert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/webml/weightpack/internal/artifact"
	"github.com/webml/weightpack/internal/safetensors"
)

// Options configures one conversion.
type Options struct {
	// ShardBytes caps normal shard files; 0 means the 4 MiB default.
	ShardBytes int64
	// Quantize selects optional float32 weight quantization.
	Quantize artifact.QuantMode
	// RejectEmpty fails the conversion on weight groups with no tensors
	// instead of emitting an empty manifest entry.
	RejectEmpty bool
}

// Result is what Convert hands back to the caller for inspection, in
// addition to the artifact written on disk.
type Result struct {
	Topology artifact.Topology
	Groups   []artifact.Group
	Manifest artifact.Manifest
}

// Convert reads the model at srcPath, writes the sharded artifact into
// outDir, and returns the topology and the weight groups as written.
// The pipeline runs stage by stage; the first failing stage aborts the
// rest and no stage retries.
func Convert(srcPath, outDir string, opt Options) (*Result, error) {
	topo, rawGroups, err := ParseSource(srcPath)
	if err != nil {
		return nil, err
	}

	res := &Result{Topology: topo}
	art := &artifact.Artifact{Topology: topo, Files: make(map[string][]byte)}
	for gi, raw := range rawGroups {
		group, err := artifact.Collect(raw)
		if err != nil {
			return nil, err
		}
		group, err = artifact.Quantize(group, opt.Quantize)
		if err != nil {
			return nil, err
		}
		shards, err := artifact.Split(gi, group, artifact.SplitOptions{
			MaxBytes:    opt.ShardBytes,
			RejectEmpty: opt.RejectEmpty,
		})
		if err != nil {
			return nil, err
		}
		entry := artifact.BuildEntry(gi, group, shards)
		for _, s := range shards {
			art.Files[artifact.ShardName(gi, s.Index, len(shards))] = s.Data
		}
		art.Manifest = append(art.Manifest, entry)
		res.Groups = append(res.Groups, group)
	}
	res.Manifest = art.Manifest

	if err := artifact.WriteArtifact(outDir, art); err != nil {
		return nil, err
	}
	return res, nil
}

// sourcePatterns are tried in order against a model directory; the first
// matching pattern supplies the weight files, one group per file.
var sourcePatterns = []string{
	"model-*-of-*.safetensors",
	"*.safetensors",
}

// ParseSource resolves srcPath (a .safetensors file or a directory
// holding one or more) into a topology and raw weight groups. Each
// weight file is one save-unit and becomes one group; file order is
// sorted by name so multi-file models keep their numbered order. A
// config.json beside the weights supplies the topology verbatim; its
// absence is the pure-weights case.
func ParseSource(srcPath string) (artifact.Topology, [][]artifact.SourceTensor, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return artifact.Topology{}, nil, err
	}

	var dir string
	var files []string
	if info.IsDir() {
		dir = srcPath
		for _, pat := range sourcePatterns {
			matches, err := filepath.Glob(filepath.Join(dir, pat))
			if err != nil {
				return artifact.Topology{}, nil, err
			}
			if len(matches) > 0 {
				sort.Strings(matches)
				files = matches
				break
			}
		}
		if len(files) == 0 {
			return artifact.Topology{}, nil, fmt.Errorf("%s: no .safetensors files found", srcPath)
		}
	} else {
		dir = filepath.Dir(srcPath)
		files = []string{srcPath}
	}

	topo := artifact.Topology{}
	if cfg, err := os.ReadFile(filepath.Join(dir, "config.json")); err == nil {
		if !json.Valid(cfg) {
			return artifact.Topology{}, nil, fmt.Errorf("%s: invalid JSON", filepath.Join(dir, "config.json"))
		}
		topo = artifact.TopologyFromJSON(cfg)
	}

	groups := make([][]artifact.SourceTensor, 0, len(files))
	for _, path := range files {
		st, err := safetensors.Open(path)
		if err != nil {
			return artifact.Topology{}, nil, err
		}
		group := make([]artifact.SourceTensor, 0, len(st.Tensors))
		for _, t := range st.Tensors {
			group = append(group, artifact.SourceTensor{
				Name:  t.Name,
				Dtype: t.Dtype,
				Shape: t.Shape,
				Data:  t.Data,
			})
		}
		groups = append(groups, group)
	}
	return topo, groups, nil
}
