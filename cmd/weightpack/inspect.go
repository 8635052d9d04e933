package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/webml/weightpack/internal/artifact"
	"github.com/webml/weightpack/internal/fileformat"
)

func cmdInspect() {
	if len(os.Args) < 3 {
		fmt.Println("usage: weightpack inspect <artifact-dir | file.wpk>")
		os.Exit(1)
	}
	path := os.Args[2]
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		if err := inspectDir(path); err != nil {
			fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if filepath.Ext(path) != ".wpk" {
		fmt.Println("unknown extension (want a directory or .wpk)")
		os.Exit(1)
	}
	if err := inspectBundle(path); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func inspectDir(dir string) error {
	mj, err := artifact.ReadModelJSON(dir)
	if err != nil {
		return err
	}
	if mj.ModelTopology.Present() {
		fmt.Printf("modelTopology: %d bytes\n", len(mj.ModelTopology.JSON()))
	} else {
		fmt.Println("modelTopology: null (weights only)")
	}
	for gi, entry := range mj.WeightsManifest {
		var total int64
		for i := range entry.Weights {
			total += entry.Weights[i].StorageBytes()
		}
		fmt.Printf("group %d: %d shards, %d weights, %d bytes\n", gi+1, len(entry.Paths), len(entry.Weights), total)
		for _, w := range entry.Weights {
			suffix := ""
			if w.Quantization != nil {
				suffix = fmt.Sprintf(" (quantized %s)", w.Quantization.Dtype)
			}
			fmt.Printf("  %-40s %v %s%s\n", w.Name, w.Shape, w.Dtype, suffix)
		}
	}
	return nil
}

func inspectBundle(path string) error {
	r, err := fileformat.OpenBundle(path)
	if err != nil {
		return err
	}
	defer r.Close()
	meta, err := r.Meta()
	if err != nil {
		return err
	}
	fmt.Printf("bundle: format_version=%d, %d shard files\n", meta.FormatVersion, len(meta.Shards))
	for _, s := range meta.Shards {
		fmt.Printf("  %-32s %d bytes\n", s.Name, s.Size)
	}
	for sec, ci := range meta.Checksums {
		fmt.Printf("  section %s: %d %s chunks of %d bytes\n", sec, len(ci.Hashes), ci.Algo, ci.ChunkSize)
	}
	return nil
}
