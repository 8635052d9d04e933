package fileformat

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/webml/weightpack/internal/artifact"
)

func TestWriterReaderWithCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wpk")
	meta := []byte(`{"format_version":1}`)
	mj := bytes.Repeat([]byte(`{"modelTopology":null}`), 64)
	shards := bytes.Repeat([]byte{1, 2, 3, 4}, 2048)

	w := NewWriter()
	w.AddSection(TypeMeta, meta, 0)
	w.AddSection(TypeModelJSON, mj, FlagCompZSTD)
	w.AddSection(TypeShardData, shards, FlagCompLZ4)
	if err := w.Write(path); err != nil {
		t.Fatalf("write error: %v", err)
	}

	r, err := OpenBundle(path)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer r.Close()
	if len(r.TOC) != 3 {
		t.Fatalf("toc count want 3 got %d", len(r.TOC))
	}
	gotMeta, err := r.SectionUncompressed(TypeMeta)
	if err != nil || !bytes.Equal(gotMeta, meta) {
		t.Fatalf("meta mismatch: %v", err)
	}
	gotMJ, err := r.SectionUncompressed(TypeModelJSON)
	if err != nil || !bytes.Equal(gotMJ, mj) {
		t.Fatalf("zstd section mismatch: %v", err)
	}
	gotShards, err := r.SectionUncompressed(TypeShardData)
	if err != nil || !bytes.Equal(gotShards, shards) {
		t.Fatalf("lz4 section mismatch: %v", err)
	}
}

func TestOpenBundleRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wpk")
	if err := os.WriteFile(path, []byte("GARBAGE!12345678"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenBundle(path); err == nil {
		t.Fatalf("bad magic should fail")
	}
}

func writeToyArtifact(t *testing.T, dir string) *artifact.Artifact {
	t.Helper()
	a := &artifact.Artifact{
		Topology: artifact.TopologyFromJSON([]byte(`{"layers":[]}`)),
		Manifest: artifact.Manifest{{
			Paths: []string{"group1-shard1of2", "group1-shard2of2"},
			Weights: []artifact.WeightEntry{
				{Name: "w1", Shape: []int64{3}, Dtype: artifact.Float32},
				{Name: "w2", Shape: []int64{2}, Dtype: artifact.Float32},
			},
		}},
		Files: map[string][]byte{
			"group1-shard1of2": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			"group1-shard2of2": {13, 14, 15, 16, 17, 18, 19, 20},
		},
	}
	if err := artifact.WriteArtifact(dir, a); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return a
}

func TestBundleUnbundleRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	a := writeToyArtifact(t, src)

	wpk := filepath.Join(tmp, "model.wpk")
	if err := BundleDir(src, wpk); err != nil {
		t.Fatalf("bundle error: %v", err)
	}
	if err := VerifyBundle(wpk); err != nil {
		t.Fatalf("fresh bundle failed verify: %v", err)
	}

	dst := filepath.Join(tmp, "dst")
	if err := Unbundle(wpk, dst); err != nil {
		t.Fatalf("unbundle error: %v", err)
	}
	for name := range a.Files {
		want, err := os.ReadFile(filepath.Join(src, name))
		if err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			t.Fatalf("unbundled shard missing: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("shard %s differs after round trip", name)
		}
	}
	want, _ := os.ReadFile(filepath.Join(src, "model.json"))
	got, err := os.ReadFile(filepath.Join(dst, "model.json"))
	if err != nil || !bytes.Equal(got, want) {
		t.Fatalf("model.json differs after round trip: %v", err)
	}
}

func TestVerifyBundleDetectsCorruption(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	writeToyArtifact(t, src)
	wpk := filepath.Join(tmp, "model.wpk")
	if err := BundleDir(src, wpk); err != nil {
		t.Fatalf("bundle error: %v", err)
	}
	// flip one byte in the last section's payload
	b, err := os.ReadFile(wpk)
	if err != nil {
		t.Fatal(err)
	}
	b[len(b)-1] ^= 0xff
	if err := os.WriteFile(wpk, b, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyBundle(wpk); err == nil {
		t.Fatalf("corruption not detected")
	}
}

func TestUnbundleConflictWithFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	writeToyArtifact(t, src)
	wpk := filepath.Join(tmp, "model.wpk")
	if err := BundleDir(src, wpk); err != nil {
		t.Fatalf("bundle error: %v", err)
	}
	dst := filepath.Join(tmp, "dst")
	if err := os.WriteFile(dst, []byte("file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Unbundle(wpk, dst); err == nil {
		t.Fatalf("unbundle into a plain file should fail")
	}
}
