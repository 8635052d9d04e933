// Package artifact implements the sharded weight artifact: collecting
// tensors from a parsed model into a canonical form, packing their bytes
// into size-bounded shard files, and emitting the model.json manifest
// that lets a consumer reassemble every tensor byte-exactly.
package artifact

import (
	"encoding/json"
	"fmt"
)

// Dtype is a canonical manifest element type.
type Dtype string

const (
	Float32 Dtype = "float32"
	Int32   Dtype = "int32"
	Uint8   Dtype = "uint8"
	Uint16  Dtype = "uint16"
	Bool    Dtype = "bool"
	// Float16 appears only as quantized storage, never as a weight dtype.
	Float16 Dtype = "float16"
)

// Size returns bytes per element, or 0 for an unknown dtype.
func (d Dtype) Size() int64 {
	switch d {
	case Float32, Int32:
		return 4
	case Uint16, Float16:
		return 2
	case Uint8, Bool:
		return 1
	}
	return 0
}

// SourceTensor is one tensor as handed over by a model parser, with the
// source framework's dtype tag still attached (e.g. "F32", "BF16").
type SourceTensor struct {
	Name  string
	Dtype string
	Shape []int64
	Data  []byte
}

// Tensor is a collected tensor in canonical form. Data holds the stored
// bytes: the canonical encoding of Dtype, or the quantized encoding when
// Quant is set.
type Tensor struct {
	Name  string
	Dtype Dtype
	Shape []int64
	Data  []byte
	Quant *Quantization
}

// Group is one logical save-unit of tensors, in source order.
type Group []Tensor

// Elements returns the number of elements implied by the shape.
func (t *Tensor) Elements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// StorageDtype is the element type of the bytes actually stored, which
// differs from Dtype for quantized tensors.
func (t *Tensor) StorageDtype() Dtype {
	if t.Quant != nil {
		return t.Quant.Dtype
	}
	return t.Dtype
}

// Quantization records how a weight's stored bytes were reduced, enough
// for a consumer to recover approximate original values.
type Quantization struct {
	Dtype Dtype   `json:"dtype"`
	Scale float64 `json:"scale,omitempty"`
	Min   float64 `json:"min,omitempty"`
}

// WeightEntry is one weight's manifest record.
type WeightEntry struct {
	Name         string        `json:"name"`
	Shape        []int64       `json:"shape"`
	Dtype        Dtype         `json:"dtype"`
	Quantization *Quantization `json:"quantization,omitempty"`
}

// StorageBytes is the byte length of the weight's stored run, in units of
// the quantized dtype when quantization is present.
func (w *WeightEntry) StorageBytes() int64 {
	n := int64(1)
	for _, d := range w.Shape {
		n *= d
	}
	dt := w.Dtype
	if w.Quantization != nil {
		dt = w.Quantization.Dtype
	}
	return n * dt.Size()
}

// ManifestEntry describes one weight group: its shard files in index
// order and its weights in source order.
type ManifestEntry struct {
	Paths   []string      `json:"paths"`
	Weights []WeightEntry `json:"weights"`
}

// Manifest is the weightsManifest array of model.json, one entry per group.
type Manifest []ManifestEntry

// TensorRef locates one tensor's byte run inside a shard.
type TensorRef struct {
	Name   string
	Offset int64
	Length int64
}

// Shard is one contiguous slice of a group's byte stream. Indices are
// 0-based and contiguous within a group.
type Shard struct {
	Index int
	Data  []byte
	Refs  []TensorRef
}

// Topology is the opaque model graph description passed through to
// model.json. The zero value means the source carried only weights.
type Topology struct {
	raw json.RawMessage
}

// TopologyFromJSON wraps a raw JSON value. An empty slice yields the
// absent topology.
func TopologyFromJSON(raw []byte) Topology {
	return Topology{raw: raw}
}

// Present reports whether the source model carried a topology.
func (t Topology) Present() bool { return len(t.raw) > 0 }

// JSON returns the raw topology value, nil when absent.
func (t Topology) JSON() json.RawMessage { return t.raw }

func (t Topology) MarshalJSON() ([]byte, error) {
	if !t.Present() {
		return []byte("null"), nil
	}
	return t.raw, nil
}

func (t *Topology) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.raw = nil
		return nil
	}
	t.raw = append(json.RawMessage(nil), b...)
	return nil
}

// ModelJSON is the top-level structure of model.json.
type ModelJSON struct {
	ModelTopology   Topology `json:"modelTopology"`
	WeightsManifest Manifest `json:"weightsManifest"`
}

// Artifact is a fully built conversion result, ready to be written:
// model.json content plus the shard file bytes keyed by the exact
// filenames referenced in the manifest paths.
type Artifact struct {
	Topology Topology
	Manifest Manifest
	Files    map[string][]byte
}

// ModelJSONBytes renders the model.json document.
func (a *Artifact) ModelJSONBytes() ([]byte, error) {
	b, err := json.Marshal(ModelJSON{ModelTopology: a.Topology, WeightsManifest: a.Manifest})
	if err != nil {
		return nil, fmt.Errorf("encode model.json: %w", err)
	}
	return b, nil
}
