// Package safetensors reads and writes single-file safetensors models.
// File layout: [header_len:u64 LE][header_json][tensor_data...], where
// each header entry carries dtype, shape and data_offsets relative to
// the start of the data region.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

type tensorMeta struct {
	Dtype       string  `json:"dtype"`
	Shape       []int64 `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Tensor is one named tensor with its raw stored bytes.
type Tensor struct {
	Name  string
	Dtype string
	Shape []int64
	Data  []byte
}

// File holds a parsed safetensors file with tensors in data-offset
// order, i.e. the order they were laid out when saved.
type File struct {
	Tensors []Tensor
}

// Open parses path and loads every tensor's bytes.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var b8 [8]byte
	if _, err := io.ReadFull(f, b8[:]); err != nil {
		return nil, fmt.Errorf("%s: read header length: %w", path, err)
	}
	hdrLen := binary.LittleEndian.Uint64(b8[:])
	if hdrLen == 0 || hdrLen > 1<<30 {
		return nil, fmt.Errorf("%s: implausible header length %d", path, hdrLen)
	}
	hdrBytes := make([]byte, hdrLen)
	if _, err := io.ReadFull(f, hdrBytes); err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(hdrBytes, &raw); err != nil {
		return nil, fmt.Errorf("%s: invalid header: %w", path, err)
	}

	type named struct {
		name string
		meta tensorMeta
	}
	entries := make([]named, 0, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			continue
		}
		var m tensorMeta
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, fmt.Errorf("%s: tensor %s: %w", path, name, err)
		}
		if len(m.DataOffsets) != 2 {
			return nil, fmt.Errorf("%s: tensor %s: malformed data_offsets", path, name)
		}
		entries = append(entries, named{name: name, meta: m})
	}
	// the header is a JSON map; save order is the data region byte order
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].meta.DataOffsets[0] != entries[j].meta.DataOffsets[0] {
			return entries[i].meta.DataOffsets[0] < entries[j].meta.DataOffsets[0]
		}
		return entries[i].name < entries[j].name
	})

	dataStart := int64(8 + hdrLen)
	out := &File{Tensors: make([]Tensor, 0, len(entries))}
	for _, e := range entries {
		start, end := e.meta.DataOffsets[0], e.meta.DataOffsets[1]
		if start < 0 || end < start {
			return nil, fmt.Errorf("%s: tensor %s: bad data_offsets [%d, %d)", path, e.name, start, end)
		}
		buf := make([]byte, end-start)
		if _, err := f.ReadAt(buf, dataStart+start); err != nil {
			return nil, fmt.Errorf("%s: tensor %s: read data: %w", path, e.name, err)
		}
		out.Tensors = append(out.Tensors, Tensor{
			Name:  e.name,
			Dtype: e.meta.Dtype,
			Shape: e.meta.Shape,
			Data:  buf,
		})
	}
	return out, nil
}
