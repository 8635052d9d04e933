package safetensors

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// Write persists tensors as a single safetensors file, laid out in the
// order given. Shapes and dtypes are written as-is; Data is the raw
// little-endian encoding.
func Write(path string, tensors []Tensor) error {
	header := make(map[string]tensorMeta, len(tensors))
	off := int64(0)
	for _, t := range tensors {
		if _, dup := header[t.Name]; dup {
			return fmt.Errorf("duplicate tensor name %q", t.Name)
		}
		shape := t.Shape
		if shape == nil {
			shape = []int64{}
		}
		header[t.Name] = tensorMeta{
			Dtype:       t.Dtype,
			Shape:       shape,
			DataOffsets: []int64{off, off + int64(len(t.Data))},
		}
		off += int64(len(t.Data))
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	var b8 [8]byte
	binary.LittleEndian.PutUint64(b8[:], uint64(len(hb)))
	if _, err := bw.Write(b8[:]); err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	for _, t := range tensors {
		if _, err := bw.Write(t.Data); err != nil {
			return err
		}
	}
	return bw.Flush()
}
