package artifact

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// sourceDtypes maps source dtype tags to their canonical manifest dtype
// and per-element byte size in the source encoding. Wider float and int
// types are narrowed to float32/int32 on collection; half floats are
// widened to float32.
var sourceDtypes = map[string]struct {
	canon Dtype
	size  int64
}{
	"F32":  {Float32, 4},
	"F16":  {Float32, 2},
	"BF16": {Float32, 2},
	"F64":  {Float32, 8},
	"I32":  {Int32, 4},
	"I64":  {Int32, 8},
	"U8":   {Uint8, 1},
	"U16":  {Uint16, 2},
	"BOOL": {Bool, 1},
	// lowercase aliases seen in some exporters
	"float32":  {Float32, 4},
	"float16":  {Float32, 2},
	"bfloat16": {Float32, 2},
	"float64":  {Float32, 8},
	"int32":    {Int32, 4},
	"int64":    {Int32, 8},
	"uint8":    {Uint8, 1},
	"uint16":   {Uint16, 2},
	"bool":     {Bool, 1},
}

// Collect normalizes one parsed weight group: tensors keep their source
// order, dtypes are mapped to the canonical tags, and non-canonical
// encodings are re-encoded. Pure transform, no side effects.
func Collect(group []SourceTensor) (Group, error) {
	out := make(Group, 0, len(group))
	for _, st := range group {
		src, ok := sourceDtypes[st.Dtype]
		if !ok {
			return nil, &UnsupportedDtypeError{Tensor: st.Name, Dtype: st.Dtype}
		}
		shape := st.Shape
		if shape == nil {
			shape = []int64{}
		}
		elems := int64(1)
		for _, d := range shape {
			if d < 0 {
				return nil, fmt.Errorf("tensor %s: negative dimension %d", st.Name, d)
			}
			elems *= d
		}
		if int64(len(st.Data)) != elems*src.size {
			return nil, fmt.Errorf("tensor %s: %d data bytes, want %d (%v x %s)",
				st.Name, len(st.Data), elems*src.size, shape, st.Dtype)
		}
		data, err := canonicalBytes(st.Dtype, st.Data, elems)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", st.Name, err)
		}
		out = append(out, Tensor{Name: st.Name, Dtype: src.canon, Shape: shape, Data: data})
	}
	return out, nil
}

// canonicalBytes re-encodes source bytes into the canonical little-endian
// encoding of the mapped dtype. Raw-representable dtypes pass through.
func canonicalBytes(dtype string, data []byte, elems int64) ([]byte, error) {
	switch dtype {
	case "F16", "float16":
		out := make([]byte, 4*elems)
		for i := int64(0); i < elems; i++ {
			h := binary.LittleEndian.Uint16(data[2*i:])
			f := float16.Frombits(h).Float32()
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
		}
		return out, nil
	case "BF16", "bfloat16":
		f32s := bfloat16.DecodeFloat32(data)
		out := make([]byte, 4*elems)
		for i, f := range f32s {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
		}
		return out, nil
	case "F64", "float64":
		out := make([]byte, 4*elems)
		for i := int64(0); i < elems; i++ {
			f := math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(f)))
		}
		return out, nil
	case "I64", "int64":
		out := make([]byte, 4*elems)
		for i := int64(0); i < elems; i++ {
			v := int64(binary.LittleEndian.Uint64(data[8*i:]))
			if v > math.MaxInt32 || v < math.MinInt32 {
				return nil, fmt.Errorf("int64 value %d overflows int32", v)
			}
			binary.LittleEndian.PutUint32(out[4*i:], uint32(int32(v)))
		}
		return out, nil
	default:
		return data, nil
	}
}
