package artifact

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/floats"
)

// QuantMode selects the optional weight quantization applied after
// collection. Only float32 tensors are quantized; everything else passes
// through untouched.
type QuantMode string

const (
	QuantNone    QuantMode = ""
	QuantUint8   QuantMode = "uint8"
	QuantUint16  QuantMode = "uint16"
	QuantFloat16 QuantMode = "float16"
)

// ParseQuantMode validates a CLI-supplied quantization mode.
func ParseQuantMode(s string) (QuantMode, error) {
	switch QuantMode(s) {
	case QuantNone, QuantUint8, QuantUint16, QuantFloat16:
		return QuantMode(s), nil
	}
	return QuantNone, fmt.Errorf("unknown quantization mode %q (want uint8, uint16 or float16)", s)
}

// Quantize re-encodes the float32 tensors of a group per mode, recording
// the quantization parameters each weight needs for dequantization. The
// manifest dtype stays float32; only the stored bytes shrink.
func Quantize(group Group, mode QuantMode) (Group, error) {
	if mode == QuantNone {
		return group, nil
	}
	out := make(Group, 0, len(group))
	for _, t := range group {
		if t.Dtype != Float32 || len(t.Data) == 0 {
			out = append(out, t)
			continue
		}
		q, err := quantizeTensor(t, mode)
		if err != nil {
			return nil, fmt.Errorf("quantize tensor %s: %w", t.Name, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func quantizeTensor(t Tensor, mode QuantMode) (Tensor, error) {
	elems := t.Elements()
	vals := make([]float64, elems)
	for i := int64(0); i < elems; i++ {
		vals[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(t.Data[4*i:])))
	}

	switch mode {
	case QuantFloat16:
		data := make([]byte, 2*elems)
		for i, v := range vals {
			binary.LittleEndian.PutUint16(data[2*i:], float16.Fromfloat32(float32(v)).Bits())
		}
		t.Data = data
		t.Quant = &Quantization{Dtype: Float16}
		return t, nil

	case QuantUint8, QuantUint16:
		var steps float64
		var dt Dtype
		if mode == QuantUint8 {
			steps, dt = 255, Uint8
		} else {
			steps, dt = 65535, Uint16
		}
		min, max := floats.Min(vals), floats.Max(vals)
		scale := (max - min) / steps
		if scale == 0 {
			// constant tensor: all codes zero, dequantizes to min
			scale = 1
		}
		if mode == QuantUint8 {
			data := make([]byte, elems)
			for i, v := range vals {
				data[i] = uint8(math.Round((v - min) / scale))
			}
			t.Data = data
		} else {
			data := make([]byte, 2*elems)
			for i, v := range vals {
				binary.LittleEndian.PutUint16(data[2*i:], uint16(math.Round((v-min)/scale)))
			}
			t.Data = data
		}
		t.Quant = &Quantization{Dtype: dt, Scale: scale, Min: min}
		return t, nil
	}
	return Tensor{}, fmt.Errorf("unknown quantization mode %q", mode)
}

// Dequantize recovers float32 values from a quantized weight's stored
// bytes using its manifest quantization record.
func Dequantize(w WeightEntry, data []byte) ([]float32, error) {
	if w.Quantization == nil {
		return nil, fmt.Errorf("weight %s is not quantized", w.Name)
	}
	q := w.Quantization
	n := int64(1)
	for _, d := range w.Shape {
		n *= d
	}
	if int64(len(data)) != n*q.Dtype.Size() {
		return nil, fmt.Errorf("weight %s: %d stored bytes, want %d", w.Name, len(data), n*q.Dtype.Size())
	}
	out := make([]float32, n)
	switch q.Dtype {
	case Float16:
		for i := int64(0); i < n; i++ {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
	case Uint8:
		for i := int64(0); i < n; i++ {
			out[i] = float32(float64(data[i])*q.Scale + q.Min)
		}
	case Uint16:
		for i := int64(0); i < n; i++ {
			c := binary.LittleEndian.Uint16(data[2*i:])
			out[i] = float32(float64(c)*q.Scale + q.Min)
		}
	default:
		return nil, fmt.Errorf("weight %s: unknown quantized dtype %q", w.Name, q.Dtype)
	}
	return out, nil
}
