package artifact

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func quantRoundTrip(t *testing.T, mode QuantMode, vals []float32) ([]float32, *Quantization) {
	t.Helper()
	group := Group{{Name: "w", Dtype: Float32, Shape: []int64{int64(len(vals))}, Data: f32le(vals...)}}
	out, err := Quantize(group, mode)
	if err != nil {
		t.Fatalf("quantize error: %v", err)
	}
	q := out[0]
	if q.Quant == nil {
		t.Fatalf("no quantization recorded")
	}
	entry := WeightEntry{Name: q.Name, Shape: q.Shape, Dtype: q.Dtype, Quantization: q.Quant}
	got, err := Dequantize(entry, q.Data)
	if err != nil {
		t.Fatalf("dequantize error: %v", err)
	}
	return got, q.Quant
}

func TestQuantizeUint8RoundTrip(t *testing.T) {
	vals := []float32{-1, -0.5, 0, 0.25, 0.5, 1, 2.5}
	got, q := quantRoundTrip(t, QuantUint8, vals)
	if q.Dtype != Uint8 {
		t.Fatalf("want uint8 storage, got %s", q.Dtype)
	}
	for i := range vals {
		if diff := math.Abs(float64(got[i]) - float64(vals[i])); diff > q.Scale/2+1e-7 {
			t.Fatalf("value %d: %f -> %f, off by %f (scale %f)", i, vals[i], got[i], diff, q.Scale)
		}
	}
}

func TestQuantizeUint16RoundTrip(t *testing.T) {
	vals := []float32{-3, 1.1, 0.001, 7.5}
	got, q := quantRoundTrip(t, QuantUint16, vals)
	for i := range vals {
		if diff := math.Abs(float64(got[i]) - float64(vals[i])); diff > q.Scale/2+1e-7 {
			t.Fatalf("value %d off by %f", i, diff)
		}
	}
}

func TestQuantizeFloat16Exact(t *testing.T) {
	// exactly representable in half precision
	vals := []float32{1.5, -0.25, 2, 0}
	got, q := quantRoundTrip(t, QuantFloat16, vals)
	if q.Dtype != Float16 || q.Scale != 0 || q.Min != 0 {
		t.Fatalf("float16 quantization should carry no scale/min: %+v", q)
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Fatalf("value %d: %f != %f", i, got[i], vals[i])
		}
	}
}

func TestQuantizeConstantTensor(t *testing.T) {
	vals := []float32{0.75, 0.75, 0.75}
	got, q := quantRoundTrip(t, QuantUint8, vals)
	if q.Scale != 1 {
		t.Fatalf("constant tensor should record scale 1, got %f", q.Scale)
	}
	for i := range got {
		if got[i] != 0.75 {
			t.Fatalf("constant value lost: %f", got[i])
		}
	}
}

func TestQuantizeSkipsNonFloat32(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:], 1)
	binary.LittleEndian.PutUint32(data[4:], 2)
	group := Group{{Name: "idx", Dtype: Int32, Shape: []int64{2}, Data: data}}
	out, err := Quantize(group, QuantUint8)
	if err != nil {
		t.Fatalf("quantize error: %v", err)
	}
	if out[0].Quant != nil || !bytes.Equal(out[0].Data, data) {
		t.Fatalf("int32 tensor should pass through unquantized")
	}
}

func TestQuantizeNoneIsIdentity(t *testing.T) {
	group := Group{{Name: "w", Dtype: Float32, Shape: []int64{2}, Data: f32le(1, 2)}}
	out, err := Quantize(group, QuantNone)
	if err != nil {
		t.Fatalf("quantize error: %v", err)
	}
	if out[0].Quant != nil || !bytes.Equal(out[0].Data, group[0].Data) {
		t.Fatalf("mode none must not touch tensors")
	}
}

func TestParseQuantMode(t *testing.T) {
	for _, ok := range []string{"", "uint8", "uint16", "float16"} {
		if _, err := ParseQuantMode(ok); err != nil {
			t.Fatalf("%q should parse: %v", ok, err)
		}
	}
	if _, err := ParseQuantMode("int4"); err == nil {
		t.Fatalf("bogus mode should fail")
	}
}
