// mksafetensors writes a small synthetic .safetensors model (two dense
// layers) for demos and manual testing of the converter, optionally with
// a config.json topology beside it.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/webml/weightpack/internal/safetensors"
)

func main() {
	out := flag.String("out", "toy.safetensors", "output safetensors path")
	withConfig := flag.Bool("with-config", false, "also write a config.json topology beside the output")
	flag.Parse()

	tensors := []safetensors.Tensor{
		{Name: "dense1/kernel", Dtype: "F32", Shape: []int64{4, 3}, Data: f32Data(12)},
		{Name: "dense1/bias", Dtype: "F32", Shape: []int64{4}, Data: f32Data(4)},
		{Name: "dense2/kernel", Dtype: "F32", Shape: []int64{2, 4}, Data: f32Data(8)},
	}
	if err := safetensors.Write(*out, tensors); err != nil {
		log.Fatal(err)
	}
	if *withConfig {
		cfg := []byte(`{"model_config":{"config":{"layers":[{"name":"dense1","units":4},{"name":"dense2","units":2}]}}}`)
		path := filepath.Join(filepath.Dir(*out), "config.json")
		if err := os.WriteFile(path, cfg, 0o644); err != nil {
			log.Fatal(err)
		}
	}
}

func f32Data(n int) []byte {
	b := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		v := float32(math.Sin(float64(i))*0.1 + 0.01*float64(i%7))
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}
