package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/webml/weightpack/internal/artifact"
	"github.com/webml/weightpack/internal/convert"
)

func cmdConvert() {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	model := fs.String("model", "", "path to a .safetensors file or a model directory")
	out := fs.String("out", "", "output artifact directory")
	shardBytes := fs.Int64("shard-bytes", artifact.DefaultShardBytes, "maximum shard file size in bytes")
	quantize := fs.String("quantize", "", "quantize float32 weights: uint8, uint16 or float16")
	rejectEmpty := fs.Bool("reject-empty", false, "fail on weight groups with no tensors")
	fs.Parse(os.Args[2:])
	if *model == "" || *out == "" {
		fmt.Println("usage: weightpack convert --model x.safetensors --out dir")
		os.Exit(1)
	}
	mode, err := artifact.ParseQuantMode(*quantize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convert: %v\n", err)
		os.Exit(1)
	}
	res, err := convert.Convert(*model, *out, convert.Options{
		ShardBytes:  *shardBytes,
		Quantize:    mode,
		RejectEmpty: *rejectEmpty,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "convert: %v\n", err)
		os.Exit(1)
	}

	weights, shards := 0, 0
	for _, entry := range res.Manifest {
		weights += len(entry.Weights)
		shards += len(entry.Paths)
	}
	topo := "no topology (weights only)"
	if res.Topology.Present() {
		topo = "topology passed through"
	}
	fmt.Printf("Converted: %s -> %s (%d groups, %d weights, %d shards, %s)\n",
		*model, *out, len(res.Groups), weights, shards, topo)
}
