package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/webml/weightpack/internal/fileformat"
)

func cmdBundle() {
	fs := flag.NewFlagSet("bundle", flag.ExitOnError)
	dir := fs.String("dir", "", "converted artifact directory")
	out := fs.String("out", "", "output .wpk file")
	fs.Parse(os.Args[2:])
	if *dir == "" || *out == "" {
		fmt.Println("usage: weightpack bundle --dir artifact/ --out model.wpk")
		os.Exit(1)
	}
	if err := fileformat.BundleDir(*dir, *out); err != nil {
		fmt.Fprintf(os.Stderr, "bundle: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Bundled:", *out)
}

func cmdUnbundle() {
	fs := flag.NewFlagSet("unbundle", flag.ExitOnError)
	in := fs.String("in", "", "input .wpk file")
	out := fs.String("out", "", "output artifact directory")
	fs.Parse(os.Args[2:])
	if *in == "" || *out == "" {
		fmt.Println("usage: weightpack unbundle --in model.wpk --out dir")
		os.Exit(1)
	}
	if err := fileformat.Unbundle(*in, *out); err != nil {
		fmt.Fprintf(os.Stderr, "unbundle: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Unbundled:", *out)
}
