package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/webml/weightpack/internal/fetch"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "init":
		cmdInit()
	case "list":
		cmdList()
	case "pull":
		cmdPull()
	case "convert":
		cmdConvert()
	case "inspect":
		cmdInspect()
	case "verify":
		cmdVerify()
	case "bundle":
		cmdBundle()
	case "unbundle":
		cmdUnbundle()
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("weightpack - portable sharded weight artifacts for web runtimes")
	fmt.Println("usage: weightpack <command> [args]")
	fmt.Println("  init                        initialize ~/.weightpack")
	fmt.Println("  list                        list models in ~/.weightpack/models")
	fmt.Println("  pull <url>                  download a model file to ~/.weightpack/models")
	fmt.Println("  convert --model <path> --out <dir> [--shard-bytes N] [--quantize uint8|uint16|float16]")
	fmt.Println("  inspect <dir|file.wpk>      summarize a converted artifact or bundle")
	fmt.Println("  verify  <dir|file.wpk>      check manifest accounting / bundle checksums")
	fmt.Println("  bundle   --dir <dir> --out <file.wpk>   pack an artifact into one file")
	fmt.Println("  unbundle --in <file.wpk> --out <dir>    unpack a bundle")
}

var (
	homeDir   = must(os.UserHomeDir())
	packHome  = filepath.Join(homeDir, ".weightpack")
	modelsDir = filepath.Join(packHome, "models")
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func cmdInit() {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Initialized:", packHome)
}

func cmdList() {
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		log.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ".safetensors" || filepath.Ext(name) == ".wpk" {
			fmt.Println(name)
		}
	}
}

func cmdPull() {
	if len(os.Args) < 3 {
		fmt.Println("usage: weightpack pull <url>")
		os.Exit(1)
	}
	url := os.Args[2]
	out := filepath.Join(modelsDir, filepath.Base(url))
	n, err := fetch.Download(url, out)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Downloaded: %s (%d bytes)\n", out, n)
}
