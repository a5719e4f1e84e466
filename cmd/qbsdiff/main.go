// Command qbsdiff writes a BSDIFF40 patch transforming source into target.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/hucsmn/qbsdiff/bsdiff"
)

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
var level = flag.Int("level", 0, "bzip2 compression level 1-9 (0 = default)")
var threshold = flag.Uint64("threshold", 0, "small match acceptance threshold (0 = default)")
var debug = flag.Bool("debug", false, "on error, show ugly but useful debug info")

func recoverAndPrintError() {
	if r := recover(); r != nil {
		fmt.Println("Error:", r)
		os.Exit(255)
	}
}

func quitWith(format string, a ...interface{}) {
	fmt.Printf("Error: "+format+"\n", a...)
	os.Exit(255)
}

func main() {
	flag.Parse()
	args := flag.Args()

	if !*debug {
		defer recoverAndPrintError()
	}

	if len(args) != 3 {
		quitWith("usage: qbsdiff <source> <target> <patch>")
	}
	sourceFile, targetFile, patchFile := args[0], args[1], args[2]

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			quitWith("can't create cpu profile: %v", err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	cfg := bsdiff.DefaultConfig()
	if *level != 0 {
		cfg.CompressionLevel = *level
	}
	if *threshold != 0 {
		cfg.SmallMatchThreshold = *threshold
	}

	if err := cfg.File(sourceFile, targetFile, patchFile); err != nil {
		quitWith("%v", err)
	}
}
