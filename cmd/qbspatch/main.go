// Command qbspatch applies a BSDIFF40 patch to a source file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hucsmn/qbsdiff/bsdiff"
)

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
		quitWith("usage: qbspatch <source> <patch> <target>")
	}
	sourceFile, patchFile, targetFile := args[0], args[1], args[2]

	if err := bsdiff.File(sourceFile, patchFile, targetFile); err != nil {
		quitWith("%v", err)
	}
}
