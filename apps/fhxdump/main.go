//
// main.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Command fhxdump prints the validated contents of program binaries:
// entry point signatures, wire counts, the constant pool, and a
// disassembly of each function body.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fhexec/fhexec/program"
)

func main() {
	flag.Parse()

	log.SetFlags(0)

	if len(flag.Args()) == 0 {
		fmt.Printf("no files specified\n")
		os.Exit(1)
	}
	for _, arg := range flag.Args() {
		if err := dump(arg); err != nil {
			log.Fatalf("%s: %s", arg, err)
		}
	}
}

func dump(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	bin, err := program.Validate(raw)
	if err != nil {
		return err
	}

	fmt.Printf("%s: version %d, %d entry points, %d constants\n", path,
		bin.Version, len(bin.Entries), len(bin.Consts))

	if len(bin.Consts) > 0 {
		fmt.Printf("\nconstants:\n")
		for i, c := range bin.Consts {
			fmt.Printf("  c%d\t%d\n", i, c)
		}
	}

	for _, e := range bin.Entries {
		fmt.Printf("\n%s%s: %d wires, %d instructions\n", e.Name,
			e.Signature(), e.NumWires, len(e.Code))
		for idx, instr := range e.Code {
			fmt.Printf("%04d\t%s\n", idx, instr)
		}
	}
	return nil
}
