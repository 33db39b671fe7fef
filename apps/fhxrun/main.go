//
// main.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Command fhxrun is the process boundary adapter: it reads the compute
// key and a serialized parameter block, validates the target binary,
// runs the requested entry point, and writes the serialized output
// block. The parameter block arrives on stdin and the output block
// leaves on stdout unless overridden; diagnostics go to stderr and any
// error exits non-zero without partial output.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/markkurossi/tabulate"

	"github.com/fhexec/fhexec/engine"
	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/fhe/schemes"
	"github.com/fhexec/fhexec/program"
	"github.com/fhexec/fhexec/wire"
)

func main() {
	binPath := flag.String("e", "", "program binary to execute")
	entry := flag.String("f", "", "entry point name")
	keyPath := flag.String("k", "", "compute key file")
	paramsPath := flag.String("p", "", "parameter block file (default stdin)")
	outputPath := flag.String("o", "", "output block file (default stdout)")
	check := flag.Bool("check", false, "validate the binary and exit")
	verbose := flag.Bool("v", false, "print gate statistics")
	flag.Parse()

	if err := run(*binPath, *entry, *keyPath, *paramsPath, *outputPath,
		*check, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "fhxrun: %s\n", err)
		os.Exit(1)
	}
}

func run(binPath, entry, keyPath, paramsPath, outputPath string,
	check, verbose bool) error {

	if len(binPath) == 0 {
		return fmt.Errorf("no program binary specified (-e)")
	}
	raw, err := os.ReadFile(binPath)
	if err != nil {
		return err
	}
	bin, err := program.Validate(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", binPath, err)
	}

	if check {
		if len(entry) > 0 {
			if _, err := bin.Entry(entry); err != nil {
				return fmt.Errorf("%s: %w", binPath, err)
			}
		}
		fmt.Printf("%s: ok, %d entry points, %d constants\n", binPath,
			len(bin.Entries), len(bin.Consts))
		return nil
	}

	if len(entry) == 0 {
		return fmt.Errorf("no entry point specified (-f)")
	}
	if len(keyPath) == 0 {
		return fmt.Errorf("no compute key specified (-k)")
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return err
	}
	scheme, err := schemes.ForKeyFile(keyData)
	if err != nil {
		return fmt.Errorf("%s: %w", keyPath, err)
	}
	ck, err := fhe.DecodeComputeKey(scheme, keyData)
	if err != nil {
		return fmt.Errorf("%s: %w", keyPath, err)
	}

	paramsData, err := readInput(paramsPath)
	if err != nil {
		return err
	}
	params, err := wire.Decode(scheme, paramsData)
	if err != nil {
		return err
	}

	result, err := engine.Run(bin, entry, params, scheme, ck)
	if err != nil {
		return err
	}
	if verbose {
		printStats(entry, result.Stats)
	}

	outputData, err := wire.EncodeOutputs(scheme, result.Outputs)
	if err != nil {
		return err
	}
	return writeOutput(outputPath, outputData)
}

func readInput(path string) ([]byte, error) {
	if len(path) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if len(path) == 0 {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func printStats(entry string, stats engine.Stats) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Gate").SetAlign(tabulate.ML)
	tab.Header("Count").SetAlign(tabulate.MR)

	for op := engine.GateAnd; op < engine.GateOp(len(stats)); op++ {
		row := tab.Row()
		row.Column(op.String())
		row.Column(fmt.Sprintf("%d", stats[op]))
	}
	row := tab.Row()
	row.Column("Total")
	row.Column(fmt.Sprintf("%d", stats.Count()))
	row = tab.Row()
	row.Column("Cost")
	row.Column(fmt.Sprintf("%d", stats.Cost()))

	fmt.Fprintf(os.Stderr, "%s:\n", entry)
	tab.Print(os.Stderr)
}
