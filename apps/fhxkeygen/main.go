//
// main.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Command fhxkeygen generates a client key set: the secret key (stays
// with the client), the public key (encrypts parameters), and the
// compute key (shipped to the executor). Each key is written to its
// own file with a versioned header.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/fhe/schemes"
)

func main() {
	schemeName := flag.String("s", "boolean",
		"scheme to generate keys for (boolean, cleartext)")
	dir := flag.String("d", ".", "output directory")
	prefix := flag.String("n", "fhx", "key file name prefix")
	flag.Parse()

	if err := generate(*schemeName, *dir, *prefix); err != nil {
		fmt.Fprintf(os.Stderr, "fhxkeygen: %s\n", err)
		os.Exit(1)
	}
}

func generate(schemeName, dir, prefix string) error {
	scheme, err := schemes.ByName(schemeName)
	if err != nil {
		return err
	}
	keys, err := scheme.GenerateKeys()
	if err != nil {
		return err
	}

	secret, err := fhe.EncodeSecretKey(scheme, keys.Secret)
	if err != nil {
		return err
	}
	public, err := fhe.EncodePublicKey(scheme, keys.Public)
	if err != nil {
		return err
	}
	compute, err := fhe.EncodeComputeKey(scheme, keys.Compute)
	if err != nil {
		return err
	}

	for _, file := range []struct {
		suffix string
		data   []byte
		mode   os.FileMode
	}{
		{"sk", secret, 0600},
		{"pk", public, 0644},
		{"ck", compute, 0644},
	} {
		path := filepath.Join(dir,
			fmt.Sprintf("%s.%s.%s", prefix, schemeName, file.suffix))
		if err := os.WriteFile(path, file.data, file.mode); err != nil {
			return err
		}
		fmt.Printf("%s: %d bytes\n", path, len(file.data))
	}
	return nil
}
