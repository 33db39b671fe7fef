//
// schemes.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Package schemes resolves concrete fhe.Scheme implementations by the
// scheme tag carried in key files and wire headers, and by name for
// command line selection.
package schemes

import (
	"fmt"

	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/fhe/boolean"
	"github.com/fhexec/fhexec/fhe/cleartext"
)

// ByID creates the scheme with the given tag.
func ByID(id byte) (fhe.Scheme, error) {
	switch id {
	case cleartext.SchemeID:
		return cleartext.New(), nil
	case boolean.SchemeID:
		return boolean.New()
	default:
		return nil, fmt.Errorf("unknown scheme id %d", id)
	}
}

// ByName creates the scheme with the given name.
func ByName(name string) (fhe.Scheme, error) {
	switch name {
	case "cleartext":
		return cleartext.New(), nil
	case "boolean":
		return boolean.New()
	default:
		return nil, fmt.Errorf("unknown scheme %q", name)
	}
}

// ForKeyFile peeks the scheme tag of a key file and creates the named
// scheme.
func ForKeyFile(data []byte) (fhe.Scheme, error) {
	id, err := fhe.SchemeID(data)
	if err != nil {
		return nil, err
	}
	return ByID(id)
}
