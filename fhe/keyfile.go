//
// keyfile.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package fhe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Key files carry a defensive header in front of the scheme-opaque key
// bytes:
//
//	[MAGIC: 4 bytes][VERSION: 4 bytes big-endian][SCHEME: 1 byte][KEY]
//
// The decoder accepts an exact version match only, so incompatible key
// material fails early instead of being misparsed by the scheme.

// Key file magics.
var (
	SecretKeyMagic  = [4]byte{'F', 'X', 'S', 'K'}
	PublicKeyMagic  = [4]byte{'F', 'X', 'P', 'K'}
	ComputeKeyMagic = [4]byte{'F', 'X', 'C', 'K'}
)

// KeyFileVersion is the current key file format version.
const KeyFileVersion uint32 = 1

// ErrBadKeyFile is returned when a key file header is malformed,
// carries an unknown version, or names a different scheme.
var ErrBadKeyFile = errors.New("bad key file")

const keyHeaderSize = 4 + 4 + 1

func encodeKeyFile(magic [4]byte, scheme byte, key []byte) []byte {
	buf := make([]byte, 0, keyHeaderSize+len(key))
	buf = append(buf, magic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, KeyFileVersion)
	buf = append(buf, scheme)
	return append(buf, key...)
}

func decodeKeyFile(magic [4]byte, scheme byte, data []byte) ([]byte, error) {
	if len(data) < keyHeaderSize {
		return nil, fmt.Errorf("%w: truncated header", ErrBadKeyFile)
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrBadKeyFile,
			data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != KeyFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d, expected %d",
			ErrBadKeyFile, version, KeyFileVersion)
	}
	if data[8] != scheme {
		return nil, fmt.Errorf("%w: scheme %d, expected %d", ErrBadKeyFile,
			data[8], scheme)
	}
	return data[keyHeaderSize:], nil
}

// EncodeComputeKey serializes a compute key with the key file header.
func EncodeComputeKey(s Scheme, ck ComputeKey) ([]byte, error) {
	key, err := s.MarshalComputeKey(ck)
	if err != nil {
		return nil, err
	}
	return encodeKeyFile(ComputeKeyMagic, s.ID(), key), nil
}

// DecodeComputeKey parses a compute key file, validating the header
// before any key material is touched.
func DecodeComputeKey(s Scheme, data []byte) (ComputeKey, error) {
	key, err := decodeKeyFile(ComputeKeyMagic, s.ID(), data)
	if err != nil {
		return nil, err
	}
	return s.UnmarshalComputeKey(key)
}

// EncodeSecretKey serializes a secret key with the key file header.
// Client-side storage only.
func EncodeSecretKey(s Scheme, sk SecretKey) ([]byte, error) {
	key, err := s.MarshalSecretKey(sk)
	if err != nil {
		return nil, err
	}
	return encodeKeyFile(SecretKeyMagic, s.ID(), key), nil
}

// DecodeSecretKey parses a secret key file.
func DecodeSecretKey(s Scheme, data []byte) (SecretKey, error) {
	key, err := decodeKeyFile(SecretKeyMagic, s.ID(), data)
	if err != nil {
		return nil, err
	}
	return s.UnmarshalSecretKey(key)
}

// EncodePublicKey serializes a public key with the key file header.
func EncodePublicKey(s Scheme, pk PublicKey) ([]byte, error) {
	key, err := s.MarshalPublicKey(pk)
	if err != nil {
		return nil, err
	}
	return encodeKeyFile(PublicKeyMagic, s.ID(), key), nil
}

// DecodePublicKey parses a public key file.
func DecodePublicKey(s Scheme, data []byte) (PublicKey, error) {
	key, err := decodeKeyFile(PublicKeyMagic, s.ID(), data)
	if err != nil {
		return nil, err
	}
	return s.UnmarshalPublicKey(key)
}

// SchemeID peeks the scheme tag of a key file without decoding the
// key. Used by the runner to select the scheme named by the key file.
func SchemeID(data []byte) (byte, error) {
	if len(data) < keyHeaderSize {
		return 0, fmt.Errorf("%w: truncated header", ErrBadKeyFile)
	}
	switch {
	case bytes.Equal(data[:4], SecretKeyMagic[:]),
		bytes.Equal(data[:4], PublicKeyMagic[:]),
		bytes.Equal(data[:4], ComputeKeyMagic[:]):
		return data[8], nil
	}
	return 0, fmt.Errorf("%w: invalid magic %q", ErrBadKeyFile, data[:4])
}
