// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compression implements reading and writing of compressed files.
//
// Landing zone images are distributed compressed alongside the kernel; the
// compressors here are recognized by the magic at the start of the stream.
package compression

import (
	"bytes"
	"fmt"
	"strings"
)

// Compressor defines a single compression scheme (such as XZ).
type Compressor interface {
	// Name is typically the name of a class.
	Name() string

	// Decode and Encode obey "x == Decode(Encode(x))".
	Decode(encodedData []byte) ([]byte, error)
	Encode(decodedData []byte) ([]byte, error)
}

// Stream magics.
var (
	xzMagic   = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// Detect returns the Compressor able to decode data, or nil if data does not
// start with a known stream magic. zlib streams have no magic distinctive
// enough to tell them from a raw image and are never detected.
func Detect(data []byte) Compressor {
	switch {
	case bytes.HasPrefix(data, xzMagic):
		return &XZ{}
	case bytes.HasPrefix(data, zstdMagic):
		return &ZSTD{}
	case bytes.HasPrefix(data, lz4Magic):
		return &LZ4{}
	}
	return nil
}

// Decompress decodes data if it is compressed, and returns it unchanged
// otherwise. The returned name is empty for uncompressed data.
func Decompress(data []byte) ([]byte, string, error) {
	c := Detect(data)
	if c == nil {
		return data, "", nil
	}
	decoded, err := c.Decode(data)
	if err != nil {
		return nil, c.Name(), fmt.Errorf("unable to decode %s stream: %w", c.Name(), err)
	}
	return decoded, c.Name(), nil
}

// CompressorFromName returns the Compressor with the given name. XZ encoding
// is delegated to the system xz command when xzPath is set.
func CompressorFromName(name, xzPath string) (Compressor, error) {
	switch strings.ToUpper(name) {
	case "XZ":
		if xzPath != "" {
			return &SystemXZ{xzPath}, nil
		}
		return &XZ{}, nil
	case "ZSTD":
		return &ZSTD{}, nil
	case "LZ4":
		return &LZ4{}, nil
	case "ZLIB":
		return &ZLIB{}, nil
	}
	return nil, fmt.Errorf("unknown compression '%s'", name)
}
