// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compression

import (
	"bytes"
	"io"
	"os/exec"

	"github.com/ulikunitz/xz"
)

// XZ implements Compressor and uses a Go-based implementation.
type XZ struct{}

// Name returns the type of compression employed.
func (c *XZ) Name() string {
	return "XZ"
}

// Decode decodes a byte slice of XZ data.
func (c *XZ) Decode(encodedData []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(encodedData))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Encode encodes a byte slice with XZ.
func (c *XZ) Encode(decodedData []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(decodedData); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SystemXZ implements Compressor and calls out to the system's compressor
// (except for Decode which uses the Go-based decompressor). The system's
// compressor is typically faster and generates smaller files than the
// Go-based implementation.
type SystemXZ struct {
	xzPath string
}

// Name returns the type of compression employed.
func (c *SystemXZ) Name() string {
	return "XZ"
}

// Decode decodes a byte slice of XZ data.
func (c *SystemXZ) Decode(encodedData []byte) ([]byte, error) {
	return (&XZ{}).Decode(encodedData)
}

// Encode encodes a byte slice with XZ.
func (c *SystemXZ) Encode(decodedData []byte) ([]byte, error) {
	cmd := exec.Command(c.xzPath, "--format=xz", "-9", "--stdout")
	cmd.Stdin = bytes.NewBuffer(decodedData)
	return cmd.Output()
}
