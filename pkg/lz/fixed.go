// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/canonical/go-tpm2"
)

// FixedBootDataSize is the size of FixedBootData.
const FixedBootDataSize = 68

// FixedBootData is the bootloader data area of the first generation
// landing zones: a single record at a fixed layout, for Linux only.
type FixedBootData struct {
	ZeroPage        uint32
	EventLogAddress uint64
	EventLogSize    uint32
	SHA256          [32]byte
	SHA1            [20]byte
}

// Bytes returns the binary representation of the record.
func (d *FixedBootData) Bytes() []byte { return encode(d) }

// ParseFixedBootData decodes a FixedBootData record.
func ParseFixedBootData(b []byte) (*FixedBootData, error) {
	if len(b) < FixedBootDataSize {
		return nil, fmt.Errorf("fixed bootloader data needs %d bytes, got %d", FixedBootDataSize, len(b))
	}
	var d FixedBootData
	if err := binary.Read(bytes.NewReader(b[:FixedBootDataSize]), binary.LittleEndian, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (b *Builder) buildFixed(img *Image, args BootArgs, digests []Digest, limit uint64) ([]byte, error) {
	if args.Protocol != ProtocolLinux {
		return nil, ErrUnsupportedProtocol{Protocol: args.Protocol, Format: FormatFixed}
	}
	zeroPage, err := check32("boot parameters", args.Params)
	if err != nil {
		return nil, err
	}

	d := FixedBootData{ZeroPage: zeroPage}
	for _, digest := range digests {
		switch digest.Algorithm {
		case tpm2.HashAlgorithmSHA256:
			copy(d.SHA256[:], digest.Value)
		case tpm2.HashAlgorithmSHA1:
			copy(d.SHA1[:], digest.Value)
		}
	}
	if evtlog, ok := b.locate(); ok {
		d.EventLogAddress = evtlog.Address
		d.EventLogSize = evtlog.Size
	}

	if FixedBootDataSize > limit {
		return nil, ErrCapacityExceeded{Need: FixedBootDataSize, Capacity: limit}
	}
	return d.Bytes(), nil
}
