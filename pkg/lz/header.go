// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lz implements the landing zone (LZ) image format used for an AMD
// SKINIT based dynamic launch: probing of candidate images, and building of
// the secure loader block (SLB) the boot loader hands over to the landing zone.
//
// An image starts with a SLHeader. The header points to the landing zone
// entry point, to the bootloader data area where the boot loader appends its
// tag block, and to the Info record identifying the landing zone schema.
package lz

import (
	stdbytes "bytes"
	"encoding/binary"
	"fmt"

	"github.com/canonical/go-tpm2"

	"github.com/linuxboot/landingzone/pkg/bytes"
	"github.com/linuxboot/landingzone/pkg/uuid"
)

const (
	// Name is the display name given to accepted images.
	Name = "landing_zone"

	// SLBSize is the size of the secure loader block. The image and the
	// tags appended to it must fit in it.
	SLBSize = 0x10000

	// SLHeaderSize is the size of the binary SLHeader.
	SLHeaderSize = 6

	// InfoSize is the size of the fixed part of the Info record.
	InfoSize = 22
)

// SchemaUUID identifies the only landing zone schema this package supports.
var SchemaUUID = *uuid.MustParse("78f1268e-0492-11e9-832a-c85b76c4cc02")

// SLHeader is the header found at offset 0 of every landing zone image.
// All fields are byte offsets relative to the start of the image.
type SLHeader struct {
	EntryPoint           uint16
	BootloaderDataOffset uint16
	InfoOffset           uint16
}

// Info is the landing zone information record located at
// SLHeader.InfoOffset. It is followed by the hash of the public key used to
// sign the measured boot stages, in the KeyAlgorithm digest size.
type Info struct {
	UUID         uuid.UUID
	Version      uint32
	KeyAlgorithm tpm2.HashAlgorithmId
}

// Summary prints a multi-line summary of the header's content.
func (h SLHeader) Summary() string {
	s := fmt.Sprintf("Entry Point                : %#04x\n", h.EntryPoint)
	s += fmt.Sprintf("Bootloader Data Offset     : %#04x\n", h.BootloaderDataOffset)
	s += fmt.Sprintf("Info Offset                : %#04x\n", h.InfoOffset)
	return s
}

// Summary prints a multi-line summary of the info record.
func (i Info) Summary() string {
	s := fmt.Sprintf("UUID                       : %s\n", i.UUID)
	s += fmt.Sprintf("Version                    : %d\n", i.Version)
	s += fmt.Sprintf("Key Hash Algorithm         : %#04x\n", uint16(i.KeyAlgorithm))
	return s
}

// KeyHashSize returns the length of the key hash following the info record.
// Unknown algorithms carry no key hash.
func (i Info) KeyHashSize() int {
	h, ok := digestHashes[i.KeyAlgorithm]
	if !ok {
		return 0
	}
	return h.Size()
}

// ReadHeader reads the SLHeader at the start of data.
func ReadHeader(data []byte) (*SLHeader, error) {
	if len(data) < SLHeaderSize {
		return nil, fmt.Errorf("%w: need %d bytes for the header, got %d", ErrMalformedHeader, SLHeaderSize, len(data))
	}
	var hdr SLHeader
	if err := binary.Read(stdbytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return &hdr, nil
}

// ReadInfo reads the fixed part of the Info record referenced by hdr.
func ReadInfo(data []byte, hdr *SLHeader) (*Info, error) {
	start := int(hdr.InfoOffset)
	if start+InfoSize > len(data) {
		return nil, fmt.Errorf("%w: info record at %#x exceeds image of %d bytes", ErrMalformedHeader, start, len(data))
	}
	var info Info
	if err := binary.Read(stdbytes.NewReader(data[start:start+InfoSize]), binary.LittleEndian, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return &info, nil
}

// infoRange returns the location of the info record and its key hash.
func infoRange(hdr *SLHeader, info *Info) bytes.Range {
	return bytes.Range{Offset: uint64(hdr.InfoOffset), Length: uint64(InfoSize + info.KeyHashSize())}
}

// keyHashRange returns the location of the key hash.
func keyHashRange(hdr *SLHeader, info *Info) bytes.Range {
	return bytes.Range{Offset: uint64(hdr.InfoOffset) + InfoSize, Length: uint64(info.KeyHashSize())}
}

// checkOffsets verifies that every offset of the header lies within the
// image and that the bootloader data area does not overlap the header.
func checkOffsets(data []byte, hdr *SLHeader, info *Info) error {
	image := bytes.Range{Length: uint64(len(data))}
	if !(bytes.Ranges{image}).IsIn(uint64(hdr.EntryPoint)) {
		return fmt.Errorf("%w: entry point %#x outside of image of %d bytes", ErrMalformedHeader, hdr.EntryPoint, len(data))
	}
	if hdr.BootloaderDataOffset < SLHeaderSize || !image.Contains(bytes.Range{Offset: uint64(hdr.BootloaderDataOffset)}) {
		return fmt.Errorf("%w: bootloader data offset %#x outside of [%#x, %#x]", ErrMalformedHeader, hdr.BootloaderDataOffset, SLHeaderSize, len(data))
	}
	if r := infoRange(hdr, info); !image.Contains(r) {
		return fmt.Errorf("%w: key hash ends at %#x beyond image of %d bytes", ErrMalformedHeader, r.End(), len(data))
	}
	return nil
}
