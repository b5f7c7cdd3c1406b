// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"fmt"

	"github.com/linuxboot/landingzone/pkg/log"
)

// CPUID leaves and bits checked before accepting an image.
const (
	CPUIDAMDCheck    = 0x80000000
	CPUIDAMDFeatures = 0x80000001
	// CPUIDSKINITBit is the SKINIT/STGI feature bit in ECX of CPUIDAMDFeatures.
	CPUIDSKINITBit = 1 << 12

	// "AuthenticAMD" as returned in EBX, EDX, ECX
	amdVendorEBX = 0x68747541
	amdVendorEDX = 0x69746E65
	amdVendorECX = 0x444D4163
)

// CPU executes the CPUID instruction.
type CPU interface {
	CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)
}

// Image is a landing zone image accepted by Probe.
type Image struct {
	Name    string
	Header  SLHeader
	Info    Info
	KeyHash []byte

	// Data is the raw image. It is owned by the caller and never modified.
	Data []byte
}

// CheckPlatform verifies that cpu is an AMD processor implementing SKINIT.
func CheckPlatform(cpu CPU) error {
	eax, ebx, ecx, edx := cpu.CPUID(CPUIDAMDCheck, 0)
	if eax < CPUIDAMDFeatures || ebx != amdVendorEBX || ecx != amdVendorECX || edx != amdVendorEDX {
		return ErrNotThisPlatform
	}
	_, _, ecx, _ = cpu.CPUID(CPUIDAMDFeatures, 0)
	if ecx&CPUIDSKINITBit == 0 {
		return ErrUnsupportedInstruction
	}
	return nil
}

// Probe decides whether data is a landing zone image that can be launched on
// this platform. The checks are, in order: the CPU, the size of the image,
// the readability of the header and info record, and the schema UUID.
// cfg must pass Validate, so the size bound never exceeds SLBSize.
func Probe(cpu CPU, data []byte, cfg Config) (*Image, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := CheckPlatform(cpu); err != nil {
		log.Debugf("LZ probe: %v", err)
		return nil, err
	}
	if uint64(len(data)) > cfg.SLBSize {
		log.Debugf("LZ probe: image of %d bytes too big for landing zone", len(data))
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(data), cfg.SLBSize)
	}

	hdr, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	info, err := ReadInfo(data, hdr)
	if err != nil {
		return nil, err
	}
	if info.UUID != SchemaUUID {
		log.Debugf("LZ probe: UUID %s is not %s", info.UUID, SchemaUUID)
		return nil, fmt.Errorf("%w: got %s", ErrSchemaMismatch, info.UUID)
	}
	if err := checkOffsets(data, hdr, info); err != nil {
		return nil, err
	}

	keyHash, err := keyHashRange(hdr, info).Slice(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	img := &Image{
		Name:    Name,
		Header:  *hdr,
		Info:    *info,
		KeyHash: append([]byte(nil), keyHash...),
		Data:    data,
	}
	return img, nil
}

// MeasuredSize returns the number of bytes measured into the hash tags: the
// part of the image preceding the bootloader data area.
func (img *Image) MeasuredSize() int {
	return int(img.Header.BootloaderDataOffset)
}
