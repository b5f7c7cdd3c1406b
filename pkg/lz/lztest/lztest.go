// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lztest provides landing zone images and processors for tests.
package lztest

import (
	"encoding/binary"
)

const (
	// InfoOffset is where Image places the info record.
	InfoOffset = 8
	// EntryPoint is the entry point offset Image writes in the header.
	EntryPoint = 0x200
	// KeyHashAlgorithm is TPM_ALG_SHA256, the key hash algorithm of Image.
	KeyHashAlgorithm = 0x000b
	// KeyHashSize is the size of the key hash following the info record.
	KeyHashSize = 32
)

// SchemaUUID is the on-disk representation of the landing zone schema UUID.
var SchemaUUID = [16]byte{0x78, 0xf1, 0x26, 0x8e, 0x04, 0x92, 0x11, 0xe9,
	0x83, 0x2a, 0xc8, 0x5b, 0x76, 0xc4, 0xcc, 0x02}

// Image returns a valid landing zone image of the given size with its
// bootloader data area at dataOffset. The content is deterministic. The key
// hash is truncated when size is too small to hold it.
func Image(size int, dataOffset uint16) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	entry := uint16(EntryPoint)
	if int(entry) >= size {
		entry = uint16(size - 1)
	}
	binary.LittleEndian.PutUint16(data[0:], entry)
	binary.LittleEndian.PutUint16(data[2:], dataOffset)
	binary.LittleEndian.PutUint16(data[4:], InfoOffset)

	info := data[InfoOffset:]
	copy(info, SchemaUUID[:])
	binary.LittleEndian.PutUint32(info[16:], 1)
	binary.LittleEndian.PutUint16(info[20:], KeyHashAlgorithm)
	for i := 0; i < KeyHashSize && 22+i < len(info); i++ {
		info[22+i] = 0xa0 + byte(i)
	}
	return data
}

// CPU is a processor answering CPUID from fixed register values.
type CPU struct {
	// Leaves maps a CPUID leaf to EAX, EBX, ECX, EDX. Missing leaves read
	// as zero.
	Leaves map[uint32][4]uint32
}

// CPUID implements lz.CPU.
func (c *CPU) CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32) {
	r := c.Leaves[leaf]
	return r[0], r[1], r[2], r[3]
}

// AMD returns an AMD processor, implementing SKINIT if skinit is true.
func AMD(skinit bool) *CPU {
	var ecx uint32
	if skinit {
		ecx = 1 << 12
	}
	return &CPU{Leaves: map[uint32][4]uint32{
		0x80000000: {0x80000008, 0x68747541, 0x444d4163, 0x69746e65},
		0x80000001: {0, 0, ecx, 0},
	}}
}

// Intel returns an Intel processor.
func Intel() *CPU {
	return &CPU{Leaves: map[uint32][4]uint32{
		// "GenuineIntel"
		0x80000000: {0x80000008, 0x756e6547, 0x6c65746e, 0x49656e69},
	}}
}
