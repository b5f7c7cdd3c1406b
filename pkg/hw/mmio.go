// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"unsafe"

	"github.com/u-root/u-root/pkg/memio"
)

// MMIO writes memory mapped registers.
type MMIO interface {
	Write8(addr uint64, v uint8) error
	Write32(addr uint64, v uint32) error
}

// DevMem accesses registers through /dev/mem.
type DevMem struct{}

// Write8 implements MMIO.
func (DevMem) Write8(addr uint64, v uint8) error {
	val := memio.Uint8(v)
	return memio.Write(int64(addr), &val)
}

// Write32 implements MMIO.
func (DevMem) Write32(addr uint64, v uint32) error {
	val := memio.Uint32(v)
	return memio.Write(int64(addr), &val)
}

// Direct accesses registers by dereferencing their physical address. It is
// only usable where physical memory is identity mapped, as on bare metal.
type Direct struct{}

// Write8 implements MMIO.
func (Direct) Write8(addr uint64, v uint8) error {
	*(*uint8)(unsafe.Pointer(uintptr(addr))) = v
	return nil
}

// Write32 implements MMIO.
func (Direct) Write32(addr uint64, v uint32) error {
	*(*uint32)(unsafe.Pointer(uintptr(addr))) = v
	return nil
}
