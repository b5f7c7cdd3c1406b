// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"fmt"
	"unsafe"

	"github.com/linuxboot/landingzone/pkg/lz"
)

// DirectSegment is a lz.Segment writing identity mapped physical memory.
type DirectSegment struct {
	Addr uint64
	// Size is the size of the memory reserved for the segment.
	Size uint64

	memsz uint64
}

var _ lz.Segment = (*DirectSegment)(nil)

// PhysAddr implements lz.Segment.
func (s *DirectSegment) PhysAddr() uint64 { return s.Addr }

func (s *DirectSegment) mem() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(s.Addr))), s.memsz)
}

// Prepare implements lz.Segment.
func (s *DirectSegment) Prepare(filesz, memsz uint64) error {
	if filesz > memsz {
		return fmt.Errorf("file size %d exceeds memory size %d", filesz, memsz)
	}
	if memsz > s.Size {
		return fmt.Errorf("segment at 0x%x has %d bytes, %d needed", s.Addr, s.Size, memsz)
	}
	s.memsz = memsz
	tail := s.mem()[filesz:]
	for i := range tail {
		tail[i] = 0
	}
	return nil
}

// WriteAt implements io.WriterAt.
func (s *DirectSegment) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || uint64(off)+uint64(len(p)) > s.memsz {
		return 0, fmt.Errorf("write of %d bytes at %#x exceeds prepared segment of %d bytes", len(p), off, s.memsz)
	}
	return copy(s.mem()[off:], p), nil
}
