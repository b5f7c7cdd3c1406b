// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"fmt"
	"io"

	"github.com/u-root/u-root/pkg/memio"
	"github.com/xaionaro-go/bytesextra"
)

// Segment is the physical memory region the secure loader block is built in.
type Segment interface {
	io.WriterAt

	// PhysAddr returns the physical address of the first byte.
	PhysAddr() uint64

	// Prepare makes memsz bytes available for writing, of which the first
	// filesz are going to be copied from the image. The rest is zeroed.
	Prepare(filesz, memsz uint64) error
}

// MemorySegment is a Segment backed by a byte slice. It is used to build a
// secure loader block into a file, and by tests.
type MemorySegment struct {
	Addr uint64

	buf []byte
	rws *bytesextra.ReadWriteSeeker
}

var _ Segment = (*MemorySegment)(nil)

// NewMemorySegment returns an unprepared in-memory segment standing for
// the physical address addr.
func NewMemorySegment(addr uint64) *MemorySegment {
	return &MemorySegment{Addr: addr}
}

// PhysAddr implements Segment.
func (s *MemorySegment) PhysAddr() uint64 { return s.Addr }

// Prepare implements Segment.
func (s *MemorySegment) Prepare(filesz, memsz uint64) error {
	if filesz > memsz {
		return fmt.Errorf("file size %d exceeds memory size %d", filesz, memsz)
	}
	s.buf = make([]byte, memsz)
	s.rws = bytesextra.NewReadWriteSeeker(s.buf)
	return nil
}

// WriteAt implements io.WriterAt.
func (s *MemorySegment) WriteAt(p []byte, off int64) (int, error) {
	if s.rws == nil {
		return 0, fmt.Errorf("segment at 0x%x is not prepared", s.Addr)
	}
	if off < 0 || off+int64(len(p)) > int64(len(s.buf)) {
		return 0, fmt.Errorf("write of %d bytes at %#x exceeds segment of %d bytes", len(p), off, len(s.buf))
	}
	if _, err := s.rws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return s.rws.Write(p)
}

// Bytes returns the content of the segment.
func (s *MemorySegment) Bytes() []byte { return s.buf }

// DevMemSegment is a Segment writing physical memory through /dev/mem.
type DevMemSegment struct {
	Addr uint64
	// Size is the size of the memory reserved for the segment.
	Size uint64

	memsz uint64
}

var _ Segment = (*DevMemSegment)(nil)

// PhysAddr implements Segment.
func (s *DevMemSegment) PhysAddr() uint64 { return s.Addr }

// Prepare implements Segment.
func (s *DevMemSegment) Prepare(filesz, memsz uint64) error {
	if filesz > memsz {
		return fmt.Errorf("file size %d exceeds memory size %d", filesz, memsz)
	}
	if memsz > s.Size {
		return fmt.Errorf("segment at 0x%x has %d bytes, %d needed", s.Addr, s.Size, memsz)
	}
	if memsz > filesz {
		zero := memio.ByteSlice(make([]byte, memsz-filesz))
		if err := memio.Write(int64(s.Addr+filesz), &zero); err != nil {
			return fmt.Errorf("unable to zero segment at 0x%x: %w", s.Addr+filesz, err)
		}
	}
	s.memsz = memsz
	return nil
}

// WriteAt implements io.WriterAt.
func (s *DevMemSegment) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || uint64(off)+uint64(len(p)) > s.memsz {
		return 0, fmt.Errorf("write of %d bytes at %#x exceeds prepared segment of %d bytes", len(p), off, s.memsz)
	}
	data := memio.ByteSlice(p)
	if err := memio.Write(int64(s.Addr)+off, &data); err != nil {
		return 0, err
	}
	return len(p), nil
}
