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

// TagType is the type of a tag in the bootloader data area.
type TagType uint16

// Tag types. The upper nibble is the tag class.
const (
	TagClassMask TagType = 0xF0

	// Tags with no particular class
	TagNoClass   TagType = 0x00
	TagEnd       TagType = 0x00
	TagUnawareOS TagType = 0x01
	TagTagsSize  TagType = 0x0F // always first

	// Tags specifying kernel type
	TagBootClass TagType = 0x10
	TagBootLinux TagType = 0x10
	TagBootMB2   TagType = 0x11

	// Tags specific to the TPM event log
	TagEventLogClass TagType = 0x20
	TagEventLog      TagType = 0x20
	TagHash          TagType = 0x21
)

// Class returns the class of the tag type.
func (t TagType) Class() TagType {
	return t & TagClassMask
}

func (t TagType) String() string {
	switch t {
	case TagEnd:
		return "End"
	case TagUnawareOS:
		return "UnawareOS"
	case TagTagsSize:
		return "TagsSize"
	case TagBootLinux:
		return "BootLinux"
	case TagBootMB2:
		return "BootMultiboot2"
	case TagEventLog:
		return "EventLog"
	case TagHash:
		return "Hash"
	}
	return fmt.Sprintf("Unknown(0x%02x)", uint16(t))
}

// Binary sizes of the tags, headers included.
const (
	TagHeaderSize    = 4
	SizeTagSize      = TagHeaderSize + 8
	HashTagFixedSize = TagHeaderSize + 4
	LinuxBootTagSize = TagHeaderSize + 4
	MB2BootTagSize   = TagHeaderSize + 12
	EventLogTagSize  = TagHeaderSize + 12
	EndTagSize       = TagHeaderSize
)

// TagHeader starts every tag. Len covers the whole tag, header included.
type TagHeader struct {
	Type TagType
	Len  uint16
}

// Header returns the tag header.
func (h TagHeader) Header() TagHeader { return h }

// Tag is a single record of the bootloader data area.
type Tag interface {
	Header() TagHeader
	// Bytes returns the binary representation of the whole tag.
	Bytes() []byte
}

func encode(v interface{}) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		// only fixed size structures are encoded here
		panic(fmt.Sprintf("unable to encode %T: %v", v, err))
	}
	return buf.Bytes()
}

// SizeTag is always the first tag. Size is the running total of the length
// of all tags written so far, itself included. Limit is the number of bytes
// available to the tag block inside the secure loader block.
type SizeTag struct {
	TagHeader
	Size  uint32
	Limit uint32
}

// NewSizeTag returns a size tag accounting only for itself.
func NewSizeTag(limit uint32) *SizeTag {
	return &SizeTag{
		TagHeader: TagHeader{Type: TagTagsSize, Len: SizeTagSize},
		Size:      SizeTagSize,
		Limit:     limit,
	}
}

// Bytes implements Tag.
func (t *SizeTag) Bytes() []byte { return encode(t) }

// HashTag carries one digest of the measured part of the landing zone.
type HashTag struct {
	TagHeader
	AlgorithmID tpm2.HashAlgorithmId
	Reserved    uint16
	Digest      []byte
}

// NewHashTag returns a hash tag for the given digest.
func NewHashTag(alg tpm2.HashAlgorithmId, digest []byte) *HashTag {
	return &HashTag{
		TagHeader:   TagHeader{Type: TagHash, Len: uint16(HashTagFixedSize + len(digest))},
		AlgorithmID: alg,
		Digest:      append([]byte(nil), digest...),
	}
}

// Bytes implements Tag.
func (t *HashTag) Bytes() []byte {
	b := make([]byte, HashTagFixedSize, HashTagFixedSize+len(t.Digest))
	binary.LittleEndian.PutUint16(b[0:], uint16(t.Type))
	binary.LittleEndian.PutUint16(b[2:], t.Len)
	binary.LittleEndian.PutUint16(b[4:], uint16(t.AlgorithmID))
	binary.LittleEndian.PutUint16(b[6:], t.Reserved)
	return append(b, t.Digest...)
}

// LinuxBootTag passes the physical address of the Linux zero page.
type LinuxBootTag struct {
	TagHeader
	ZeroPage uint32
}

// NewLinuxBootTag returns a boot tag for the Linux boot protocol.
func NewLinuxBootTag(zeroPage uint32) *LinuxBootTag {
	return &LinuxBootTag{
		TagHeader: TagHeader{Type: TagBootLinux, Len: LinuxBootTagSize},
		ZeroPage:  zeroPage,
	}
}

// Bytes implements Tag.
func (t *LinuxBootTag) Bytes() []byte { return encode(t) }

// MB2BootTag passes the Multiboot2 information structure and the kernel
// location.
type MB2BootTag struct {
	TagHeader
	MBI         uint32
	KernelEntry uint32
	KernelSize  uint32
}

// NewMB2BootTag returns a boot tag for the Multiboot2 protocol.
func NewMB2BootTag(mbi, kernelEntry, kernelSize uint32) *MB2BootTag {
	return &MB2BootTag{
		TagHeader:   TagHeader{Type: TagBootMB2, Len: MB2BootTagSize},
		MBI:         mbi,
		KernelEntry: kernelEntry,
		KernelSize:  kernelSize,
	}
}

// Bytes implements Tag.
func (t *MB2BootTag) Bytes() []byte { return encode(t) }

// EventLogTag describes the DRTM TPM event log area.
type EventLogTag struct {
	TagHeader
	Address uint64
	Size    uint32
}

// NewEventLogTag returns an event log tag.
func NewEventLogTag(address uint64, size uint32) *EventLogTag {
	return &EventLogTag{
		TagHeader: TagHeader{Type: TagEventLog, Len: EventLogTagSize},
		Address:   address,
		Size:      size,
	}
}

// Bytes implements Tag.
func (t *EventLogTag) Bytes() []byte { return encode(t) }

// EndTag terminates the tag block.
type EndTag struct {
	TagHeader
}

// NewEndTag returns a terminator.
func NewEndTag() *EndTag {
	return &EndTag{TagHeader: TagHeader{Type: TagEnd, Len: EndTagSize}}
}

// Bytes implements Tag.
func (t *EndTag) Bytes() []byte { return encode(t) }

// UnawareOSTag marks a kernel that does not know about the secure launch.
// It is never emitted by the builder.
type UnawareOSTag struct {
	TagHeader
}

// Bytes implements Tag.
func (t *UnawareOSTag) Bytes() []byte { return encode(t) }

// UnknownTag keeps the raw payload of a tag type this package does not know.
type UnknownTag struct {
	TagHeader
	Payload []byte
}

// Bytes implements Tag.
func (t *UnknownTag) Bytes() []byte {
	return append(encode(t.TagHeader), t.Payload...)
}
