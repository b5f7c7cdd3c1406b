// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/canonical/go-tpm2"
	"github.com/hashicorp/go-multierror"
)

// TagBlock is a decoded bootloader data area in the tag based format.
type TagBlock struct {
	// Tags are all the tags in order, the size tag and terminator included.
	Tags []Tag
}

// SizeTag returns the leading size tag, if any.
func (b *TagBlock) SizeTag() *SizeTag {
	if len(b.Tags) == 0 {
		return nil
	}
	t, _ := b.Tags[0].(*SizeTag)
	return t
}

// Len returns the sum of the lengths of all tags.
func (b *TagBlock) Len() uint32 {
	var total uint32
	for _, t := range b.Tags {
		total += uint32(t.Header().Len)
	}
	return total
}

// Hashes returns the hash tags in order.
func (b *TagBlock) Hashes() []*HashTag {
	var result []*HashTag
	for _, t := range b.Tags {
		if h, ok := t.(*HashTag); ok {
			result = append(result, h)
		}
	}
	return result
}

// Hash returns the hash tag of the given algorithm.
func (b *TagBlock) Hash(alg tpm2.HashAlgorithmId) *HashTag {
	for _, h := range b.Hashes() {
		if h.AlgorithmID == alg {
			return h
		}
	}
	return nil
}

// Boot returns the first tag of the boot class.
func (b *TagBlock) Boot() Tag {
	for _, t := range b.Tags {
		if t.Header().Type.Class() == TagBootClass {
			return t
		}
	}
	return nil
}

// EventLog returns the event log tag, if any.
func (b *TagBlock) EventLog() *EventLogTag {
	for _, t := range b.Tags {
		if e, ok := t.(*EventLogTag); ok {
			return e
		}
	}
	return nil
}

// ErrTagOverrun is reported when a tag does not fit into the block.
type ErrTagOverrun struct {
	Offset int
	Len    int
	Block  int
}

func (err *ErrTagOverrun) Error() string {
	return fmt.Sprintf("tag at offset %d with length %d overruns block of %d bytes", err.Offset, err.Len, err.Block)
}

func decodeTag(hdr TagHeader, b []byte) (Tag, error) {
	var tag Tag
	switch hdr.Type {
	case TagTagsSize:
		tag = &SizeTag{}
	case TagBootLinux:
		tag = &LinuxBootTag{}
	case TagBootMB2:
		tag = &MB2BootTag{}
	case TagEventLog:
		tag = &EventLogTag{}
	case TagEnd:
		tag = &EndTag{}
	case TagUnawareOS:
		tag = &UnawareOSTag{}
	case TagHash:
		if len(b) < HashTagFixedSize {
			return nil, fmt.Errorf("hash tag of %d bytes is too short", len(b))
		}
		return &HashTag{
			TagHeader:   hdr,
			AlgorithmID: tpm2.HashAlgorithmId(binary.LittleEndian.Uint16(b[4:])),
			Reserved:    binary.LittleEndian.Uint16(b[6:]),
			Digest:      append([]byte(nil), b[HashTagFixedSize:]...),
		}, nil
	default:
		return &UnknownTag{TagHeader: hdr, Payload: append([]byte(nil), b[TagHeaderSize:]...)}, nil
	}

	if size := binary.Size(tag); size != len(b) {
		return nil, fmt.Errorf("tag %s has length %d, expected %d", hdr.Type, len(b), size)
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// ParseTags decodes the tag block at the start of b and verifies that it is
// self-describing: it starts with a size tag matching the sum of the tag
// lengths, fits into its limit, and ends with a terminator. Decoding stops
// at the first terminator. All violations are reported together.
func ParseTags(b []byte) (*TagBlock, error) {
	var result *multierror.Error
	block := &TagBlock{}

	off := 0
	terminated := false
	for off < len(b) && !terminated {
		if off+TagHeaderSize > len(b) {
			result = multierror.Append(result, &ErrTagOverrun{Offset: off, Len: TagHeaderSize, Block: len(b)})
			break
		}
		hdr := TagHeader{
			Type: TagType(binary.LittleEndian.Uint16(b[off:])),
			Len:  binary.LittleEndian.Uint16(b[off+2:]),
		}
		if hdr.Len < TagHeaderSize || off+int(hdr.Len) > len(b) {
			result = multierror.Append(result, &ErrTagOverrun{Offset: off, Len: int(hdr.Len), Block: len(b)})
			break
		}
		tag, err := decodeTag(hdr, b[off:off+int(hdr.Len)])
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("tag at offset %d: %w", off, err))
			break
		}
		block.Tags = append(block.Tags, tag)
		terminated = hdr.Type == TagEnd
		off += int(hdr.Len)
	}

	if err := block.check(terminated); err != nil {
		result = multierror.Append(result, err)
	}
	return block, result.ErrorOrNil()
}

func (b *TagBlock) check(terminated bool) error {
	var result *multierror.Error
	size := b.SizeTag()
	if size == nil {
		result = multierror.Append(result, fmt.Errorf("tag block does not start with a %s tag", TagTagsSize))
	} else {
		if size.Size != b.Len() {
			result = multierror.Append(result, fmt.Errorf("size tag records %d bytes, tags sum up to %d", size.Size, b.Len()))
		}
		if size.Size > size.Limit {
			result = multierror.Append(result, ErrCapacityExceeded{Need: uint64(size.Size), Capacity: uint64(size.Limit)})
		}
	}
	if !terminated {
		result = multierror.Append(result, fmt.Errorf("tag block is not terminated"))
	}
	if b.Boot() == nil {
		result = multierror.Append(result, fmt.Errorf("tag block has no boot protocol tag"))
	}
	return result.ErrorOrNil()
}

// VerifyDigests recomputes the digests of measured and compares them with
// the hash tags.
func (b *TagBlock) VerifyDigests(measured []byte) error {
	var result *multierror.Error
	hashes := b.Hashes()
	if len(hashes) == 0 {
		return fmt.Errorf("tag block has no hash tags")
	}
	for _, h := range hashes {
		want, err := ComputeDigest(h.AlgorithmID, measured)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if !bytes.Equal(want, h.Digest) {
			result = multierror.Append(result, fmt.Errorf("digest %#04x mismatch: tag has %x, computed %x", uint16(h.AlgorithmID), h.Digest, want))
		}
	}
	return result.ErrorOrNil()
}

// ParseBlock decodes the bootloader data area of a built secure loader
// block in the tag based format, and verifies its digests.
func ParseBlock(slb []byte) (*SLHeader, *TagBlock, error) {
	hdr, err := ReadHeader(slb)
	if err != nil {
		return nil, nil, err
	}
	dataOffset := int(hdr.BootloaderDataOffset)
	if dataOffset < SLHeaderSize || dataOffset >= len(slb) {
		return hdr, nil, fmt.Errorf("%w: bootloader data offset %#x outside of block of %d bytes", ErrMalformedHeader, dataOffset, len(slb))
	}
	block, err := ParseTags(slb[dataOffset:])
	if err != nil {
		return hdr, block, err
	}
	return hdr, block, block.VerifyDigests(slb[:dataOffset])
}
