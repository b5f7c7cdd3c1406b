// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/canonical/go-tpm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxboot/landingzone/pkg/drtm"
	"github.com/linuxboot/landingzone/pkg/lz/lztest"
)

const testTarget = 0x100000

type fixedLocator struct {
	evtlog *drtm.EventLog
}

func (l fixedLocator) Locate() (*drtm.EventLog, bool) {
	return l.evtlog, l.evtlog != nil
}

type failingSegment struct {
	writes int
}

func (s *failingSegment) PhysAddr() uint64 { return testTarget }

func (s *failingSegment) Prepare(filesz, memsz uint64) error {
	return errors.New("no memory")
}

func (s *failingSegment) WriteAt(p []byte, off int64) (int, error) {
	s.writes++
	return len(p), nil
}

func probeTestImage(t *testing.T, size int, dataOffset uint16) *Image {
	img, err := Probe(lztest.AMD(true), lztest.Image(size, dataOffset), DefaultConfig())
	require.NoError(t, err)
	return img
}

func tagTypes(block *TagBlock) []TagType {
	var types []TagType
	for _, tag := range block.Tags {
		types = append(types, tag.Header().Type)
	}
	return types
}

func TestBuildLinux(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	seg := NewMemorySegment(testTarget)

	target, err := NewBuilder(nil).Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x00100000}, seg)
	require.NoError(t, err)
	assert.Equal(t, LaunchTarget(testTarget), target)
	assert.True(t, target.IsSet())

	slb := seg.Bytes()
	require.Len(t, slb, SLBSize)
	assert.Equal(t, img.Data[:64], slb[:64])

	_, block, err := ParseBlock(slb)
	require.NoError(t, err)
	assert.Equal(t, []TagType{TagTagsSize, TagHash, TagHash, TagBootLinux, TagEnd}, tagTypes(block))
	assert.Equal(t, uint32(92), block.SizeTag().Size)
	assert.Equal(t, uint32(SLBSize-64), block.SizeTag().Limit)
	assert.Equal(t, uint32(92), block.Len())

	assert.Equal(t, tpm2.HashAlgorithmSHA256, block.Tags[1].(*HashTag).AlgorithmID)
	assert.Len(t, block.Tags[1].(*HashTag).Digest, 32)
	assert.Equal(t, tpm2.HashAlgorithmSHA1, block.Tags[2].(*HashTag).AlgorithmID)
	assert.Len(t, block.Tags[2].(*HashTag).Digest, 20)
	assert.Equal(t, uint32(0x00100000), block.Boot().(*LinuxBootTag).ZeroPage)
	assert.Nil(t, block.EventLog())

	// the rest of the image follows the block untouched
	assert.Equal(t, img.Data[64+92:], slb[64+92:4096])
	assert.Equal(t, make([]byte, SLBSize-4096), slb[4096:])
}

func TestBuildMultiboot2WithEventLog(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	seg := NewMemorySegment(testTarget)
	b := NewBuilder(fixedLocator{evtlog: &drtm.EventLog{Address: 0x7f000000, Size: 0x10000}})

	args := BootArgs{Protocol: ProtocolMultiboot2, Params: 0x200000, KernelEntry: 0x1000000, KernelSize: 0x800000}
	_, err := b.Build(img, args, seg)
	require.NoError(t, err)

	_, block, err := ParseBlock(seg.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []TagType{TagTagsSize, TagHash, TagHash, TagBootMB2, TagEventLog, TagEnd}, tagTypes(block))
	assert.Equal(t, uint32(12+40+28+16+16+4), block.SizeTag().Size)

	mb2 := block.Boot().(*MB2BootTag)
	assert.Equal(t, uint32(0x200000), mb2.MBI)
	assert.Equal(t, uint32(0x1000000), mb2.KernelEntry)
	assert.Equal(t, uint32(0x800000), mb2.KernelSize)

	evtlog := block.EventLog()
	require.NotNil(t, evtlog)
	assert.Equal(t, uint64(0x7f000000), evtlog.Address)
	assert.Equal(t, uint32(0x10000), evtlog.Size)
}

func TestBuildEventLogAbsent(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	seg := NewMemorySegment(testTarget)

	_, err := NewBuilder(fixedLocator{}).Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x1000}, seg)
	require.NoError(t, err)

	_, block, err := ParseBlock(seg.Bytes())
	require.NoError(t, err)
	require.Len(t, block.Tags, 5)
	assert.Equal(t, TagBootLinux, block.Tags[3].Header().Type)
	assert.Equal(t, TagEnd, block.Tags[4].Header().Type)
}

func TestBuildDeterministic(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	args := BootArgs{Protocol: ProtocolLinux, Params: 0x00100000}

	seg1 := NewMemorySegment(testTarget)
	_, err := NewBuilder(nil).Build(img, args, seg1)
	require.NoError(t, err)
	seg2 := NewMemorySegment(testTarget)
	_, err = NewBuilder(nil).Build(img, args, seg2)
	require.NoError(t, err)

	assert.Equal(t, seg1.Bytes(), seg2.Bytes())
}

func TestBuildDoesNotModifyImage(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	orig := append([]byte(nil), img.Data...)

	_, err := NewBuilder(nil).Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x1000}, NewMemorySegment(testTarget))
	require.NoError(t, err)
	assert.Equal(t, orig, img.Data)
}

func TestBuildUnsupportedProtocol(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	seg := NewMemorySegment(testTarget)

	target, err := NewBuilder(nil).Build(img, BootArgs{Protocol: 0xff, Params: 0x1000}, seg)
	var protoErr ErrUnsupportedProtocol
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, Protocol(0xff), protoErr.Protocol)
	assert.False(t, target.IsSet())

	// the image was copied but no tag was written
	assert.Equal(t, img.Data, seg.Bytes()[:4096])
}

func TestBuildFixed(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	seg := NewMemorySegment(testTarget)
	b := NewBuilder(fixedLocator{evtlog: &drtm.EventLog{Address: 0x7f000000, Size: 0x8000}})
	b.Config.Format = FormatFixed

	_, err := b.Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x90000}, seg)
	require.NoError(t, err)

	d, err := ParseFixedBootData(seg.Bytes()[64:])
	require.NoError(t, err)
	assert.Equal(t, uint32(0x90000), d.ZeroPage)
	assert.Equal(t, uint64(0x7f000000), d.EventLogAddress)
	assert.Equal(t, uint32(0x8000), d.EventLogSize)

	sha256, err := ComputeDigest(tpm2.HashAlgorithmSHA256, img.Data[:64])
	require.NoError(t, err)
	assert.Equal(t, sha256, d.SHA256[:])
	sha1, err := ComputeDigest(tpm2.HashAlgorithmSHA1, img.Data[:64])
	require.NoError(t, err)
	assert.Equal(t, sha1, d.SHA1[:])

	_, err = b.Build(img, BootArgs{Protocol: ProtocolMultiboot2, Params: 0x90000}, NewMemorySegment(testTarget))
	assert.Equal(t, ErrUnsupportedProtocol{Protocol: ProtocolMultiboot2, Format: FormatFixed}, err)
}

func TestBuildCapacity(t *testing.T) {
	img := probeTestImage(t, 120, 64)

	b := NewBuilder(nil)
	b.Config.SLBSize = 128
	_, err := b.Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x1000}, NewMemorySegment(testTarget))
	assert.Equal(t, ErrCapacityExceeded{Need: 12 + 40 + 28, Capacity: 64}, err)

	// exactly enough room
	b.Config.SLBSize = 64 + 92
	seg := NewMemorySegment(testTarget)
	_, err = b.Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x1000}, seg)
	require.NoError(t, err)
	assert.Equal(t, uint32(92), binary.LittleEndian.Uint32(seg.Bytes()[64+4:]))
}

func TestBuildSegmentPreparationFailure(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	seg := &failingSegment{}

	target, err := NewBuilder(nil).Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x1000}, seg)
	var prepErr ErrSegmentPreparation
	require.ErrorAs(t, err, &prepErr)
	assert.EqualError(t, prepErr.Err, "no memory")
	assert.Zero(t, target)
	assert.Zero(t, seg.writes)
}

func TestBuildTargetChecks(t *testing.T) {
	img := probeTestImage(t, 4096, 64)
	for _, addr := range []uint64{0, 0x1000, 0xffff0000 + SLBAlignment} {
		_, err := NewBuilder(nil).Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x1000}, NewMemorySegment(addr))
		var rangeErr ErrAddressOutOfRange
		assert.ErrorAs(t, err, &rangeErr, "address 0x%x", addr)
	}

	_, err := NewBuilder(nil).Build(img, BootArgs{Protocol: ProtocolLinux, Params: 0x1_0000_0000}, NewMemorySegment(0xffff0000))
	var rangeErr ErrAddressOutOfRange
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "boot parameters", rangeErr.What)
}

func TestCheckTarget(t *testing.T) {
	assert.NoError(t, CheckTarget(0x10000))
	assert.NoError(t, CheckTarget(0xffff0000))
	assert.Error(t, CheckTarget(0))
	assert.Error(t, CheckTarget(0x18000))
	assert.Error(t, CheckTarget(0x1_0000_0000))
}
