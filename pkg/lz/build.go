// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"fmt"
	"math"

	"github.com/linuxboot/landingzone/pkg/bytes"
	"github.com/linuxboot/landingzone/pkg/drtm"
	"github.com/linuxboot/landingzone/pkg/log"
)

// SLBAlignment is the alignment SKINIT requires for the secure loader block.
const SLBAlignment = 0x10000

// LaunchTarget is the physical address of a built secure loader block. The
// zero value means that no block was built.
//
// It is written once by Build and read once by the launch sequence.
type LaunchTarget uint64

// IsSet returns true if the target designates a built block.
func (t LaunchTarget) IsSet() bool { return t != 0 }

func (t LaunchTarget) String() string { return fmt.Sprintf("0x%x", uint64(t)) }

// EventLogLocator finds the DRTM TPM event log.
type EventLogLocator interface {
	Locate() (*drtm.EventLog, bool)
}

// BootArgs are the boot protocol arguments handed over to the landing zone.
type BootArgs struct {
	Protocol Protocol
	// Params is the physical address of the Linux zero page or of the
	// Multiboot2 information structure.
	Params uint64
	// KernelEntry and KernelSize are only used by Multiboot2.
	KernelEntry uint32
	KernelSize  uint32
}

// Builder builds secure loader blocks from probed images.
type Builder struct {
	Config Config
	// Locator is optional; without it no event log is described.
	Locator EventLogLocator
}

// NewBuilder returns a builder using the default configuration.
func NewBuilder(locator EventLogLocator) *Builder {
	return &Builder{Config: DefaultConfig(), Locator: locator}
}

// CheckTarget verifies that addr can hold a secure loader block: it must be
// non zero, aligned to SLBAlignment, and the whole block must lie below 4GiB.
func CheckTarget(addr uint64) error {
	switch {
	case addr == 0:
		return ErrAddressOutOfRange{What: "target", Address: addr, Reason: "zero"}
	case addr%SLBAlignment != 0:
		return ErrAddressOutOfRange{What: "target", Address: addr, Reason: fmt.Sprintf("not aligned to 0x%x", SLBAlignment)}
	case addr+SLBSize > math.MaxUint32+1:
		return ErrAddressOutOfRange{What: "target", Address: addr, Reason: "above 4GiB"}
	}
	return nil
}

func check32(what string, addr uint64) (uint32, error) {
	if addr > math.MaxUint32 {
		return 0, ErrAddressOutOfRange{What: what, Address: addr, Reason: "above 4GiB"}
	}
	return uint32(addr), nil
}

// Build copies img into seg and writes the bootloader data area describing
// the measurements, the boot protocol and the event log. On success it
// returns the launch target; on failure the target is zero.
//
// When the protocol is rejected the segment already holds the copied image,
// but the bootloader data area is left untouched: a block is only written
// once it is complete and terminated.
func (b *Builder) Build(img *Image, args BootArgs, seg Segment) (LaunchTarget, error) {
	if err := b.Config.Validate(); err != nil {
		return 0, err
	}
	if err := CheckTarget(seg.PhysAddr()); err != nil {
		return 0, err
	}

	log.Debugf("LZ %s is being copied to 0x%x", img.Name, seg.PhysAddr())

	if err := seg.Prepare(uint64(len(img.Data)), b.Config.SLBSize); err != nil {
		log.Errorf("LZ %s could not prepare segment: %v", img.Name, err)
		return 0, ErrSegmentPreparation{Err: err}
	}
	if _, err := seg.WriteAt(img.Data, 0); err != nil {
		return 0, fmt.Errorf("could not copy image to 0x%x: %w", seg.PhysAddr(), err)
	}

	dataOffset := uint64(img.Header.BootloaderDataOffset)
	if dataOffset >= b.Config.SLBSize {
		return 0, ErrCapacityExceeded{Need: dataOffset, Capacity: b.Config.SLBSize}
	}
	limit := b.Config.SLBSize - dataOffset

	digests, err := Measure(img.Data[:dataOffset])
	if err != nil {
		return 0, err
	}

	var block []byte
	switch b.Config.Format {
	case FormatTags:
		block, err = b.buildTags(img, args, digests, limit)
	case FormatFixed:
		block, err = b.buildFixed(img, args, digests, limit)
	default:
		err = fmt.Errorf("unknown format %d", int(b.Config.Format))
	}
	if err != nil {
		return 0, err
	}

	layout := bytes.Ranges{
		{Length: SLHeaderSize},
		infoRange(&img.Header, &img.Info),
		{Offset: dataOffset, Length: uint64(len(block))},
	}
	layout.Sort()
	log.Debugf("LZ %s layout: %s", img.Name, layout)
	if a, b, overlap := layout.Overlapping(); overlap {
		log.Warnf("LZ %s: overlapping ranges %s and %s", img.Name, a, b)
	}

	if _, err := seg.WriteAt(block, int64(dataOffset)); err != nil {
		return 0, fmt.Errorf("could not write bootloader data at 0x%x: %w", seg.PhysAddr()+dataOffset, err)
	}

	target := LaunchTarget(seg.PhysAddr())
	log.Debugf("LZ %s ready at %s, bootloader data is %d bytes", img.Name, target, len(block))
	return target, nil
}

func (b *Builder) locate() (*drtm.EventLog, bool) {
	if b.Locator == nil {
		return nil, false
	}
	return b.Locator.Locate()
}

func (b *Builder) bootTag(args BootArgs) (Tag, error) {
	switch args.Protocol {
	case ProtocolLinux, ProtocolMultiboot2:
	default:
		return nil, ErrUnsupportedProtocol{Protocol: args.Protocol, Format: b.Config.Format}
	}

	params, err := check32("boot parameters", args.Params)
	if err != nil {
		return nil, err
	}
	log.Debugf("LZ writing %s boot parameters address: 0x%x", args.Protocol, params)

	if args.Protocol == ProtocolLinux {
		return NewLinuxBootTag(params), nil
	}
	return NewMB2BootTag(params, args.KernelEntry, args.KernelSize), nil
}

func (b *Builder) buildTags(img *Image, args BootArgs, digests []Digest, limit uint64) ([]byte, error) {
	if limit > math.MaxUint32 {
		limit = math.MaxUint32
	}
	w, err := NewTagBlockWriter(uint32(limit))
	if err != nil {
		return nil, err
	}

	for _, d := range digests {
		if err := w.Append(NewHashTag(d.Algorithm, d.Value)); err != nil {
			return nil, err
		}
	}

	boot, err := b.bootTag(args)
	if err != nil {
		return nil, err
	}
	if err := w.Append(boot); err != nil {
		return nil, err
	}

	if evtlog, ok := b.locate(); ok {
		if err := w.Append(NewEventLogTag(evtlog.Address, evtlog.Size)); err != nil {
			return nil, err
		}
	}

	return w.Close()
}
