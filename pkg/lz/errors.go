// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"errors"
	"fmt"
)

// Rejections reported by Probe. None of them mutates the image.
var (
	// ErrNotThisPlatform means the host CPU is not an AMD processor.
	ErrNotThisPlatform = errors.New("not an AMD processor")
	// ErrUnsupportedInstruction means the processor lacks the SKINIT instruction.
	ErrUnsupportedInstruction = errors.New("processor doesn't support SKINIT instruction")
	// ErrTooLarge means the image does not fit into the secure loader block.
	ErrTooLarge = errors.New("image too big for landing zone")
	// ErrMalformedHeader means the header or info record cannot be read, or
	// one of its offsets points outside of the image.
	ErrMalformedHeader = errors.New("malformed landing zone header")
	// ErrSchemaMismatch means the info record carries an unknown UUID.
	ErrSchemaMismatch = errors.New("landing zone UUID mismatch")
	// ErrBlockClosed is returned when appending to a terminated tag block.
	ErrBlockClosed = errors.New("tag block is already terminated")
)

// ErrUnsupportedProtocol is returned by Build for an unknown boot protocol
// selector, or for a protocol the selected format cannot describe.
type ErrUnsupportedProtocol struct {
	Protocol Protocol
	Format   Format
}

func (err ErrUnsupportedProtocol) Error() string {
	return fmt.Sprintf("boot protocol %s is not supported by the %s format", err.Protocol, err.Format)
}

// ErrCapacityExceeded is returned when a tag (or record) would not fit into
// the space left in the secure loader block.
type ErrCapacityExceeded struct {
	Need     uint64
	Capacity uint64
}

func (err ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("secure loader block overflow: need %d bytes, capacity is %d", err.Need, err.Capacity)
}

// ErrSegmentPreparation wraps a failure of Segment.Prepare. No byte of the
// image was copied when it is returned.
type ErrSegmentPreparation struct {
	Err error
}

func (err ErrSegmentPreparation) Error() string {
	return fmt.Sprintf("could not prepare segment: %v", err.Err)
}

func (err ErrSegmentPreparation) Unwrap() error {
	return err.Err
}

// ErrAddressOutOfRange means a physical address cannot be used for the
// launch: it is misaligned, zero, or does not fit into 32 bits.
type ErrAddressOutOfRange struct {
	What    string
	Address uint64
	Reason  string
}

func (err ErrAddressOutOfRange) Error() string {
	return fmt.Sprintf("%s address 0x%x: %s", err.What, err.Address, err.Reason)
}
