// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slaunch implements the hardware sequence transferring control to a
// secure loader block with SKINIT.
//
// The sequence is irreversible: once the application processors are parked
// and the TPM localities released, the only way forward is the transfer
// itself, which does not return.
package slaunch

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/linuxboot/landingzone/pkg/log"
	"github.com/linuxboot/landingzone/pkg/lz"
)

const (
	// Localities is the number of TPM localities released before SKINIT.
	Localities = 5

	// SettleCycles is the number of TSC cycles to wait between parking the
	// application processors and SKINIT.
	//
	// AMD APM states that "a fixed delay of no more than 1000 processor
	// cycles may be necessary before executing SKINIT to ensure reliable
	// sensing of APIC INIT state by the SKINIT". 1000 is not enough in
	// practice, even in the lowest performance P-state; 2^16 is the lowest
	// power of 2 that works. With a shorter delay PCR17 reads as if a zero
	// length block had been measured, see IsEmptyMeasurement.
	SettleCycles = 0x10000
)

// ErrNotReady is returned when launching without a built secure loader block.
var ErrNotReady = errors.New("no launch target (unsupported kernel type?)")

// Platform is the hardware the launch sequence drives.
type Platform interface {
	// QuiesceSecondaryUnits puts all application processors in the
	// wait-for-SIPI state.
	QuiesceSecondaryUnits() error

	// ReleaseLocality relinquishes the given TPM locality.
	ReleaseLocality(locality int) error

	// Settle busy-waits until the given number of cycles have elapsed.
	Settle(cycles uint64)

	// TransferControl executes SKINIT on the secure loader block at target.
	// It does not return on success.
	TransferControl(target uint32)
}

// Sequencer runs the launch sequence on a Platform.
type Sequencer struct {
	Platform     Platform
	SettleCycles uint64
	// Localities is the number of TPM localities released, starting
	// from locality 0.
	Localities int
}

// NewSequencer returns a sequencer using the default settle delay and
// releasing all the TPM localities.
func NewSequencer(p Platform) *Sequencer {
	return &Sequencer{Platform: p, SettleCycles: SettleCycles, Localities: Localities}
}

// Launch transfers control to the secure loader block at target. It only
// returns if target is not set or a step before the transfer failed. If the
// transfer instruction itself returns, the process is terminated through
// log.Fatalf: the hardware state can no longer be trusted.
//
// target is written once by lz.Builder.Build and read once here. The whole
// sequence runs locked to one OS thread: the INIT IPI is sent to all
// processors but the current one, which must be the one executing SKINIT.
func (s *Sequencer) Launch(target lz.LaunchTarget) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !target.IsSet() {
		log.Errorf("LZ: no target address (unsupported kernel type?)")
		return ErrNotReady
	}
	if err := lz.CheckTarget(uint64(target)); err != nil {
		return err
	}

	if err := s.Platform.QuiesceSecondaryUnits(); err != nil {
		return fmt.Errorf("unable to put application processors in wait-for-SIPI state: %w", err)
	}

	localities := s.Localities
	if localities <= 0 {
		log.Warnf("LZ: %d TPM localities to release, releasing %d", localities, Localities)
		localities = Localities
	}
	for locality := 0; locality < localities; locality++ {
		if err := s.Platform.ReleaseLocality(locality); err != nil {
			return fmt.Errorf("unable to release TPM locality %d: %w", locality, err)
		}
	}

	cycles := s.SettleCycles
	if cycles < SettleCycles {
		log.Warnf("LZ: settle delay of %d cycles raised to %d", cycles, SettleCycles)
		cycles = SettleCycles
	}
	s.Platform.Settle(cycles)

	log.Infof("LZ performing SKINIT with eax=%s now", target)
	s.Platform.TransferControl(uint32(target))

	// There is no way for the landing zone to return, since SKINIT
	// provides no return address.
	log.Fatalf("LZ: SKINIT returned from %s", target)
	panic("SKINIT returned")
}
