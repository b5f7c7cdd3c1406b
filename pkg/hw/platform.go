// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hw gives access to the hardware of an AMD platform performing a
// SKINIT dynamic launch: the processor instructions, the local APIC and the
// TPM locality registers.
package hw

import (
	"fmt"

	"github.com/linuxboot/landingzone/pkg/log"
	"github.com/linuxboot/landingzone/pkg/slaunch"
)

// AMD is the slaunch.Platform of an AMD processor.
type AMD struct {
	Config Config
	MMIO   MMIO
	CPU    Processor
}

var _ slaunch.Platform = (*AMD)(nil)

// NewAMD returns the platform of the current processor using the default
// register layout.
func NewAMD(mmio MMIO) *AMD {
	return &AMD{
		Config: DefaultConfig(),
		MMIO:   mmio,
		CPU:    HostCPU{},
	}
}

// QuiesceSecondaryUnits implements slaunch.Platform.
func (p *AMD) QuiesceSecondaryUnits() error {
	log.Debugf("sending INIT IPI 0x%08x to 0x%x", p.Config.INITIPI, p.Config.ICRAddress)
	return p.MMIO.Write32(p.Config.ICRAddress, p.Config.INITIPI)
}

// ReleaseLocality implements slaunch.Platform.
func (p *AMD) ReleaseLocality(locality int) error {
	if locality < 0 || locality >= p.Config.TPMLocalities {
		return fmt.Errorf("locality %d out of range [0, %d)", locality, p.Config.TPMLocalities)
	}
	addr := p.Config.TPMAccessBase + uint64(locality)*p.Config.TPMLocalityStride
	return p.MMIO.Write8(addr, p.Config.RelinquishLocality)
}

// Settle implements slaunch.Platform.
func (p *AMD) Settle(cycles uint64) {
	start := p.CPU.Cycles()
	for p.CPU.Cycles()-start < cycles {
	}
}

// TransferControl implements slaunch.Platform.
func (p *AMD) TransferControl(target uint32) {
	p.CPU.SKINIT(target)
}
