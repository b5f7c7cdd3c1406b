// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"fmt"

	"github.com/linuxboot/landingzone/pkg/slaunch"
)

// Step is one hardware access performed by the launch sequence.
type Step struct {
	Op    string
	Addr  uint64
	Value uint64
}

func (s Step) String() string {
	return fmt.Sprintf("%-8s 0x%08x 0x%x", s.Op, s.Addr, s.Value)
}

// Recorder is a platform performing no hardware access. It records the
// accesses the AMD platform would perform instead, for dry runs.
type Recorder struct {
	Config Config
	Steps  []Step

	// OnTransfer is called instead of SKINIT. The launch sequence treats
	// its return as fatal, so it usually ends the program.
	OnTransfer func(target uint32, steps []Step)
}

var _ slaunch.Platform = (*Recorder)(nil)

// QuiesceSecondaryUnits implements slaunch.Platform.
func (r *Recorder) QuiesceSecondaryUnits() error {
	r.Steps = append(r.Steps, Step{Op: "write32", Addr: r.Config.ICRAddress, Value: uint64(r.Config.INITIPI)})
	return nil
}

// ReleaseLocality implements slaunch.Platform.
func (r *Recorder) ReleaseLocality(locality int) error {
	if locality < 0 || locality >= r.Config.TPMLocalities {
		return fmt.Errorf("locality %d out of range [0, %d)", locality, r.Config.TPMLocalities)
	}
	addr := r.Config.TPMAccessBase + uint64(locality)*r.Config.TPMLocalityStride
	r.Steps = append(r.Steps, Step{Op: "write8", Addr: addr, Value: uint64(r.Config.RelinquishLocality)})
	return nil
}

// Settle implements slaunch.Platform.
func (r *Recorder) Settle(cycles uint64) {
	r.Steps = append(r.Steps, Step{Op: "settle", Value: cycles})
}

// TransferControl implements slaunch.Platform.
func (r *Recorder) TransferControl(target uint32) {
	r.Steps = append(r.Steps, Step{Op: "skinit", Addr: uint64(target)})
	if r.OnTransfer != nil {
		r.OnTransfer(target, r.Steps)
	}
}
