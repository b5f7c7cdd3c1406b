// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

// Processor is the instruction level interface of the launching processor.
type Processor interface {
	// CPUID executes the CPUID instruction.
	CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)
	// Cycles reads the time stamp counter.
	Cycles() uint64
	// SKINIT measures and launches the secure loader block at target.
	SKINIT(target uint32)
}

// HostCPU executes the instructions on the current processor. SKINIT is a
// privileged instruction: outside of ring 0 it faults.
type HostCPU struct{}

// CPUID implements Processor.
func (HostCPU) CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32) {
	return cpuid(leaf, subleaf)
}

// Cycles implements Processor.
func (HostCPU) Cycles() uint64 {
	return rdtsc()
}

// SKINIT implements Processor.
func (HostCPU) SKINIT(target uint32) {
	skinit(target)
}

// AssumedAMD reports an AMD processor implementing SKINIT whatever the
// host is. It is used to probe and build images on another machine.
type AssumedAMD struct{}

// CPUID implements lz.CPU.
func (AssumedAMD) CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32) {
	switch leaf {
	case 0x80000000:
		// "AuthenticAMD"
		return 0x80000001, 0x68747541, 0x444d4163, 0x69746e65
	case 0x80000001:
		return 0, 0, 1 << 12, 0
	}
	return 0, 0, 0, 0
}
