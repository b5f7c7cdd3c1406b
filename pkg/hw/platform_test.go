// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxboot/landingzone/pkg/lz"
	"github.com/linuxboot/landingzone/pkg/slaunch"
)

type fakeMMIO struct {
	writes []Step
	fail   error
}

func (m *fakeMMIO) Write8(addr uint64, v uint8) error {
	m.writes = append(m.writes, Step{Op: "write8", Addr: addr, Value: uint64(v)})
	return m.fail
}

func (m *fakeMMIO) Write32(addr uint64, v uint32) error {
	m.writes = append(m.writes, Step{Op: "write32", Addr: addr, Value: uint64(v)})
	return m.fail
}

type skinitCalled uint32

type fakeCPU struct {
	tsc   uint64
	reads int
}

func (c *fakeCPU) CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32) { return }

func (c *fakeCPU) Cycles() uint64 {
	c.reads++
	c.tsc += 0x1000
	return c.tsc
}

func (c *fakeCPU) SKINIT(target uint32) {
	panic(skinitCalled(target))
}

var expectedSteps = []Step{
	{Op: "write32", Addr: 0xFEE00300, Value: 0x000C0500},
	{Op: "write8", Addr: 0xFED40000, Value: 0x20},
	{Op: "write8", Addr: 0xFED41000, Value: 0x20},
	{Op: "write8", Addr: 0xFED42000, Value: 0x20},
	{Op: "write8", Addr: 0xFED43000, Value: 0x20},
	{Op: "write8", Addr: 0xFED44000, Value: 0x20},
}

func TestAMDLaunch(t *testing.T) {
	mmio := &fakeMMIO{}
	cpu := &fakeCPU{}
	p := &AMD{Config: DefaultConfig(), MMIO: mmio, CPU: cpu}

	require.PanicsWithValue(t, skinitCalled(0x100000), func() {
		_ = slaunch.NewSequencer(p).Launch(lz.LaunchTarget(0x100000))
	})
	assert.Equal(t, expectedSteps, mmio.writes)
	// one read to start, then 0x10 increments of 0x1000
	assert.Equal(t, 1+0x10, cpu.reads)
}

func TestAMDLaunchMMIOFailure(t *testing.T) {
	mmio := &fakeMMIO{fail: errors.New("no access")}
	p := &AMD{Config: DefaultConfig(), MMIO: mmio, CPU: &fakeCPU{}}

	err := slaunch.NewSequencer(p).Launch(lz.LaunchTarget(0x100000))
	assert.ErrorIs(t, err, mmio.fail)
	assert.Len(t, mmio.writes, 1)
}

func TestAMDReleaseLocalityRange(t *testing.T) {
	p := &AMD{Config: DefaultConfig(), MMIO: &fakeMMIO{}, CPU: &fakeCPU{}}
	assert.Error(t, p.ReleaseLocality(-1))
	assert.Error(t, p.ReleaseLocality(5))
	assert.NoError(t, p.ReleaseLocality(4))
}

func TestRecorder(t *testing.T) {
	var transferred []Step
	r := &Recorder{Config: DefaultConfig(), OnTransfer: func(target uint32, steps []Step) {
		transferred = steps
		panic(skinitCalled(target))
	}}

	require.PanicsWithValue(t, skinitCalled(0x200000), func() {
		_ = slaunch.NewSequencer(r).Launch(lz.LaunchTarget(0x200000))
	})
	require.Len(t, transferred, len(expectedSteps)+2)
	assert.Equal(t, expectedSteps, transferred[:len(expectedSteps)])
	assert.Equal(t, Step{Op: "settle", Value: slaunch.SettleCycles}, transferred[len(expectedSteps)])
	assert.Equal(t, Step{Op: "skinit", Addr: 0x200000}, transferred[len(expectedSteps)+1])
}

func TestRecorderReleaseLocalityRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TPMLocalities = 3
	r := &Recorder{Config: cfg}
	assert.Error(t, r.ReleaseLocality(-1))
	assert.Error(t, r.ReleaseLocality(3))
	assert.NoError(t, r.ReleaseLocality(2))
	assert.Equal(t, []Step{{Op: "write8", Addr: 0xFED42000, Value: 0x20}}, r.Steps)

	seq := slaunch.NewSequencer(r)
	err := seq.Launch(lz.LaunchTarget(0x200000))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hw.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tpm_localities": 3}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	want := DefaultConfig()
	want.TPMLocalities = 3
	assert.Equal(t, want, cfg)

	require.NoError(t, os.WriteFile(path, []byte(`{"tpm_localities": 0}`), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
