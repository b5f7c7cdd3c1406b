// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slaunch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxboot/landingzone/pkg/log"
	"github.com/linuxboot/landingzone/pkg/lz"
	"github.com/linuxboot/landingzone/pkg/lz/lztest"
)

type fakePlatform struct {
	calls       []string
	failQuiesce error
	failRelease map[int]error
	returns     bool
	target      uint32
}

func (p *fakePlatform) QuiesceSecondaryUnits() error {
	p.calls = append(p.calls, "quiesce")
	return p.failQuiesce
}

func (p *fakePlatform) ReleaseLocality(locality int) error {
	p.calls = append(p.calls, fmt.Sprintf("release%d", locality))
	return p.failRelease[locality]
}

func (p *fakePlatform) Settle(cycles uint64) {
	p.calls = append(p.calls, fmt.Sprintf("settle%#x", cycles))
}

func (p *fakePlatform) TransferControl(target uint32) {
	p.calls = append(p.calls, "skinit")
	p.target = target
	if !p.returns {
		panic(errTransferred)
	}
}

var errTransferred = errors.New("transferred")

type fatalLogger struct{}

func (fatalLogger) Debugf(string, ...interface{}) {}
func (fatalLogger) Infof(string, ...interface{})  {}
func (fatalLogger) Warnf(string, ...interface{})  {}
func (fatalLogger) Errorf(string, ...interface{}) {}
func (fatalLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func withFatalLogger(t *testing.T) {
	old := log.DefaultLogger
	log.DefaultLogger = fatalLogger{}
	t.Cleanup(func() { log.DefaultLogger = old })
}

func TestLaunchOrder(t *testing.T) {
	withFatalLogger(t)
	p := &fakePlatform{}
	s := NewSequencer(p)

	require.PanicsWithValue(t, errTransferred, func() {
		_ = s.Launch(lz.LaunchTarget(0x100000))
	})
	assert.Equal(t, []string{
		"quiesce",
		"release0", "release1", "release2", "release3", "release4",
		"settle0x10000",
		"skinit",
	}, p.calls)
	assert.Equal(t, uint32(0x100000), p.target)
}

func TestLaunchNotReady(t *testing.T) {
	withFatalLogger(t)
	p := &fakePlatform{}
	err := NewSequencer(p).Launch(0)
	require.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, p.calls)
}

func TestLaunchBadTarget(t *testing.T) {
	withFatalLogger(t)
	p := &fakePlatform{}
	err := NewSequencer(p).Launch(lz.LaunchTarget(0x1_0000_0000))
	var rangeErr lz.ErrAddressOutOfRange
	require.ErrorAs(t, err, &rangeErr)
	assert.Empty(t, p.calls)
}

func TestLaunchStepFailure(t *testing.T) {
	withFatalLogger(t)
	boom := errors.New("boom")

	p := &fakePlatform{failQuiesce: boom}
	err := NewSequencer(p).Launch(lz.LaunchTarget(0x100000))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"quiesce"}, p.calls)

	p = &fakePlatform{failRelease: map[int]error{2: boom}}
	err = NewSequencer(p).Launch(lz.LaunchTarget(0x100000))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"quiesce", "release0", "release1", "release2"}, p.calls)
}

func TestLaunchShortSettleRaised(t *testing.T) {
	withFatalLogger(t)
	p := &fakePlatform{}
	s := &Sequencer{Platform: p, SettleCycles: 1000, Localities: Localities}
	require.Panics(t, func() { _ = s.Launch(lz.LaunchTarget(0x100000)) })
	assert.Contains(t, p.calls, "settle0x10000")
}

func TestLaunchAlwaysReleasesLocalities(t *testing.T) {
	withFatalLogger(t)
	for _, localities := range []int{0, -1} {
		p := &fakePlatform{}
		s := &Sequencer{Platform: p, SettleCycles: SettleCycles, Localities: localities}
		require.PanicsWithValue(t, errTransferred, func() {
			_ = s.Launch(lz.LaunchTarget(0x100000))
		})
		assert.Equal(t, []string{
			"quiesce",
			"release0", "release1", "release2", "release3", "release4",
			"settle0x10000",
			"skinit",
		}, p.calls, "localities %d", localities)
	}
}

func TestLaunchReturnIsFatal(t *testing.T) {
	withFatalLogger(t)
	p := &fakePlatform{returns: true}
	require.PanicsWithValue(t, "LZ: SKINIT returned from 0x100000", func() {
		_ = NewSequencer(p).Launch(lz.LaunchTarget(0x100000))
	})
	assert.Equal(t, "skinit", p.calls[len(p.calls)-1])
}

func TestUnsupportedProtocolIsNotLaunched(t *testing.T) {
	withFatalLogger(t)
	img, err := lz.Probe(lztest.AMD(true), lztest.Image(4096, 64), lz.DefaultConfig())
	require.NoError(t, err)

	target, err := lz.NewBuilder(nil).Build(img, lz.BootArgs{Protocol: 0xff, Params: 0x1000}, lz.NewMemorySegment(0x100000))
	require.ErrorAs(t, err, &lz.ErrUnsupportedProtocol{})

	p := &fakePlatform{}
	require.ErrorIs(t, NewSequencer(p).Launch(target), ErrNotReady)
	assert.Empty(t, p.calls)
}

func TestBuiltImageIsLaunched(t *testing.T) {
	withFatalLogger(t)
	img, err := lz.Probe(lztest.AMD(true), lztest.Image(4096, 64), lz.DefaultConfig())
	require.NoError(t, err)

	target, err := lz.NewBuilder(nil).Build(img, lz.BootArgs{Protocol: lz.ProtocolLinux, Params: 0x1000}, lz.NewMemorySegment(0x200000))
	require.NoError(t, err)

	p := &fakePlatform{}
	require.PanicsWithValue(t, errTransferred, func() { _ = NewSequencer(p).Launch(target) })
	assert.Equal(t, uint32(0x200000), p.target)
}
