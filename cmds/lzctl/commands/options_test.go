// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxboot/landingzone/pkg/compression"
	"github.com/linuxboot/landingzone/pkg/drtm"
	"github.com/linuxboot/landingzone/pkg/lz"
	"github.com/linuxboot/landingzone/pkg/lz/lztest"
)

func TestAddress(t *testing.T) {
	var a Address
	require.NoError(t, a.UnmarshalFlag("0x100000"))
	assert.Equal(t, Address(0x100000), a)
	require.NoError(t, a.UnmarshalFlag("4096"))
	assert.Equal(t, Address(4096), a)
	assert.Error(t, a.UnmarshalFlag("zero page"))
}

func TestProtocol(t *testing.T) {
	var p Protocol
	require.NoError(t, p.UnmarshalFlag("mb2"))
	assert.Equal(t, Protocol(lz.ProtocolMultiboot2), p)
	require.NoError(t, p.UnmarshalFlag("0xff"))
	assert.Equal(t, Protocol(0xff), p)
	assert.Error(t, p.UnmarshalFlag("0x100"))
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	data := lztest.Image(4096, 64)
	encoded, err := (&compression.XZ{}).Encode(data)
	require.NoError(t, err)
	path := filepath.Join(dir, "lz.bin.xz")
	require.NoError(t, os.WriteFile(path, encoded, 0o644))

	opts := &ImageOptions{ImagePath: path, AssumeAMD: true, Format: "fixed"}
	cfg, err := opts.BuildConfig()
	require.NoError(t, err)
	assert.Equal(t, lz.FormatFixed, cfg.Format)

	img, err := opts.LoadImage(cfg)
	require.NoError(t, err)
	assert.Equal(t, data, img.Data)
}

func TestBootArgs(t *testing.T) {
	opts := &BootOptions{Protocol: Protocol(lz.ProtocolLinux), Params: 0x90000}
	args, err := opts.BootArgs()
	require.NoError(t, err)
	assert.Equal(t, lz.BootArgs{Protocol: lz.ProtocolLinux, Params: 0x90000}, args)

	opts.KernelSize = 0x1_0000_0000
	_, err = opts.BootArgs()
	assert.Error(t, err)
}

func TestLocatorFromDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acpi.bin")
	table := drtm.Table{LogAreaStart: 0x7f000000, LogAreaLength: 0x8000}
	require.NoError(t, os.WriteFile(path, table.Raw(), 0o644))

	locator, err := (&ACPIOptions{ACPIDump: path}).Locator()
	require.NoError(t, err)
	evtlog, ok := locator.Locate()
	require.True(t, ok)
	assert.Equal(t, drtm.EventLog{Address: 0x7f000000, Size: 0x8000}, *evtlog)

	locator, err = (&ACPIOptions{ACPIDump: path, NoLog: true}).Locator()
	require.NoError(t, err)
	assert.Nil(t, locator)
}
