// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lz.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format": "fixed"}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{SLBSize: SLBSize, Format: FormatFixed}, cfg)

	require.NoError(t, os.WriteFile(path, []byte(`{"slb_size": 131072}`), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"format": "xml"}`), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseProtocol(t *testing.T) {
	for in, want := range map[string]Protocol{
		"linux":      ProtocolLinux,
		" Linux ":    ProtocolLinux,
		"multiboot2": ProtocolMultiboot2,
		"mb2":        ProtocolMultiboot2,
	} {
		got, err := ParseProtocol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseProtocol("multiboot")
	assert.Error(t, err)
	assert.Equal(t, "unknown(0xff)", Protocol(0xff).String())
}
