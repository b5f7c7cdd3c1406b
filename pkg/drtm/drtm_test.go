// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drtm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/u-root/u-root/pkg/acpi"
)

var testTable = Table{
	DLEntryBase:   0x1000,
	DLEntryLength: 0x2000,
	LogAreaStart:  0x7f000000,
	LogAreaLength: 0x10000,
	DRTFlags:      1,
}

func TestRaw(t *testing.T) {
	raw := testTable.Raw()
	require.Len(t, raw, headerSize+TableSize)

	var sum uint8
	for _, b := range raw {
		sum += b
	}
	assert.Zero(t, sum)

	tables, err := ParseTables(raw)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, Signature, tables[0].Sig())

	parsed, err := Parse(tables[0].TableData())
	require.NoError(t, err)
	assert.Equal(t, testTable, *parsed)
}

func TestParseShort(t *testing.T) {
	_, err := Parse(make([]byte, TableSize-1))
	assert.Error(t, err)
}

func TestLocate(t *testing.T) {
	tables, err := ParseTables(testTable.Raw())
	require.NoError(t, err)

	evtlog, ok := Locator{Tables: tables}.Locate()
	require.True(t, ok)
	assert.Equal(t, EventLog{Address: 0x7f000000, Size: 0x10000}, *evtlog)
	assert.Equal(t, "0x7f000000+0x10000", evtlog.String())
}

type failingSource struct{}

func (failingSource) Table(sig string) (acpi.Table, error) {
	return nil, errors.New("permission denied")
}

func TestLocateAbsent(t *testing.T) {
	_, ok := Locator{}.Locate()
	assert.False(t, ok)

	_, ok = Locator{Tables: Tables{}}.Locate()
	assert.False(t, ok)

	_, ok = Locator{Tables: failingSource{}}.Locate()
	assert.False(t, ok)

	_, ok = Locator{Tables: SysfsTables{Dir: t.TempDir()}}.Locate()
	assert.False(t, ok)
}

func TestSysfsTables(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Signature), testTable.Raw(), 0o644))

	evtlog, ok := Locator{Tables: SysfsTables{Dir: dir}}.Locate()
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f000000), evtlog.Address)

	_, err := SysfsTables{Dir: dir}.Table("SSDT")
	assert.ErrorIs(t, err, ErrTableNotFound)
}
