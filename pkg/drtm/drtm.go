// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package drtm locates the DRTM TPM event log through the ACPI DRTM table.
//
// See "TCG D-RTM Architecture", the ACPI DRTM table definition:
// * https://trustedcomputinggroup.org/wp-content/uploads/TCG_D-RTM_Architecture_v1-0_Published_06172013.pdf
package drtm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/u-root/u-root/pkg/acpi"

	"github.com/linuxboot/landingzone/pkg/log"
)

const (
	// Signature is the ACPI signature of the DRTM table.
	Signature = "DRTM"

	// TableSize is the size of the fixed part of the DRTM table body
	// (without the standard ACPI header).
	TableSize = 60

	// DefaultTablesDir is where Linux exposes the raw ACPI tables.
	DefaultTablesDir = "/sys/firmware/acpi/tables"

	headerSize     = 36
	checksumOffset = 9
)

// ErrTableNotFound is returned by a TableSource lacking the table.
var ErrTableNotFound = errors.New("ACPI table not found")

// Table is the fixed part of the DRTM table body. The variable length
// fields following DRTFlags are not used.
type Table struct {
	DLEntryBase           uint64
	DLEntryLength         uint64
	DLEntry32             uint32
	DLEntry64             uint64
	DLMEExit              uint64
	LogAreaStart          uint64
	LogAreaLength         uint32
	ArchitectureDependent uint64
	DRTFlags              uint32
}

// EventLog is the location of the DRTM TPM event log.
type EventLog struct {
	Address uint64
	Size    uint32
}

func (e EventLog) String() string {
	return fmt.Sprintf("0x%x+0x%x", e.Address, e.Size)
}

// Parse decodes the body of a DRTM table.
func Parse(body []byte) (*Table, error) {
	if len(body) < TableSize {
		return nil, fmt.Errorf("DRTM table body has %d bytes, at least %d expected", len(body), TableSize)
	}
	var t Table
	if err := binary.Read(bytes.NewReader(body[:TableSize]), binary.LittleEndian, &t); err != nil {
		return nil, fmt.Errorf("could not parse DRTM table: %w", err)
	}
	return &t, nil
}

// EventLog returns the event log area described by the table.
func (t *Table) EventLog() EventLog {
	return EventLog{Address: t.LogAreaStart, Size: t.LogAreaLength}
}

// Raw returns the table with a standard ACPI header, as firmware
// publishes it.
func (t *Table) Raw() []byte {
	var buf bytes.Buffer
	hdr := struct {
		Signature       [4]byte
		Length          uint32
		Revision        uint8
		Checksum        uint8
		OEMID           [6]byte
		OEMTableID      [8]byte
		OEMRevision     uint32
		CreatorID       uint32
		CreatorRevision uint32
	}{
		Length:     headerSize + TableSize,
		Revision:   1,
		OEMID:      [6]byte{'L', 'N', 'X', 'B', 'T', ' '},
		OEMTableID: [8]byte{'L', 'A', 'N', 'D', 'Z', 'O', 'N', 'E'},
	}
	copy(hdr.Signature[:], Signature)
	for _, v := range []interface{}{&hdr, t} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			// both are fixed size structures
			panic(fmt.Sprintf("unable to encode %T: %v", v, err))
		}
	}

	b := buf.Bytes()
	var sum uint8
	for _, v := range b {
		sum += v
	}
	b[checksumOffset] = -sum
	return b
}

// TableSource gives access to the platform ACPI tables.
type TableSource interface {
	// Table returns the table with the given signature, or ErrTableNotFound.
	Table(sig string) (acpi.Table, error)
}

// Tables is a TableSource over already loaded tables.
type Tables []acpi.Table

// ParseTables loads the tables found in a dump of one or more raw tables.
func ParseTables(b []byte) (Tables, error) {
	tables, err := acpi.NewRaw(b)
	if err != nil {
		return nil, err
	}
	return Tables(tables), nil
}

// Table implements TableSource.
func (tables Tables) Table(sig string) (acpi.Table, error) {
	for _, t := range tables {
		if t.Sig() == sig {
			return t, nil
		}
	}
	return nil, ErrTableNotFound
}

// SysfsTables is a TableSource reading one file per table from a directory
// laid out like /sys/firmware/acpi/tables.
type SysfsTables struct {
	Dir string
}

// Table implements TableSource.
func (s SysfsTables) Table(sig string) (acpi.Table, error) {
	dir := s.Dir
	if dir == "" {
		dir = DefaultTablesDir
	}
	b, err := os.ReadFile(filepath.Join(dir, sig))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	tables, err := ParseTables(b)
	if err != nil {
		return nil, fmt.Errorf("could not parse table %s: %w", sig, err)
	}
	return tables.Table(sig)
}

// Locator finds the DRTM event log.
type Locator struct {
	Tables TableSource
}

// Locate returns the DRTM event log, if the platform describes one. The
// absence of the table is normal on platforms without DRTM support, and any
// failure to read it is reported as absence.
func (l Locator) Locate() (*EventLog, bool) {
	if l.Tables == nil {
		return nil, false
	}
	t, err := l.Tables.Table(Signature)
	if err != nil {
		if !errors.Is(err, ErrTableNotFound) {
			log.Warnf("could not read ACPI %s table: %v", Signature, err)
		}
		return nil, false
	}
	drtm, err := Parse(t.TableData())
	if err != nil {
		log.Warnf("ignoring ACPI %s table: %v", Signature, err)
		return nil, false
	}
	evtlog := drtm.EventLog()
	log.Debugf("ACPI %s table found, event log at %s", Signature, evtlog)
	return &evtlog, true
}
