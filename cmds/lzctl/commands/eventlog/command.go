// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventlog

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/u-root/u-root/pkg/memio"

	"github.com/linuxboot/landingzone/cmds/lzctl/commands"
	"github.com/linuxboot/landingzone/pkg/log"
	"github.com/linuxboot/landingzone/pkg/slaunch"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	commands.ACPIOptions

	LogPath string `short:"f" long:"log" description:"path to a dump of the event log area; by default it is read from physical memory"`
	Alg     string `long:"alg" description:"digest algorithm to display" choice:"sha1" choice:"sha256" default:"sha256"`
	PCR17   string `long:"pcr17" description:"hex value of PCR17 read after the launch, checked for an empty measurement"`
	Debug   bool   `short:"d" long:"debug" description:"enable debug prints"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "prints the DRTM TPM event log"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "The event log area is located through the ACPI DRTM table."
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	log.SetDebug(cmd.Debug)

	alg := tpm2.HashAlgorithmSHA256
	if cmd.Alg == "sha1" {
		alg = tpm2.HashAlgorithmSHA1
	}

	if cmd.PCR17 != "" {
		if err := checkPCR17(alg, cmd.PCR17); err != nil {
			return err
		}
	}

	area, err := cmd.readArea()
	if err != nil {
		return err
	}

	evlog, err := tcglog.ReadLog(bytes.NewReader(area), &tcglog.LogOptions{})
	if err != nil {
		return fmt.Errorf("cannot read log: %w", err)
	}
	if !evlog.Algorithms.Contains(alg) {
		return fmt.Errorf("the log does not contain entries for the %v digest algorithm", alg)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("DRTM Event Log")
	t.AppendHeader(table.Row{"PCR", "Digest", "Type", "Details"})
	for _, event := range evlog.Events {
		t.AppendRow(table.Row{event.PCRIndex, fmt.Sprintf("%x", event.Digests[alg]), event.EventType.String(), event.Data.String()})
	}
	t.Render()
	return nil
}

func (cmd *Command) readArea() ([]byte, error) {
	if cmd.LogPath != "" {
		return os.ReadFile(cmd.LogPath)
	}

	locator, err := cmd.Locator()
	if err != nil {
		return nil, err
	}
	if locator == nil {
		return nil, commands.ErrArgs{Err: fmt.Errorf("--no-event-log requires --log")}
	}
	evtlog, ok := locator.Locate()
	if !ok {
		return nil, fmt.Errorf("the platform does not describe a DRTM event log")
	}
	log.Debugf("reading event log area %s", evtlog)

	area := make(memio.ByteSlice, evtlog.Size)
	if err := memio.Read(int64(evtlog.Address), &area); err != nil {
		return nil, fmt.Errorf("unable to read event log area %s: %w", evtlog, err)
	}
	return area, nil
}

func checkPCR17(alg tpm2.HashAlgorithmId, value string) error {
	pcr, err := hex.DecodeString(value)
	if err != nil {
		return commands.ErrArgs{Err: fmt.Errorf("invalid PCR17 value: %w", err)}
	}
	empty, err := slaunch.IsEmptyMeasurement(alg, pcr)
	if err != nil {
		return err
	}
	if empty {
		log.Warnf("PCR17 reflects the measurement of an empty block: SKINIT ran before the application processors settled")
	}
	return nil
}
