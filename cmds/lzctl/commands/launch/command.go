// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package launch

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linuxboot/landingzone/cmds/lzctl/commands"
	"github.com/linuxboot/landingzone/pkg/hw"
	"github.com/linuxboot/landingzone/pkg/lz"
	"github.com/linuxboot/landingzone/pkg/slaunch"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	commands.ImageOptions
	commands.BootOptions
	commands.ACPIOptions

	Target       commands.Address `short:"t" long:"target" description:"physical address of the secure loader block" required:"true"`
	HWConfig     string           `long:"hw-config" description:"path to a JSON platform configuration"`
	SettleCycles uint64           `long:"settle-cycles" description:"TSC cycles to wait before SKINIT" default:"65536"`
	DryRun       bool             `short:"n" long:"dry-run" description:"build in memory and print the hardware accesses instead of performing them"`
	Confirm      bool             `long:"confirm" description:"required to actually launch: the system does not come back"`
	Direct       bool             `long:"direct" description:"access physical memory by address instead of /dev/mem, where it is identity mapped"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "builds a secure loader block and performs the SKINIT dynamic launch"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "All application processors are put in the wait-for-SIPI state, the TPM localities\n" +
		"are released and SKINIT is executed. SKINIT requires ring 0: this is expected\n" +
		"to run on bare metal or from a kernel context. On success it does not return."
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	if !cmd.DryRun && !cmd.Confirm {
		return commands.ErrArgs{Err: fmt.Errorf("either --dry-run or --confirm is required")}
	}

	hwCfg := hw.DefaultConfig()
	if cmd.HWConfig != "" {
		var err error
		if hwCfg, err = hw.LoadConfig(cmd.HWConfig); err != nil {
			return err
		}
	}

	cfg, err := cmd.BuildConfig()
	if err != nil {
		return err
	}
	img, err := cmd.LoadImage(cfg)
	if err != nil {
		return err
	}
	bootArgs, err := cmd.BootArgs()
	if err != nil {
		return err
	}
	locator, err := cmd.Locator()
	if err != nil {
		return err
	}

	var (
		seg      lz.Segment
		platform slaunch.Platform
	)
	if cmd.DryRun {
		seg = lz.NewMemorySegment(uint64(cmd.Target))
		platform = &hw.Recorder{Config: hwCfg, OnTransfer: printAndExit}
	} else {
		var mmio hw.MMIO = hw.DevMem{}
		seg = &lz.DevMemSegment{Addr: uint64(cmd.Target), Size: cfg.SLBSize}
		if cmd.Direct {
			mmio = hw.Direct{}
			seg = &hw.DirectSegment{Addr: uint64(cmd.Target), Size: cfg.SLBSize}
		}
		platform = &hw.AMD{Config: hwCfg, MMIO: mmio, CPU: hw.HostCPU{}}
	}

	builder := &lz.Builder{Config: cfg, Locator: locator}
	target, err := builder.Build(img, bootArgs, seg)
	if err != nil {
		return fmt.Errorf("unable to build the secure loader block: %w", err)
	}

	seq := slaunch.NewSequencer(platform)
	seq.SettleCycles = cmd.SettleCycles
	seq.Localities = hwCfg.TPMLocalities
	return seq.Launch(target)
}

func printAndExit(target uint32, steps []hw.Step) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Launch of 0x%x", target)
	t.AppendHeader(table.Row{"#", "Access", "Address", "Value"})
	for idx, step := range steps {
		addr := ""
		if step.Op != "settle" {
			addr = fmt.Sprintf("0x%08x", step.Addr)
		}
		t.AppendRow(table.Row{idx, step.Op, addr, fmt.Sprintf("0x%x", step.Value)})
	}
	t.Render()
	os.Exit(0)
}
