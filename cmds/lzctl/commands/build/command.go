// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"os"

	"github.com/linuxboot/landingzone/cmds/lzctl/commands"
	"github.com/linuxboot/landingzone/pkg/lz"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	commands.ImageOptions
	commands.BootOptions
	commands.ACPIOptions

	Target     commands.Address `short:"t" long:"target" description:"physical address the secure loader block is launched from" required:"true"`
	OutputPath string           `short:"o" long:"output" description:"path to write the secure loader block to"`
	DevMem     bool             `long:"devmem" description:"build the block in physical memory at the target address through /dev/mem"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "builds a secure loader block from a landing zone image"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "The image is copied into a 64KiB secure loader block and its bootloader data area\n" +
		"is filled with the measurements, the boot protocol arguments and the DRTM event log location."
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	if (cmd.OutputPath == "") == !cmd.DevMem {
		return commands.ErrArgs{Err: fmt.Errorf("exactly one of --output and --devmem is required")}
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

	var seg lz.Segment
	mem := lz.NewMemorySegment(uint64(cmd.Target))
	if cmd.DevMem {
		seg = &lz.DevMemSegment{Addr: uint64(cmd.Target), Size: cfg.SLBSize}
	} else {
		seg = mem
	}

	builder := &lz.Builder{Config: cfg, Locator: locator}
	target, err := builder.Build(img, bootArgs, seg)
	if err != nil {
		return fmt.Errorf("unable to build the secure loader block: %w", err)
	}

	if cmd.OutputPath != "" {
		if err := os.WriteFile(cmd.OutputPath, mem.Bytes(), 0644); err != nil {
			return fmt.Errorf("unable to write '%s': %w", cmd.OutputPath, err)
		}
	}
	fmt.Printf("secure loader block ready at %s\n", target)
	return nil
}
