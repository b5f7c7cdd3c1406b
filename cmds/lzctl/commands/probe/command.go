// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"fmt"

	"github.com/linuxboot/landingzone/cmds/lzctl/commands"
	"github.com/linuxboot/landingzone/pkg/lz"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	commands.ImageOptions
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "checks whether an image is a landing zone launchable on this platform"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "The processor must be an AMD processor implementing SKINIT, and the image must fit\n" +
		"into the secure loader block and carry the supported landing zone UUID."
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}

	cfg, err := cmd.BuildConfig()
	if err != nil {
		return err
	}
	img, err := cmd.LoadImage(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d bytes, %d measured\n", img.Name, len(img.Data), img.MeasuredSize())
	fmt.Print(img.Header.Summary())
	fmt.Print(img.Info.Summary())
	fmt.Printf("Key Hash                   : %x\n", img.KeyHash)

	digests, err := lz.Measure(img.Data[:img.MeasuredSize()])
	if err != nil {
		return err
	}
	for _, d := range digests {
		fmt.Printf("Measurement %-14s : %x\n", fmt.Sprintf("0x%04x", uint16(d.Algorithm)), d.Value)
	}
	return nil
}
