// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// lzctl probes landing zone images, builds AMD secure loader blocks from them
// and performs the SKINIT dynamic launch.
//
// See "AMD64 Architecture Programmer's Manual Volume 2", section 15.27
// "Secure Startup with SKINIT".
//
// Synopsis:
//     lzctl probe -f LZ_IMAGE [options]
//     lzctl build -f LZ_IMAGE -t TARGET --params ADDR (-o SLB_FILE | --devmem) [options]
//     lzctl show -f SLB_FILE [options]
//     lzctl launch -f LZ_IMAGE -t TARGET --params ADDR (--dry-run | --confirm) [options]
//     lzctl eventlog [-f LOG_FILE] [options]
//
// An example:
//     lzctl probe -f lz_header.bin.xz
//     lzctl build -f lz_header.bin.xz --assume-amd -t 0x100000 --params 0x90000 --acpi-dump acpi.bin -o slb.bin
//     lzctl show -f slb.bin --format=json | jq -r '.PCR17.sha256'
//     lzctl launch -f lz_header.bin -t 0x100000 -p multiboot2 --params 0x8000 --kernel-entry 0x1000000 --kernel-size 0x800000 --dry-run
//
// Description:
//     probe:    Checks the platform and the image, prints its header and measurements
//     build:    Builds a secure loader block into a file or into physical memory
//     show:     Prints and verifies the bootloader data of a secure loader block
//     launch:   Builds a secure loader block in physical memory and launches it
//     eventlog: Prints the DRTM TPM event log
package main

import (
	"log"

	"github.com/jessevdk/go-flags"

	"github.com/linuxboot/landingzone/cmds/lzctl/commands"
	"github.com/linuxboot/landingzone/cmds/lzctl/commands/build"
	"github.com/linuxboot/landingzone/cmds/lzctl/commands/eventlog"
	"github.com/linuxboot/landingzone/cmds/lzctl/commands/launch"
	"github.com/linuxboot/landingzone/cmds/lzctl/commands/probe"
	"github.com/linuxboot/landingzone/cmds/lzctl/commands/show"
)

var (
	knownCommands = map[string]commands.Command{
		"probe":    &probe.Command{},
		"build":    &build.Command{},
		"show":     &show.Command{},
		"launch":   &launch.Command{},
		"eventlog": &eventlog.Command{},
	}
)

func main() {
	flagsParser := flags.NewParser(nil, flags.Default)
	for commandName, command := range knownCommands {
		_, err := flagsParser.AddCommand(commandName, command.ShortDescription(), command.LongDescription(), command)
		if err != nil {
			panic(err)
		}
	}

	// parse arguments and execute the appropriate command
	if _, err := flagsParser.Parse(); err != nil {
		log.Fatal(err)
	}
}
