// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/linuxboot/landingzone/pkg/compression"
	"github.com/linuxboot/landingzone/pkg/drtm"
	"github.com/linuxboot/landingzone/pkg/hw"
	"github.com/linuxboot/landingzone/pkg/log"
	"github.com/linuxboot/landingzone/pkg/lz"
)

// Address is a physical address flag accepting any base prefix.
type Address uint64

// UnmarshalFlag implements flags.Unmarshaler.
func (a *Address) UnmarshalFlag(value string) error {
	v, err := strconv.ParseUint(strings.TrimSpace(value), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address '%s': %w", value, err)
	}
	*a = Address(v)
	return nil
}

// Protocol is a boot protocol flag.
type Protocol lz.Protocol

// UnmarshalFlag implements flags.Unmarshaler. Besides the protocol names, a
// raw selector is accepted.
func (p *Protocol) UnmarshalFlag(value string) error {
	if proto, err := lz.ParseProtocol(value); err == nil {
		*p = Protocol(proto)
		return nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(value), 0, 8)
	if err != nil {
		return fmt.Errorf("unknown boot protocol '%s'", value)
	}
	*p = Protocol(v)
	return nil
}

// ImageOptions select and check a landing zone image.
type ImageOptions struct {
	ImagePath string `short:"f" long:"image" description:"path to the landing zone image, optionally compressed" required:"true"`
	Config    string `short:"c" long:"config" description:"path to a JSON build configuration"`
	Format    string `long:"format" description:"bootloader data format" choice:"tags" choice:"fixed"`
	AssumeAMD bool   `long:"assume-amd" description:"skip the processor check, to build on another machine"`
	Debug     bool   `short:"d" long:"debug" description:"enable debug prints"`
}

// BuildConfig returns the build configuration selected by the options.
func (opts *ImageOptions) BuildConfig() (lz.Config, error) {
	log.SetDebug(opts.Debug)

	cfg := lz.DefaultConfig()
	if opts.Config != "" {
		var err error
		if cfg, err = lz.LoadConfig(opts.Config); err != nil {
			return cfg, err
		}
	}
	if opts.Format != "" {
		format, err := lz.ParseFormat(opts.Format)
		if err != nil {
			return cfg, ErrArgs{Err: err}
		}
		cfg.Format = format
	}
	return cfg, cfg.Validate()
}

// CPU returns the processor the image is probed against.
func (opts *ImageOptions) CPU() lz.CPU {
	if opts.AssumeAMD {
		return hw.AssumedAMD{}
	}
	return hw.HostCPU{}
}

// LoadImage reads, decompresses and probes the image.
func (opts *ImageOptions) LoadImage(cfg lz.Config) (*lz.Image, error) {
	data, err := os.ReadFile(opts.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("unable to read the image file '%s': %w", opts.ImagePath, err)
	}
	data, compressor, err := compression.Decompress(data)
	if err != nil {
		return nil, err
	}
	if compressor != "" {
		log.Debugf("image '%s' is %s compressed, %d bytes decoded", opts.ImagePath, compressor, len(data))
	}
	img, err := lz.Probe(opts.CPU(), data, cfg)
	if err != nil {
		return nil, fmt.Errorf("image '%s' rejected: %w", opts.ImagePath, err)
	}
	return img, nil
}

// BootOptions are the boot protocol arguments handed to the landing zone.
type BootOptions struct {
	Protocol    Protocol `short:"p" long:"protocol" description:"boot protocol of the next kernel [linux, multiboot2]" default:"linux"`
	Params      Address  `long:"params" description:"physical address of the Linux zero page or Multiboot2 information" required:"true"`
	KernelEntry Address  `long:"kernel-entry" description:"Multiboot2 kernel entry point"`
	KernelSize  Address  `long:"kernel-size" description:"Multiboot2 kernel size"`
}

// BootArgs converts the options.
func (opts *BootOptions) BootArgs() (lz.BootArgs, error) {
	if opts.KernelEntry > 0xffffffff || opts.KernelSize > 0xffffffff {
		return lz.BootArgs{}, ErrArgs{Err: fmt.Errorf("kernel entry and size must fit in 32 bits")}
	}
	return lz.BootArgs{
		Protocol:    lz.Protocol(opts.Protocol),
		Params:      uint64(opts.Params),
		KernelEntry: uint32(opts.KernelEntry),
		KernelSize:  uint32(opts.KernelSize),
	}, nil
}

// ACPIOptions select where the DRTM table is looked up.
type ACPIOptions struct {
	ACPIDir  string `long:"acpi-dir" description:"directory with one file per ACPI table" default:"/sys/firmware/acpi/tables"`
	ACPIDump string `long:"acpi-dump" description:"file with concatenated raw ACPI tables, overrides --acpi-dir"`
	NoLog    bool   `long:"no-event-log" description:"do not describe the DRTM event log"`
}

// Locator returns the event log locator selected by the options.
func (opts *ACPIOptions) Locator() (lz.EventLogLocator, error) {
	if opts.NoLog {
		return nil, nil
	}
	if opts.ACPIDump == "" {
		return drtm.Locator{Tables: drtm.SysfsTables{Dir: opts.ACPIDir}}, nil
	}
	b, err := os.ReadFile(opts.ACPIDump)
	if err != nil {
		return nil, fmt.Errorf("unable to read ACPI tables '%s': %w", opts.ACPIDump, err)
	}
	tables, err := drtm.ParseTables(b)
	if err != nil {
		return nil, fmt.Errorf("unable to parse ACPI tables '%s': %w", opts.ACPIDump, err)
	}
	return drtm.Locator{Tables: tables}, nil
}
