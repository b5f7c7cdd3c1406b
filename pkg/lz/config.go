// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Protocol selects how the landing zone hands over to the next kernel.
type Protocol uint8

// Supported boot protocols. The zero value is not a valid protocol.
const (
	ProtocolLinux      Protocol = 1
	ProtocolMultiboot2 Protocol = 2
)

func (p Protocol) String() string {
	switch p {
	case ProtocolLinux:
		return "linux"
	case ProtocolMultiboot2:
		return "multiboot2"
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(p))
}

// ParseProtocol parses the name of a boot protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.Trim(strings.ToLower(s), " ") {
	case "linux":
		return ProtocolLinux, nil
	case "multiboot2", "mb2":
		return ProtocolMultiboot2, nil
	}
	return 0, fmt.Errorf("unknown boot protocol '%s'", s)
}

// Format selects the layout of the bootloader data area.
type Format int

const (
	// FormatTags is the extensible tag based layout.
	FormatTags = Format(iota)
	// FormatFixed is the first generation fixed record layout.
	FormatFixed
)

func (f Format) String() string {
	switch f {
	case FormatTags:
		return "tags"
	case FormatFixed:
		return "fixed"
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}

// ParseFormat parses the name of a bootloader data format.
func ParseFormat(s string) (Format, error) {
	switch strings.Trim(strings.ToLower(s), " ") {
	case "tags", "":
		return FormatTags, nil
	case "fixed":
		return FormatFixed, nil
	}
	return 0, fmt.Errorf("unknown format '%s'", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Config holds the parameters of probing and building.
type Config struct {
	// SLBSize is the size of the secure loader block.
	SLBSize uint64 `json:"slb_size"`
	// Format is the layout of the bootloader data area.
	Format Format `json:"format"`
}

// DefaultConfig returns the configuration matching the AMD secure loader
// block and the tag based format.
func DefaultConfig() Config {
	return Config{
		SLBSize: SLBSize,
		Format:  FormatTags,
	}
}

// Validate checks the configuration for values Build cannot work with.
func (c Config) Validate() error {
	if c.SLBSize == 0 || c.SLBSize > SLBSize {
		return fmt.Errorf("secure loader block size %#x must be in (0, %#x]", c.SLBSize, SLBSize)
	}
	switch c.Format {
	case FormatTags, FormatFixed:
	default:
		return fmt.Errorf("unknown format %d", int(c.Format))
	}
	return nil
}

// LoadConfig reads a JSON configuration file. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read config '%s': %w", path, err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse config '%s': %w", path, err)
	}
	return cfg, cfg.Validate()
}
