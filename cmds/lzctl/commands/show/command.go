// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package show

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/canonical/go-tpm2"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linuxboot/landingzone/cmds/lzctl/commands"
	"github.com/linuxboot/landingzone/pkg/lz"
	"github.com/linuxboot/landingzone/pkg/slaunch"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	SLBPath    string  `short:"f" long:"slb" description:"path to a secure loader block written by 'build'" required:"true"`
	Format     *string `long:"format" description:"output format [text, json]"`
	DataFormat string  `long:"data-format" description:"bootloader data format" choice:"tags" choice:"fixed" default:"tags"`
}

type Format int

const (
	FormatUndefined = Format(iota)
	FormatText
	FormatJSON
)

func ParseFormat(s string) Format {
	switch strings.Trim(strings.ToLower(s), " ") {
	case "text":
		return FormatText
	case "json":
		return FormatJSON
	}
	return FormatUndefined
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "prints the bootloader data of a secure loader block"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "The measurements are verified against the block, and the PCR17 values expected\n" +
		"after SKINIT are computed."
}

type report struct {
	Header   *lz.SLHeader
	Tags     []lz.Tag          `json:",omitempty"`
	Fixed    *lz.FixedBootData `json:",omitempty"`
	PCR17    map[string]string
	Verified bool
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}

	format := FormatText
	if cmd.Format != nil {
		format = ParseFormat(*cmd.Format)
		if format == FormatUndefined {
			return commands.ErrArgs{Err: fmt.Errorf("unknown format '%s'", *cmd.Format)}
		}
	}
	dataFormat, err := lz.ParseFormat(cmd.DataFormat)
	if err != nil {
		return commands.ErrArgs{Err: err}
	}

	slb, err := os.ReadFile(cmd.SLBPath)
	if err != nil {
		return fmt.Errorf("unable to read the secure loader block '%s': %w", cmd.SLBPath, err)
	}

	r, verifyErr := parse(slb, dataFormat)
	if r.Header == nil || int(r.Header.BootloaderDataOffset) > len(slb) {
		return verifyErr
	}
	r.Verified = verifyErr == nil

	r.PCR17 = map[string]string{}
	for _, alg := range lz.MeasuredAlgorithms {
		pcr, err := slaunch.ExpectedPCR17(alg, slb[:r.Header.BootloaderDataOffset])
		if err != nil {
			return err
		}
		r.PCR17[algName(alg)] = fmt.Sprintf("%x", pcr)
	}

	switch format {
	case FormatText:
		printText(r, len(slb))
	case FormatJSON:
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s\n", b)
	}

	if verifyErr != nil {
		return fmt.Errorf("secure loader block is not valid: %w", verifyErr)
	}
	return nil
}

func parse(slb []byte, format lz.Format) (*report, error) {
	if format == lz.FormatTags {
		hdr, block, err := lz.ParseBlock(slb)
		r := &report{Header: hdr}
		if block != nil {
			r.Tags = block.Tags
		}
		return r, err
	}

	hdr, err := lz.ReadHeader(slb)
	if err != nil {
		return &report{}, err
	}
	r := &report{Header: hdr}
	if int(hdr.BootloaderDataOffset) >= len(slb) {
		return r, fmt.Errorf("bootloader data offset %#x outside of block", hdr.BootloaderDataOffset)
	}
	if r.Fixed, err = lz.ParseFixedBootData(slb[hdr.BootloaderDataOffset:]); err != nil {
		return r, err
	}
	measured := slb[:hdr.BootloaderDataOffset]
	for _, d := range []struct {
		alg  tpm2.HashAlgorithmId
		want []byte
	}{
		{tpm2.HashAlgorithmSHA256, r.Fixed.SHA256[:]},
		{tpm2.HashAlgorithmSHA1, r.Fixed.SHA1[:]},
	} {
		got, err := lz.ComputeDigest(d.alg, measured)
		if err != nil {
			return r, err
		}
		if string(got) != string(d.want) {
			return r, fmt.Errorf("%s digest mismatch", algName(d.alg))
		}
	}
	return r, nil
}

func algName(alg tpm2.HashAlgorithmId) string {
	switch alg {
	case tpm2.HashAlgorithmSHA1:
		return "sha1"
	case tpm2.HashAlgorithmSHA256:
		return "sha256"
	}
	return fmt.Sprintf("0x%04x", uint16(alg))
}

func printText(r *report, size int) {
	fmt.Printf("Secure loader block (%s)\n", humanize.IBytes(uint64(size)))
	fmt.Print(r.Header.Summary())

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Bootloader Data")
	t.AppendHeader(table.Row{"Offset", "Type", "Length", "Details"})
	offset := uint64(r.Header.BootloaderDataOffset)
	if r.Fixed != nil {
		t.AppendRow(table.Row{
			fmt.Sprintf("0x%04x", offset),
			"Fixed",
			humanize.IBytes(lz.FixedBootDataSize),
			fmt.Sprintf("zero page 0x%x, event log 0x%x+0x%x", r.Fixed.ZeroPage, r.Fixed.EventLogAddress, r.Fixed.EventLogSize),
		})
	}
	for _, tag := range r.Tags {
		hdr := tag.Header()
		t.AppendRow(table.Row{
			fmt.Sprintf("0x%04x", offset),
			hdr.Type.String(),
			humanize.IBytes(uint64(hdr.Len)),
			details(tag),
		})
		offset += uint64(hdr.Len)
	}
	t.Render()

	p := table.NewWriter()
	p.SetOutputMirror(os.Stdout)
	p.SetTitle("Expected PCR17")
	p.AppendHeader(table.Row{"Bank", "Value"})
	for _, alg := range lz.MeasuredAlgorithms {
		p.AppendRow(table.Row{algName(alg), r.PCR17[algName(alg)]})
	}
	p.Render()
}

func details(tag lz.Tag) string {
	switch t := tag.(type) {
	case *lz.SizeTag:
		return fmt.Sprintf("size %d of %s", t.Size, humanize.IBytes(uint64(t.Limit)))
	case *lz.HashTag:
		return fmt.Sprintf("%s %x", algName(t.AlgorithmID), t.Digest)
	case *lz.LinuxBootTag:
		return fmt.Sprintf("zero page 0x%x", t.ZeroPage)
	case *lz.MB2BootTag:
		return fmt.Sprintf("MBI 0x%x, kernel 0x%x+%s", t.MBI, t.KernelEntry, humanize.IBytes(uint64(t.KernelSize)))
	case *lz.EventLogTag:
		return fmt.Sprintf("0x%x+%s", t.Address, humanize.IBytes(uint64(t.Size)))
	case *lz.UnknownTag:
		return fmt.Sprintf("%x", t.Payload)
	}
	return ""
}
