// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// lzinfo prints the header, the info record and the measurements of a
// landing zone image without any platform check.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/canonical/go-tpm2"
	flag "github.com/spf13/pflag"

	"github.com/linuxboot/landingzone/pkg/compression"
	lzlog "github.com/linuxboot/landingzone/pkg/log"
	"github.com/linuxboot/landingzone/pkg/lz"
)

var (
	debug   = flag.BoolP("debug", "d", false, "enable debug prints")
	jsonOut = flag.BoolP("json", "j", false, "print as JSON")
	forced  = flag.StringP("compression", "c", "", "decode the image with this compressor [xz, zstd, lz4, zlib] instead of detecting it")
	xzPath  = flag.String("xz", "", "system xz command to decode xz images with")
)

type imageInfo struct {
	Size         int
	Compression  string `json:",omitempty"`
	Header       *lz.SLHeader
	Info         *lz.Info
	KeyHash      string
	Measurements map[string]string
}

func main() {
	flag.Parse()
	lzlog.SetDebug(*debug)

	a := flag.Args()
	if len(a) != 1 {
		log.Fatal("Usage: lzinfo [-d] [-j] [-c compression] <landing-zone-image>")
	}

	var decoder compression.Compressor
	if *forced != "" {
		var err error
		if decoder, err = compression.CompressorFromName(*forced, *xzPath); err != nil {
			log.Fatal(err)
		}
	}

	data, err := os.ReadFile(a[0])
	if err != nil {
		log.Fatal(err)
	}
	info, err := inspect(data, decoder)
	if err != nil {
		log.Fatal(err)
	}

	if *jsonOut {
		j, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s\n", j)
		return
	}
	printText(os.Stdout, info)
}

// inspect decodes data with decoder, or with the detected compressor when
// decoder is nil.
func inspect(data []byte, decoder compression.Compressor) (*imageInfo, error) {
	var (
		compressor string
		err        error
	)
	if decoder != nil {
		compressor = decoder.Name()
		if data, err = decoder.Decode(data); err != nil {
			return nil, fmt.Errorf("unable to decode %s stream: %w", compressor, err)
		}
	} else if data, compressor, err = compression.Decompress(data); err != nil {
		return nil, err
	}
	hdr, err := lz.ReadHeader(data)
	if err != nil {
		return nil, err
	}
	info, err := lz.ReadInfo(data, hdr)
	if err != nil {
		return nil, err
	}
	if info.UUID != lz.SchemaUUID {
		lzlog.Warnf("UUID %s is not the landing zone UUID %s", info.UUID, lz.SchemaUUID)
	}

	result := &imageInfo{
		Size:         len(data),
		Compression:  compressor,
		Header:       hdr,
		Info:         info,
		Measurements: map[string]string{},
	}
	start := int(hdr.InfoOffset) + lz.InfoSize
	if end := start + info.KeyHashSize(); end <= len(data) {
		result.KeyHash = fmt.Sprintf("%x", data[start:end])
	}

	measured := int(hdr.BootloaderDataOffset)
	if measured > len(data) {
		return nil, fmt.Errorf("bootloader data offset %#x beyond image of %d bytes", measured, len(data))
	}
	digests, err := lz.Measure(data[:measured])
	if err != nil {
		return nil, err
	}
	for _, d := range digests {
		result.Measurements[measurementKey(d.Algorithm)] = fmt.Sprintf("%x", d.Value)
	}
	return result, nil
}

func printText(w io.Writer, info *imageInfo) {
	fmt.Fprintf(w, "Size                       : %d\n", info.Size)
	if info.Compression != "" {
		fmt.Fprintf(w, "Compression                : %s\n", info.Compression)
	}
	fmt.Fprint(w, info.Header.Summary())
	fmt.Fprint(w, info.Info.Summary())
	fmt.Fprintf(w, "Key Hash                   : %s\n", info.KeyHash)
	for _, alg := range lz.MeasuredAlgorithms {
		key := measurementKey(alg)
		fmt.Fprintf(w, "Measurement %-14s : %s\n", key, info.Measurements[key])
	}
}

func measurementKey(alg tpm2.HashAlgorithmId) string {
	return fmt.Sprintf("0x%04x", uint16(alg))
}
