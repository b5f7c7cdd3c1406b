// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slaunch

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/canonical/go-tpm2"

	"github.com/linuxboot/landingzone/pkg/lz"
)

// EmptyMeasurement maps a PCR bank to the value PCR17 holds after SKINIT
// measured a zero length secure loader block. Seeing it after launch means
// the settle delay was too short.
var EmptyMeasurement = map[tpm2.HashAlgorithmId][]byte{
	tpm2.HashAlgorithmSHA1:   mustDecodeHex("31a2dc4c22f9c5444a41625d05f95898e055f750"),
	tpm2.HashAlgorithmSHA256: mustDecodeHex("1c9ecec90e28d2461650418635878a5c91e49f47586ecf75f2b0cbb94e897112"),
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ExpectedPCR17 returns the value of PCR17 in the given bank after SKINIT
// measured the given bytes: the dynamic reset zeroes the PCR, which is then
// extended with the digest of the measured bytes.
func ExpectedPCR17(alg tpm2.HashAlgorithmId, measured []byte) ([]byte, error) {
	digest, err := lz.ComputeDigest(alg, measured)
	if err != nil {
		return nil, err
	}
	extended, err := lz.ComputeDigest(alg, append(make([]byte, len(digest)), digest...))
	if err != nil {
		return nil, err
	}
	return extended, nil
}

// IsEmptyMeasurement reports whether pcr17 is the value left by a
// measurement of a zero length block in the given bank.
func IsEmptyMeasurement(alg tpm2.HashAlgorithmId, pcr17 []byte) (bool, error) {
	sig, ok := EmptyMeasurement[alg]
	if !ok {
		return false, fmt.Errorf("no empty measurement signature for algorithm 0x%04x", uint16(alg))
	}
	return bytes.Equal(sig, pcr17), nil
}
