// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"crypto"
	_ "crypto/sha1"   // register SHA1 for crypto.Hash
	_ "crypto/sha256" // register SHA256 for crypto.Hash
	_ "crypto/sha512" // register SHA384/SHA512 for crypto.Hash
	"fmt"

	"github.com/canonical/go-tpm2"
)

// MeasuredAlgorithms lists the algorithms a hash tag is emitted for, in
// emission order.
var MeasuredAlgorithms = []tpm2.HashAlgorithmId{
	tpm2.HashAlgorithmSHA256,
	tpm2.HashAlgorithmSHA1,
}

var digestHashes = map[tpm2.HashAlgorithmId]crypto.Hash{
	tpm2.HashAlgorithmSHA1:   crypto.SHA1,
	tpm2.HashAlgorithmSHA256: crypto.SHA256,
	tpm2.HashAlgorithmSHA384: crypto.SHA384,
	tpm2.HashAlgorithmSHA512: crypto.SHA512,
}

// Digest is the result of measuring the landing zone with one algorithm.
type Digest struct {
	Algorithm tpm2.HashAlgorithmId
	Value     []byte
}

// ComputeDigest hashes data with the given TPM algorithm.
func ComputeDigest(alg tpm2.HashAlgorithmId, data []byte) ([]byte, error) {
	h, ok := digestHashes[alg]
	if !ok || !h.Available() {
		return nil, fmt.Errorf("hash algorithm %#04x is not supported", uint16(alg))
	}
	hash := h.New()
	hash.Write(data)
	return hash.Sum(nil), nil
}

// Measure computes one digest per algorithm over data. Without algorithms
// MeasuredAlgorithms are used.
func Measure(data []byte, algs ...tpm2.HashAlgorithmId) ([]Digest, error) {
	if len(algs) == 0 {
		algs = MeasuredAlgorithms
	}
	result := make([]Digest, 0, len(algs))
	for _, alg := range algs {
		d, err := ComputeDigest(alg, data)
		if err != nil {
			return nil, err
		}
		result = append(result, Digest{Algorithm: alg, Value: d})
	}
	return result, nil
}
