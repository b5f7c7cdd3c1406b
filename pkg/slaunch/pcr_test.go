// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slaunch

import (
	"testing"

	"github.com/canonical/go-tpm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedPCR17Empty(t *testing.T) {
	for alg, sig := range EmptyMeasurement {
		got, err := ExpectedPCR17(alg, nil)
		require.NoError(t, err)
		assert.Equal(t, sig, got, "algorithm 0x%04x", uint16(alg))

		empty, err := IsEmptyMeasurement(alg, got)
		require.NoError(t, err)
		assert.True(t, empty)
	}
}

func TestIsEmptyMeasurement(t *testing.T) {
	pcr, err := ExpectedPCR17(tpm2.HashAlgorithmSHA256, []byte{0x12, 0x34})
	require.NoError(t, err)
	empty, err := IsEmptyMeasurement(tpm2.HashAlgorithmSHA256, pcr)
	require.NoError(t, err)
	assert.False(t, empty)

	_, err = IsEmptyMeasurement(tpm2.HashAlgorithmSHA384, pcr)
	assert.Error(t, err)
}
