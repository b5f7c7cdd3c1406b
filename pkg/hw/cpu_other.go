// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64
// +build !amd64

package hw

import (
	"time"
)

var epoch = time.Now()

// Reads as a processor without extended CPUID leaves, which is rejected as
// not being an AMD processor.
func cpuid(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32) {
	return 0, 0, 0, 0
}

func rdtsc() uint64 {
	return uint64(time.Since(epoch))
}

func skinit(target uint32) {
	panic("SKINIT is only available on amd64")
}
