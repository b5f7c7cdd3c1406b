// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the physical addresses and values used by the launch
// sequence.
type Config struct {
	// ICRAddress is the local APIC interrupt command register.
	ICRAddress uint64 `json:"icr_address"`
	// INITIPI is written to the ICR to send INIT to all processors but
	// the current one, parking them in the wait-for-SIPI state.
	INITIPI uint32 `json:"init_ipi"`

	// TPMAccessBase is the TPM_ACCESS register of locality 0.
	TPMAccessBase uint64 `json:"tpm_access_base"`
	// TPMLocalityStride is the distance between the registers of two
	// consecutive localities.
	TPMLocalityStride uint64 `json:"tpm_locality_stride"`
	// TPMLocalities is the number of localities released.
	TPMLocalities int `json:"tpm_localities"`
	// RelinquishLocality is written to TPM_ACCESS to release a locality.
	RelinquishLocality uint8 `json:"relinquish_locality"`
}

// DefaultConfig returns the values of an AMD platform with a TIS TPM at its
// standard location.
func DefaultConfig() Config {
	return Config{
		ICRAddress:         0xFEE00300,
		INITIPI:            0x000C0500,
		TPMAccessBase:      0xFED40000,
		TPMLocalityStride:  0x1000,
		TPMLocalities:      5,
		RelinquishLocality: 0x20,
	}
}

// Validate checks that the configuration can drive the launch sequence.
func (c Config) Validate() error {
	if c.ICRAddress == 0 || c.TPMAccessBase == 0 {
		return fmt.Errorf("APIC and TPM register addresses must be set")
	}
	if c.TPMLocalities <= 0 || c.TPMLocalityStride == 0 {
		return fmt.Errorf("invalid TPM locality layout: %d localities every 0x%x bytes", c.TPMLocalities, c.TPMLocalityStride)
	}
	return nil
}

// LoadConfig reads a JSON configuration file on top of DefaultConfig.
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
