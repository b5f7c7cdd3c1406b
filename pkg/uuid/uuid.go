// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uuid implements the big-endian (RFC 4122) UUID used to identify
// landing zone schemas. Unlike a Microsoft GUID no field is byte swapped:
// the textual form is the hex dump of the 16 raw bytes.
package uuid

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// Size represents number of bytes in a UUID
	Size = 16
	// UExample is a example of a string UUID
	UExample = "78f1268e-0492-11e9-832a-c85b76c4cc02"
)

// UUID represents a unique identifier.
type UUID [Size]byte

// Parse parses a uuid string. Hyphens are optional.
func Parse(s string) (*UUID, error) {
	stripped := strings.Replace(s, "-", "", -1)
	decoded, err := hex.DecodeString(stripped)
	if err != nil {
		return nil, fmt.Errorf("uuid string not correct, need string of the format %v, got %v", UExample, s)
	}
	if len(decoded) != Size {
		return nil, fmt.Errorf("uuid string has incorrect length, need string of the format %v, got %v", UExample, s)
	}

	u := UUID{}
	copy(u[:], decoded)
	return &u, nil
}

// MustParse parses a uuid string or panics.
func MustParse(s string) *UUID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

func (u UUID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

// MarshalJSON implements json.Marshaler.
func (u UUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UUID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*u = *parsed
	return nil
}
