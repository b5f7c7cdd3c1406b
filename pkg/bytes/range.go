// Copyright 2019 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytes

import (
	"fmt"
	"sort"
	"strings"
)

// Range defines a byte range inside a secure loader block.
type Range struct {
	Offset uint64
	Length uint64
}

func (r Range) String() string {
	return fmt.Sprintf(`{"Offset":"0x%x", "Length":"0x%x"}`, r.Offset, r.Length)
}

// End returns the offset of the first byte after the range.
func (r Range) End() uint64 {
	return r.Offset + r.Length
}

// Intersect returns True if ranges "r" and "cmp" has at least
// one byte with the same offset.
func (r Range) Intersect(cmp Range) bool {
	if r.Length == 0 || cmp.Length == 0 {
		return false
	}
	if r.End() <= cmp.Offset {
		return false
	}
	if r.Offset >= cmp.End() {
		return false
	}
	return true
}

// Contains returns true if every byte of "inner" is also covered by "r".
func (r Range) Contains(inner Range) bool {
	return inner.Offset >= r.Offset && inner.End() <= r.End()
}

// Slice returns b[r.Offset:r.End()], or an error if the range does not fit
// into b.
func (r Range) Slice(b []byte) ([]byte, error) {
	if r.End() < r.Offset || r.End() > uint64(len(b)) {
		return nil, fmt.Errorf("range %s is out of bounds of %d bytes", r, len(b))
	}
	return b[r.Offset:r.End()], nil
}

// Ranges is a helper to manipulate multiple `Range`-s at once
type Ranges []Range

func (s Ranges) String() string {
	r := make([]string, 0, len(s))
	for _, oneRange := range s {
		r = append(r, oneRange.String())
	}
	return `[` + strings.Join(r, `, `) + `]`
}

// Sort sorts the slice by field Offset
func (s Ranges) Sort() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].Offset < s[j].Offset
	})
}

// Overlapping returns the first pair of intersecting ranges, if any.
func (s Ranges) Overlapping() (Range, Range, bool) {
	for i := range s {
		for j := i + 1; j < len(s); j++ {
			if s[i].Intersect(s[j]) {
				return s[i], s[j], true
			}
		}
	}
	return Range{}, Range{}, false
}

// IsIn returns if the index is covered by this ranges
func (s Ranges) IsIn(index uint64) bool {
	for _, r := range s {
		// `Offset` is inclusive, while `End()` is exclusive.
		if r.Offset <= index && index < r.End() {
			return true
		}
	}
	return false
}
