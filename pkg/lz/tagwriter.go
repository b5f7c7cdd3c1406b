// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lz

import (
	"encoding/binary"
	"fmt"
)

// sizeFieldOffset is the offset of SizeTag.Size inside the block.
const sizeFieldOffset = TagHeaderSize

// TagBlockWriter builds a tag block in memory. The block always starts with
// a SizeTag whose Size is kept equal to the length of the block, and every
// append is checked against the block limit.
type TagBlockWriter struct {
	buf    []byte
	limit  uint32
	closed bool
}

// NewTagBlockWriter starts a tag block which may grow up to limit bytes.
func NewTagBlockWriter(limit uint32) (*TagBlockWriter, error) {
	w := &TagBlockWriter{limit: limit}
	if err := w.put(NewSizeTag(limit)); err != nil {
		return nil, err
	}
	return w, nil
}

// Size returns the running size recorded by the size tag.
func (w *TagBlockWriter) Size() uint32 {
	return binary.LittleEndian.Uint32(w.buf[sizeFieldOffset:])
}

// Limit returns the maximum size of the block.
func (w *TagBlockWriter) Limit() uint32 {
	return w.limit
}

// Append adds a tag and advances the running size.
func (w *TagBlockWriter) Append(tag Tag) error {
	if w.closed {
		return ErrBlockClosed
	}
	switch tag.Header().Type {
	case TagTagsSize, TagEnd:
		return fmt.Errorf("tag %s is managed by the writer", tag.Header().Type)
	}
	return w.put(tag)
}

// Close appends the terminator and returns the finished block. The writer
// cannot be used afterwards.
func (w *TagBlockWriter) Close() ([]byte, error) {
	if w.closed {
		return nil, ErrBlockClosed
	}
	if err := w.put(NewEndTag()); err != nil {
		return nil, err
	}
	w.closed = true
	return w.buf, nil
}

func (w *TagBlockWriter) put(tag Tag) error {
	b := tag.Bytes()
	if int(tag.Header().Len) != len(b) {
		return fmt.Errorf("tag %s declares %d bytes but encodes to %d", tag.Header().Type, tag.Header().Len, len(b))
	}
	need := uint64(len(w.buf)) + uint64(len(b))
	if need > uint64(w.limit) {
		return ErrCapacityExceeded{Need: need, Capacity: uint64(w.limit)}
	}
	w.buf = append(w.buf, b...)
	binary.LittleEndian.PutUint32(w.buf[sizeFieldOffset:], uint32(len(w.buf)))
	return nil
}
