// Package metadata reads the ECMA-335 metadata of a managed module: the
// metadata root, its heaps and the compressed #~ table stream.
package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	rootSignature  = 0x424a5342 // "BSJB"
	maxStreamName  = 32
	rootHeaderSize = 16
)

var (
	ErrBadSignature   = errors.New("bad metadata signature")
	ErrTruncated      = errors.New("metadata truncated")
	ErrStreamNotFound = errors.New("metadata stream not found")
)

// StreamHeader locates one stream. Offset is relative to the metadata root.
type StreamHeader struct {
	Name   string
	Offset uint32
	Size   uint32
}

// Root is the parsed metadata root.
type Root struct {
	MajorVersion uint16
	MinorVersion uint16
	Version      string
	Flags        uint16
	Streams      []StreamHeader

	data []byte
}

// ParseRoot parses the metadata root at the start of data. The returned Root
// and everything derived from it refer to data without copying.
func ParseRoot(data []byte) (*Root, error) {
	if len(data) < rootHeaderSize {
		return nil, ErrTruncated
	}
	if binary.LittleEndian.Uint32(data) != rootSignature {
		return nil, fmt.Errorf("0x%08x: %w", binary.LittleEndian.Uint32(data), ErrBadSignature)
	}

	r := &Root{
		MajorVersion: binary.LittleEndian.Uint16(data[4:]),
		MinorVersion: binary.LittleEndian.Uint16(data[6:]),
		data:         data,
	}
	versionLen := int(binary.LittleEndian.Uint32(data[12:]))
	pos := rootHeaderSize
	if versionLen < 0 || len(data)-pos-4 < versionLen {
		return nil, fmt.Errorf("version string: %w", ErrTruncated)
	}
	r.Version = string(bytes.TrimRight(data[pos:pos+versionLen], "\x00"))
	pos = align4(pos + versionLen)

	if len(data) < pos+4 {
		return nil, ErrTruncated
	}
	r.Flags = binary.LittleEndian.Uint16(data[pos:])
	count := int(binary.LittleEndian.Uint16(data[pos+2:]))
	pos += 4

	for i := 0; i < count; i++ {
		if len(data) < pos+8 {
			return nil, fmt.Errorf("stream header %d: %w", i, ErrTruncated)
		}
		h := StreamHeader{
			Offset: binary.LittleEndian.Uint32(data[pos:]),
			Size:   binary.LittleEndian.Uint32(data[pos+4:]),
		}
		pos += 8
		end := bytes.IndexByte(data[pos:], 0)
		if end < 0 || end >= maxStreamName {
			return nil, fmt.Errorf("stream header %d name: %w", i, ErrTruncated)
		}
		h.Name = string(data[pos : pos+end])
		pos = align4(pos + end + 1)

		if uint64(h.Offset)+uint64(h.Size) > uint64(len(data)) {
			return nil, fmt.Errorf("stream %s: %w", h.Name, ErrTruncated)
		}
		r.Streams = append(r.Streams, h)
	}
	return r, nil
}

// Stream returns the header and contents of the named stream.
func (r *Root) Stream(name string) (StreamHeader, []byte, bool) {
	for _, h := range r.Streams {
		if h.Name == name {
			return h, r.data[h.Offset : h.Offset+h.Size], true
		}
	}
	return StreamHeader{}, nil, false
}

func align4(n int) int {
	return (n + 3) &^ 3
}
