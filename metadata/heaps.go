package metadata

import (
	"bytes"
	"fmt"
	"unicode/utf16"
)

// StringHeap is the #Strings heap of null-terminated UTF-8 strings.
type StringHeap []byte

// At returns the string starting at offset i.
func (h StringHeap) At(i uint32) (string, error) {
	if int64(i) >= int64(len(h)) {
		if i == 0 {
			return "", nil
		}
		return "", fmt.Errorf("#Strings offset %d: %w", i, ErrBadIndex)
	}
	start := int(i)
	end := bytes.IndexByte(h[start:], 0)
	if end < 0 {
		return "", fmt.Errorf("#Strings offset %d: %w", i, ErrTruncated)
	}
	return string(h[start : start+end]), nil
}

// BlobHeap is the #Blob heap of length-prefixed byte strings.
type BlobHeap []byte

// At returns the blob starting at offset i.
func (h BlobHeap) At(i uint32) ([]byte, error) {
	if int64(i) >= int64(len(h)) {
		if i == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("#Blob offset %d: %w", i, ErrBadIndex)
	}
	n, size, err := DecompressUint(h[int(i):])
	if err != nil {
		return nil, fmt.Errorf("#Blob offset %d: %w", i, err)
	}
	start := int(i) + size
	if len(h)-start < int(n) {
		return nil, fmt.Errorf("#Blob offset %d: %w", i, ErrTruncated)
	}
	return h[start : start+int(n)], nil
}

// GUIDHeap is the #GUID heap of 16-byte values, indexed from one.
type GUIDHeap []byte

// At returns the GUID at one-based index i. Index zero is the null GUID.
func (h GUIDHeap) At(i uint32) ([16]byte, error) {
	var g [16]byte
	if i == 0 {
		return g, nil
	}
	start := int(i-1) * 16
	if start+16 > len(h) {
		return g, fmt.Errorf("#GUID index %d: %w", i, ErrBadIndex)
	}
	copy(g[:], h[start:start+16])
	return g, nil
}

// UserStringHeap is the #US heap of UTF-16 string literals.
type UserStringHeap []byte

// At returns the string literal at offset i, as referenced by ldstr.
func (h UserStringHeap) At(i uint32) (string, error) {
	b, err := BlobHeap(h).At(i)
	if err != nil {
		return "", err
	}
	// The trailing byte flags non-ASCII content.
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for j := range units {
		units[j] = uint16(b[2*j]) | uint16(b[2*j+1])<<8
	}
	return string(utf16.Decode(units)), nil
}

// DecompressUint decodes an ECMA-335 compressed unsigned integer and returns
// it with the number of bytes consumed.
func DecompressUint(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrTruncated
	}
	switch {
	case b[0]&0x80 == 0:
		return uint32(b[0]), 1, nil
	case b[0]&0xc0 == 0x80:
		if len(b) < 2 {
			return 0, 0, ErrTruncated
		}
		return uint32(b[0]&0x3f)<<8 | uint32(b[1]), 2, nil
	case b[0]&0xe0 == 0xc0:
		if len(b) < 4 {
			return 0, 0, ErrTruncated
		}
		return uint32(b[0]&0x1f)<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), 4, nil
	}
	return 0, 0, fmt.Errorf("compressed integer prefix 0x%02x: %w", b[0], ErrBadIndex)
}

// CompressUint encodes v as an ECMA-335 compressed unsigned integer.
func CompressUint(v uint32) []byte {
	switch {
	case v < 0x80:
		return []byte{byte(v)}
	case v < 0x4000:
		return []byte{byte(v>>8) | 0x80, byte(v)}
	default:
		return []byte{byte(v>>24) | 0xc0, byte(v >> 16), byte(v >> 8), byte(v)}
	}
}
