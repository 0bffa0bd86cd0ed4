package peimage

import (
	"encoding/binary"
	"fmt"
)

// Slack returns how many bytes can be appended to the section's virtual
// size without moving anything: the unused tail of its raw data, bounded by
// the next section's virtual address.
func (img *Image) Slack(s *Section) uint32 {
	start := align4(s.VirtualSize)
	limit := s.SizeOfRawData
	for _, other := range img.Sections {
		if other.VirtualAddress > s.VirtualAddress && other.VirtualAddress-s.VirtualAddress < limit {
			limit = other.VirtualAddress - s.VirtualAddress
		}
	}
	if start >= limit {
		return 0
	}
	return limit - start
}

// Reserve claims n bytes of slack at the end of s by extending its virtual
// size. It returns the RVA and file offset of the reserved space, which is
// aligned to four bytes.
func (img *Image) Reserve(s *Section, n uint32) (uint32, int, error) {
	if img.Slack(s) < n {
		return 0, 0, fmt.Errorf("%s: %d bytes needed, %d free: %w", s.Name, n, img.Slack(s), ErrNoRoom)
	}
	start := align4(s.VirtualSize)
	img.setVirtualSize(s, start+n)
	return s.VirtualAddress + start, int(s.PointerToRawData + start), nil
}

// Grow appends n bytes to the last section, extending the file. Images with
// an overlay are refused.
func (img *Image) Grow(n uint32) (uint32, int, error) {
	if len(img.Sections) == 0 {
		return 0, 0, fmt.Errorf("no sections: %w", ErrUnsupported)
	}
	if overlay := img.Overlay(); overlay > 0 {
		return 0, 0, fmt.Errorf("%d bytes: %w", overlay, ErrOverlay)
	}
	s := &img.Sections[len(img.Sections)-1]
	if int(s.PointerToRawData+s.SizeOfRawData) != len(img.Data) {
		return 0, 0, fmt.Errorf("last section does not end the file: %w", ErrUnsupported)
	}

	start := align4(s.VirtualSize)
	newRaw := alignUp(start+n, img.FileAlignment)
	if newRaw < s.SizeOfRawData {
		newRaw = s.SizeOfRawData
	}
	grow := newRaw - s.SizeOfRawData
	img.Data = append(img.Data, make([]byte, grow)...)

	le := binary.LittleEndian
	le.PutUint32(img.Data[s.headerOffset+secSizeOfRawData:], newRaw)
	s.SizeOfRawData = newRaw
	img.setVirtualSize(s, start+n)

	sizeField := optSizeOfInitData
	if s.Characteristics&scnCntCode != 0 {
		sizeField = optSizeOfCode
	}
	total := le.Uint32(img.Data[img.optOffset+sizeField:])
	le.PutUint32(img.Data[img.optOffset+sizeField:], total+grow)

	chars := (s.Characteristics | scnMemRead) &^ scnMemDiscardable
	if chars != s.Characteristics {
		s.Characteristics = chars
		le.PutUint32(img.Data[s.headerOffset+secCharacteristics:], chars)
	}

	if size := alignUp(s.VirtualAddress+s.VirtualSize, img.SectionAlignment); size > img.SizeOfImage {
		img.SizeOfImage = size
		le.PutUint32(img.Data[img.optOffset+optSizeOfImage:], size)
	}
	return s.VirtualAddress + start, int(s.PointerToRawData + start), nil
}

func (img *Image) setVirtualSize(s *Section, size uint32) {
	if size <= s.VirtualSize {
		return
	}
	s.VirtualSize = size
	binary.LittleEndian.PutUint32(img.Data[s.headerOffset+secVirtualSize:], size)
}

// UpdateCheckSum recomputes the optional header checksum. Images that were
// built without a checksum are left at zero.
func (img *Image) UpdateCheckSum() {
	if img.CheckSum == 0 {
		return
	}
	img.CheckSum = CheckSum(img.Data, img.optOffset+optCheckSum)
	binary.LittleEndian.PutUint32(img.Data[img.optOffset+optCheckSum:], img.CheckSum)
}

// CheckSumOffset returns the file offset of the optional header checksum.
func (img *Image) CheckSumOffset() int {
	return img.optOffset + optCheckSum
}

// CheckSum computes the PE image checksum of data, treating the four bytes
// at checksumAt as zero.
func CheckSum(data []byte, checksumAt int) uint32 {
	var sum uint64
	for i := 0; i+1 < len(data); i += 2 {
		if i == checksumAt || i == checksumAt+2 {
			continue
		}
		sum += uint64(binary.LittleEndian.Uint16(data[i:]))
		sum = (sum & 0xffff) + (sum >> 16)
	}
	if len(data)%2 == 1 {
		sum += uint64(data[len(data)-1])
		sum = (sum & 0xffff) + (sum >> 16)
	}
	sum = (sum & 0xffff) + (sum >> 16)
	return uint32(sum) + uint32(len(data))
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

func alignUp(n, a uint32) uint32 {
	if a == 0 {
		return n
	}
	return (n + a - 1) / a * a
}
