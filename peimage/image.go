// Package peimage is a read/write view of a PE/COFF image held in memory.
// Header parsing is done by saferwall/pe; the view adds RVA mapping, the CLR
// header and the few header edits needed to move a method body.
package peimage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	pe "github.com/saferwall/pe"
)

const (
	dirCLR = 14

	sectionHeaderSize = 40

	optSizeOfCode      = 4
	optSizeOfInitData  = 8
	optSizeOfImage     = 56
	optCheckSum        = 64
	secVirtualSize     = 8
	secSizeOfRawData   = 16
	secCharacteristics = 36

	scnCntCode        = 0x00000020
	scnMemDiscardable = 0x02000000
	scnMemRead        = 0x40000000

	comImageILOnly   = 0x00000001
	clrHeaderMinSize = 72
)

var (
	ErrNotPE       = errors.New("not a PE image")
	ErrNotManaged  = errors.New("image has no CLR header")
	ErrRVA         = errors.New("RVA is not mapped by any section")
	ErrNoRoom      = errors.New("no room in section")
	ErrOverlay     = errors.New("image has data after its last section")
	ErrUnsupported = errors.New("unsupported image layout")
)

// DataDirectory is an RVA and size pair.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// Section is one section header.
type Section struct {
	Name             string
	VirtualAddress   uint32
	VirtualSize      uint32
	SizeOfRawData    uint32
	PointerToRawData uint32
	Characteristics  uint32

	headerOffset int
}

// Contains reports whether rva falls inside the section's raw data.
func (s *Section) Contains(rva uint32) bool {
	return rva >= s.VirtualAddress && rva-s.VirtualAddress < s.extent()
}

func (s *Section) extent() uint32 {
	if s.VirtualSize != 0 && s.VirtualSize < s.SizeOfRawData {
		return s.VirtualSize
	}
	return s.SizeOfRawData
}

// Image is a parsed PE image. Data is the complete file and is modified in
// place by the mutation methods.
type Image struct {
	Data []byte

	Machine          uint16
	PE32Plus         bool
	ImageBase        uint64
	EntryPoint       uint32
	SectionAlignment uint32
	FileAlignment    uint32
	SizeOfImage      uint32
	CheckSum         uint32
	CLR              DataDirectory
	Sections         []Section

	optOffset int
}

// Parse parses the headers of a PE image. data is retained.
func Parse(data []byte) (*Image, error) {
	f, err := pe.NewBytes(data, &pe.Options{Fast: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPE, err)
	}
	defer f.Close()
	if err := f.Parse(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPE, err)
	}

	img := &Image{Data: data}
	switch oh := f.NtHeader.OptionalHeader.(type) {
	case pe.ImageOptionalHeader32:
		img.ImageBase = uint64(oh.ImageBase)
		img.EntryPoint = oh.AddressOfEntryPoint
		img.SectionAlignment = oh.SectionAlignment
		img.FileAlignment = oh.FileAlignment
		img.SizeOfImage = oh.SizeOfImage
		img.CheckSum = oh.CheckSum
		if oh.NumberOfRvaAndSizes > dirCLR {
			img.CLR = DataDirectory{oh.DataDirectory[dirCLR].VirtualAddress, oh.DataDirectory[dirCLR].Size}
		}
	case pe.ImageOptionalHeader64:
		img.PE32Plus = true
		img.ImageBase = oh.ImageBase
		img.EntryPoint = oh.AddressOfEntryPoint
		img.SectionAlignment = oh.SectionAlignment
		img.FileAlignment = oh.FileAlignment
		img.SizeOfImage = oh.SizeOfImage
		img.CheckSum = oh.CheckSum
		if oh.NumberOfRvaAndSizes > dirCLR {
			img.CLR = DataDirectory{oh.DataDirectory[dirCLR].VirtualAddress, oh.DataDirectory[dirCLR].Size}
		}
	default:
		return nil, fmt.Errorf("optional header %T: %w", oh, ErrNotPE)
	}

	lfanew := int(binary.LittleEndian.Uint32(data[0x3c:]))
	img.Machine = binary.LittleEndian.Uint16(data[lfanew+4:])
	img.optOffset = lfanew + 4 + 20
	optSize := int(binary.LittleEndian.Uint16(data[lfanew+4+16:]))
	table := img.optOffset + optSize
	if table+sectionHeaderSize*len(f.Sections) > len(data) {
		return nil, fmt.Errorf("section table: %w", ErrNotPE)
	}

	for i, s := range f.Sections {
		img.Sections = append(img.Sections, Section{
			Name:             strings.TrimRight(string(s.Header.Name[:]), "\x00"),
			VirtualAddress:   s.Header.VirtualAddress,
			VirtualSize:      s.Header.VirtualSize,
			SizeOfRawData:    s.Header.SizeOfRawData,
			PointerToRawData: s.Header.PointerToRawData,
			Characteristics:  s.Header.Characteristics,
			headerOffset:     table + i*sectionHeaderSize,
		})
	}
	return img, nil
}

// Section returns the section that maps rva.
func (img *Image) Section(rva uint32) (*Section, error) {
	for i := range img.Sections {
		if img.Sections[i].Contains(rva) {
			return &img.Sections[i], nil
		}
	}
	return nil, fmt.Errorf("0x%08x: %w", rva, ErrRVA)
}

// RVAToOffset converts an RVA to a file offset.
func (img *Image) RVAToOffset(rva uint32) (int, error) {
	s, err := img.Section(rva)
	if err != nil {
		return 0, err
	}
	off := int(s.PointerToRawData) + int(rva-s.VirtualAddress)
	if off >= len(img.Data) {
		return 0, fmt.Errorf("0x%08x beyond end of file: %w", rva, ErrRVA)
	}
	return off, nil
}

// At returns the bytes from rva to the end of its section's raw data.
func (img *Image) At(rva uint32) ([]byte, error) {
	s, err := img.Section(rva)
	if err != nil {
		return nil, err
	}
	start := int(s.PointerToRawData) + int(rva-s.VirtualAddress)
	end := int(s.PointerToRawData) + int(s.SizeOfRawData)
	if end > len(img.Data) {
		end = len(img.Data)
	}
	if start >= end {
		return nil, fmt.Errorf("0x%08x: %w", rva, ErrRVA)
	}
	return img.Data[start:end], nil
}

// Slice returns size bytes at rva.
func (img *Image) Slice(rva, size uint32) ([]byte, error) {
	b, err := img.At(rva)
	if err != nil {
		return nil, err
	}
	if uint32(len(b)) < size {
		return nil, fmt.Errorf("0x%08x+%d crosses section end: %w", rva, size, ErrRVA)
	}
	return b[:size], nil
}

// CLRHeader is the COR20 runtime header of a managed image.
type CLRHeader struct {
	Cb                  uint32
	MajorRuntimeVersion uint16
	MinorRuntimeVersion uint16
	Metadata            DataDirectory
	Flags               uint32
	EntryPointToken     uint32
	Resources           DataDirectory
	StrongNameSignature DataDirectory
}

// IsILOnly reports whether the image contains only IL. Images without the
// flag carry native code that a rewrite would not preserve.
func (h *CLRHeader) IsILOnly() bool {
	return h.Flags&comImageILOnly != 0
}

// CLRHeader reads the COR20 header.
func (img *Image) CLRHeader() (*CLRHeader, error) {
	if img.CLR.VirtualAddress == 0 || img.CLR.Size < clrHeaderMinSize {
		return nil, ErrNotManaged
	}
	b, err := img.Slice(img.CLR.VirtualAddress, clrHeaderMinSize)
	if err != nil {
		return nil, fmt.Errorf("CLR header: %w", err)
	}
	le := binary.LittleEndian
	return &CLRHeader{
		Cb:                  le.Uint32(b[0:]),
		MajorRuntimeVersion: le.Uint16(b[4:]),
		MinorRuntimeVersion: le.Uint16(b[6:]),
		Metadata:            DataDirectory{le.Uint32(b[8:]), le.Uint32(b[12:])},
		Flags:               le.Uint32(b[16:]),
		EntryPointToken:     le.Uint32(b[20:]),
		Resources:           DataDirectory{le.Uint32(b[24:]), le.Uint32(b[28:])},
		StrongNameSignature: DataDirectory{le.Uint32(b[32:]), le.Uint32(b[36:])},
	}, nil
}

// Overlay returns the number of bytes stored after the end of the last
// section's raw data.
func (img *Image) Overlay() int {
	end := 0
	for _, s := range img.Sections {
		if e := int(s.PointerToRawData + s.SizeOfRawData); e > end {
			end = e
		}
	}
	if end >= len(img.Data) {
		return 0
	}
	return len(img.Data) - end
}
