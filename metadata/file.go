package metadata

import (
	"fmt"

	"github.com/pboyd/ilpatch/peimage"
)

// File is a managed PE image with its metadata.
type File struct {
	Image  *peimage.Image
	CLR    *peimage.CLRHeader
	Root   *Root
	Tables *Tables

	// Offset is the file offset of the metadata root.
	Offset int
}

// Open parses data as a managed PE image and reads its metadata. The tables
// share memory with data.
func Open(data []byte) (*File, error) {
	img, err := peimage.Parse(data)
	if err != nil {
		return nil, err
	}
	clr, err := img.CLRHeader()
	if err != nil {
		return nil, err
	}
	raw, err := img.Slice(clr.Metadata.VirtualAddress, clr.Metadata.Size)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	off, err := img.RVAToOffset(clr.Metadata.VirtualAddress)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	root, err := ParseRoot(raw)
	if err != nil {
		return nil, err
	}
	tables, err := ParseTables(root)
	if err != nil {
		return nil, err
	}
	return &File{
		Image:  img,
		CLR:    clr,
		Root:   root,
		Tables: tables,
		Offset: off,
	}, nil
}

// MethodRVAOffset returns the file offset of the RVA cell of a MethodDef row.
func (m *File) MethodRVAOffset(row uint32) (int, error) {
	off, err := m.Tables.MethodRVAOffset(row)
	if err != nil {
		return 0, err
	}
	return m.Offset + int(m.Tables.Stream.Offset) + off, nil
}
