package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

const (
	heapStringsWide = 0x01
	heapGUIDWide    = 0x02
	heapBlobWide    = 0x04
	heapExtraData   = 0x40

	tablesHeaderSize = 24
)

var (
	ErrUncompressed = errors.New("uncompressed #- table stream is not supported")
	ErrUnknownTable = errors.New("unknown metadata table")
	ErrRowRange     = errors.New("row out of range")
	ErrBadIndex     = errors.New("invalid index")
)

type tableLayout struct {
	offset  int
	rowSize int
	cols    []cellLayout
}

type cellLayout struct {
	offset int
	size   int
}

// Tables is a view of the #~ stream. It shares memory with the metadata
// passed to ParseRoot, so SetCell writes through to the caller's buffer.
type Tables struct {
	MajorVersion uint8
	MinorVersion uint8
	HeapSizes    uint8
	Sorted       uint64

	// Stream is the #~ stream header; its offset is relative to the
	// metadata root.
	Stream StreamHeader

	Strings    StringHeap
	Blob       BlobHeap
	GUID       GUIDHeap
	UserString UserStringHeap

	rows   [numTables]uint32
	layout [numTables]tableLayout
	data   []byte
}

// ParseTables decodes the table stream header and computes the row layout of
// every present table.
func ParseTables(root *Root) (*Tables, error) {
	if _, _, ok := root.Stream("#-"); ok {
		return nil, ErrUncompressed
	}
	hdr, data, ok := root.Stream("#~")
	if !ok {
		return nil, fmt.Errorf("#~: %w", ErrStreamNotFound)
	}
	if len(data) < tablesHeaderSize {
		return nil, fmt.Errorf("#~ header: %w", ErrTruncated)
	}

	t := &Tables{
		MajorVersion: data[4],
		MinorVersion: data[5],
		HeapSizes:    data[6],
		Sorted:       binary.LittleEndian.Uint64(data[16:]),
		Stream:       hdr,
		data:         data,
	}
	valid := binary.LittleEndian.Uint64(data[8:])
	if valid>>numTables != 0 {
		id := bits.TrailingZeros64(valid >> numTables << numTables)
		return nil, fmt.Errorf("table 0x%02x: %w", id, ErrUnknownTable)
	}

	pos := tablesHeaderSize
	if len(data) < pos+4*bits.OnesCount64(valid) {
		return nil, fmt.Errorf("#~ row counts: %w", ErrTruncated)
	}
	for id := 0; id < numTables; id++ {
		if valid&(1<<id) == 0 {
			continue
		}
		t.rows[id] = binary.LittleEndian.Uint32(data[pos:])
		pos += 4
	}
	if t.HeapSizes&heapExtraData != 0 {
		pos += 4
	}

	if _, b, ok := root.Stream("#Strings"); ok {
		t.Strings = b
	}
	if _, b, ok := root.Stream("#Blob"); ok {
		t.Blob = b
	}
	if _, b, ok := root.Stream("#GUID"); ok {
		t.GUID = b
	}
	if _, b, ok := root.Stream("#US"); ok {
		t.UserString = b
	}

	for id := TableID(0); id < numTables; id++ {
		l := tableLayout{offset: pos}
		for _, c := range schema[id].columns {
			size := t.columnSize(c)
			l.cols = append(l.cols, cellLayout{offset: l.rowSize, size: size})
			l.rowSize += size
		}
		t.layout[id] = l
		pos += l.rowSize * int(t.rows[id])
		if pos > len(data) {
			return nil, fmt.Errorf("table %s: %w", id, ErrTruncated)
		}
	}
	return t, nil
}

func (t *Tables) columnSize(c column) int {
	switch c.kind {
	case fixed1:
		return 1
	case fixed2:
		return 2
	case fixed4:
		return 4
	case stringIndex:
		return t.heapIndexSize(heapStringsWide)
	case guidIndex:
		return t.heapIndexSize(heapGUIDWide)
	case blobIndex:
		return t.heapIndexSize(heapBlobWide)
	case tableIndex:
		if t.rows[c.table] < 1<<16 {
			return 2
		}
		return 4
	default:
		info := codedIndexes[c.coded]
		var most uint32
		for _, id := range info.tables {
			if id != noTable && t.rows[id] > most {
				most = t.rows[id]
			}
		}
		if most < 1<<(16-info.bits) {
			return 2
		}
		return 4
	}
}

func (t *Tables) heapIndexSize(flag uint8) int {
	if t.HeapSizes&flag != 0 {
		return 4
	}
	return 2
}

// RowCount returns the number of rows in a table.
func (t *Tables) RowCount(id TableID) int {
	if id >= numTables {
		return 0
	}
	return int(t.rows[id])
}

// RowSize returns the size in bytes of one row of a table.
func (t *Tables) RowSize(id TableID) int {
	if id >= numTables {
		return 0
	}
	return t.layout[id].rowSize
}

// CellOffset returns the offset of a cell relative to the start of the #~
// stream, and the cell's width. Rows are one-based.
func (t *Tables) CellOffset(id TableID, row uint32, col int) (int, int, error) {
	if id >= numTables {
		return 0, 0, fmt.Errorf("table 0x%02x: %w", uint8(id), ErrUnknownTable)
	}
	if row == 0 || row > t.rows[id] {
		return 0, 0, fmt.Errorf("%s row %d of %d: %w", id, row, t.rows[id], ErrRowRange)
	}
	l := t.layout[id]
	if col < 0 || col >= len(l.cols) {
		return 0, 0, fmt.Errorf("%s column %d: %w", id, col, ErrBadIndex)
	}
	c := l.cols[col]
	return l.offset + int(row-1)*l.rowSize + c.offset, c.size, nil
}

// Cell reads one cell.
func (t *Tables) Cell(id TableID, row uint32, col int) (uint32, error) {
	off, size, err := t.CellOffset(id, row, col)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint32(t.data[off]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(t.data[off:])), nil
	default:
		return binary.LittleEndian.Uint32(t.data[off:]), nil
	}
}

// SetCell overwrites one cell. The value must fit the cell's width.
func (t *Tables) SetCell(id TableID, row uint32, col int, v uint32) error {
	off, size, err := t.CellOffset(id, row, col)
	if err != nil {
		return err
	}
	switch size {
	case 1:
		if v > 0xff {
			return fmt.Errorf("%s column %d: value 0x%x too wide", id, col, v)
		}
		t.data[off] = byte(v)
	case 2:
		if v > 0xffff {
			return fmt.Errorf("%s column %d: value 0x%x too wide", id, col, v)
		}
		binary.LittleEndian.PutUint16(t.data[off:], uint16(v))
	default:
		binary.LittleEndian.PutUint32(t.data[off:], v)
	}
	return nil
}

// SetMethodRVA points a MethodDef row at a new body.
func (t *Tables) SetMethodRVA(row uint32, rva uint32) error {
	return t.SetCell(MethodDef, row, colMethodDefRVA, rva)
}

// MethodRVAOffset returns the offset of a MethodDef row's RVA cell relative
// to the start of the #~ stream.
func (t *Tables) MethodRVAOffset(row uint32) (int, error) {
	off, _, err := t.CellOffset(MethodDef, row, colMethodDefRVA)
	return off, err
}

func (t *Tables) readString(id TableID, row uint32, col int) (string, error) {
	v, err := t.Cell(id, row, col)
	if err != nil {
		return "", err
	}
	return t.Strings.At(v)
}

func (t *Tables) readBlob(id TableID, row uint32, col int) ([]byte, error) {
	v, err := t.Cell(id, row, col)
	if err != nil {
		return nil, err
	}
	return t.Blob.At(v)
}
