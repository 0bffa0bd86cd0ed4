// Package testasm builds small managed PE32 modules for tests. The modules
// are valid enough for the loaders in this repository: one .text section
// holding the CLR header, method bodies, metadata and a native entry stub.
package testasm

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	ImageBase        = 0x10000000
	SectionAlignment = 0x2000
	FileAlignment    = 0x200
	TextRVA          = 0x2000
	TextOffset       = 0x200

	lfanew          = 0x80
	optHeaderOffset = lfanew + 4 + 20
	optHeaderSize   = 0xe0
	sectionTable    = optHeaderOffset + optHeaderSize
	clrHeaderSize   = 72
	iatSize         = 8

	comImageILOnly = 0x1

	methodPublicHideBySig = 0x0086
	methodAbstractVirtual = 0x0440
)

// Method is a method definition. A nil Body produces an abstract method.
type Method struct {
	Name string
	Body []byte
}

// Type is a type definition. Enclosing names another type of the module by
// its simple name to make this one nested.
type Type struct {
	Namespace string
	Name      string
	Enclosing string
	Methods   []Method
}

// AssemblyRef is a reference to another assembly.
type AssemblyRef struct {
	Name           string
	Version        [4]uint16
	PublicKeyToken []byte
}

// MemberRef is a method reference on a type of a referenced assembly.
type MemberRef struct {
	Namespace string
	Type      string
	Name      string
}

// Module describes the module to build.
type Module struct {
	Name       string
	Version    [4]uint16
	Types      []Type
	References []AssemblyRef
	MemberRefs []MemberRef

	// MixedMode clears the ILONLY flag in the CLR header.
	MixedMode bool

	// Checksum is written to the optional header as is.
	Checksum uint32

	// Slack is the number of zero bytes between the section's virtual size
	// and its raw size. It must be below FileAlignment.
	Slack int

	// Overlay is appended after the last section.
	Overlay []byte
}

// Layout records where the builder placed things.
type Layout struct {
	// BodyRVA maps "Type::Method" to the RVA of its body. Overloads record
	// the first body.
	BodyRVA map[string]uint32

	MetadataRVA  uint32
	MetadataSize uint32
	EntryRVA     uint32
	VirtualSize  uint32
	RawSize      uint32
}

// Build returns the module image and its layout.
func (m Module) Build() ([]byte, Layout) {
	layout := Layout{BodyRVA: map[string]uint32{}}

	var text bytes.Buffer
	text.Write(make([]byte, iatSize))
	clrAt := text.Len()
	text.Write(make([]byte, clrHeaderSize))

	var rvas []uint32
	for _, t := range m.Types {
		for _, meth := range t.Methods {
			if meth.Body == nil {
				rvas = append(rvas, 0)
				continue
			}
			pad4(&text)
			rva := uint32(TextRVA + text.Len())
			if _, ok := layout.BodyRVA[t.Name+"::"+meth.Name]; !ok {
				layout.BodyRVA[t.Name+"::"+meth.Name] = rva
			}
			rvas = append(rvas, rva)
			text.Write(meth.Body)
		}
	}

	pad4(&text)
	metaAt := text.Len()
	meta := m.metadata(rvas)
	text.Write(meta)
	layout.MetadataRVA = uint32(TextRVA + metaAt)
	layout.MetadataSize = uint32(len(meta))

	pad4(&text)
	hintName := uint32(TextRVA + text.Len())
	text.Write([]byte{0, 0})
	text.WriteString("_CorDllMain\x00mscoree.dll\x00")
	for (text.Len()+2)%4 != 0 {
		text.WriteByte(0)
	}
	text.Write([]byte{0, 0})
	entry := uint32(TextRVA + text.Len())
	text.Write([]byte{0xff, 0x25})
	binary.Write(&text, binary.LittleEndian, uint32(ImageBase+TextRVA))
	layout.EntryRVA = entry

	raw := alignUp(text.Len()+m.Slack, FileAlignment)
	for text.Len() < raw-m.Slack {
		text.WriteByte(0)
	}
	virtualSize := text.Len()
	layout.VirtualSize = uint32(virtualSize)
	layout.RawSize = uint32(raw)

	section := text.Bytes()
	binary.LittleEndian.PutUint32(section[0:], hintName)

	clr := section[clrAt:]
	binary.LittleEndian.PutUint32(clr[0:], clrHeaderSize)
	binary.LittleEndian.PutUint16(clr[4:], 2)
	binary.LittleEndian.PutUint16(clr[6:], 5)
	binary.LittleEndian.PutUint32(clr[8:], layout.MetadataRVA)
	binary.LittleEndian.PutUint32(clr[12:], layout.MetadataSize)
	if !m.MixedMode {
		binary.LittleEndian.PutUint32(clr[16:], comImageILOnly)
	}

	img := make([]byte, TextOffset+raw)
	copy(img[TextOffset:], section)
	m.headers(img, layout, uint32(TextRVA+clrAt))
	return append(img, m.Overlay...), layout
}

func (m Module) headers(img []byte, layout Layout, clrRVA uint32) {
	le := binary.LittleEndian

	img[0], img[1] = 'M', 'Z'
	le.PutUint32(img[0x3c:], lfanew)
	copy(img[lfanew:], "PE\x00\x00")

	coff := img[lfanew+4:]
	le.PutUint16(coff[0:], 0x14c)
	le.PutUint16(coff[2:], 1)
	le.PutUint16(coff[16:], optHeaderSize)
	le.PutUint16(coff[18:], 0x2102)

	opt := img[optHeaderOffset:]
	le.PutUint16(opt[0:], 0x10b)
	opt[2] = 8
	le.PutUint32(opt[4:], layout.RawSize)
	le.PutUint32(opt[16:], layout.EntryRVA)
	le.PutUint32(opt[20:], TextRVA)
	le.PutUint32(opt[28:], ImageBase)
	le.PutUint32(opt[32:], SectionAlignment)
	le.PutUint32(opt[36:], FileAlignment)
	le.PutUint16(opt[40:], 4)
	le.PutUint16(opt[48:], 4)
	le.PutUint32(opt[56:], uint32(TextRVA+alignUp(int(layout.VirtualSize), SectionAlignment)))
	le.PutUint32(opt[60:], TextOffset)
	le.PutUint32(opt[64:], m.Checksum)
	le.PutUint16(opt[68:], 3)
	le.PutUint16(opt[70:], 0x8540)
	le.PutUint32(opt[72:], 0x100000)
	le.PutUint32(opt[76:], 0x1000)
	le.PutUint32(opt[80:], 0x100000)
	le.PutUint32(opt[84:], 0x1000)
	le.PutUint32(opt[92:], 16)
	dir := opt[96:]
	le.PutUint32(dir[12*8:], TextRVA)
	le.PutUint32(dir[12*8+4:], iatSize)
	le.PutUint32(dir[14*8:], clrRVA)
	le.PutUint32(dir[14*8+4:], clrHeaderSize)

	sec := img[sectionTable:]
	copy(sec[0:8], ".text")
	le.PutUint32(sec[8:], layout.VirtualSize)
	le.PutUint32(sec[12:], TextRVA)
	le.PutUint32(sec[16:], layout.RawSize)
	le.PutUint32(sec[20:], TextOffset)
	le.PutUint32(sec[36:], 0x60000020)
}

type heap struct {
	buf   bytes.Buffer
	index map[string]uint16
}

func newHeap() *heap {
	h := &heap{index: map[string]uint16{}}
	h.buf.WriteByte(0)
	return h
}

func (h *heap) str(s string) uint16 {
	if s == "" {
		return 0
	}
	if i, ok := h.index[s]; ok {
		return i
	}
	i := uint16(h.buf.Len())
	h.buf.WriteString(s)
	h.buf.WriteByte(0)
	h.index[s] = i
	return i
}

func (h *heap) blob(b []byte) uint16 {
	if len(b) == 0 {
		return 0
	}
	key := string(b)
	if i, ok := h.index[key]; ok {
		return i
	}
	i := uint16(h.buf.Len())
	h.buf.WriteByte(byte(len(b)))
	h.buf.Write(b)
	h.index[key] = i
	return i
}

var methodSig = []byte{0x20, 0x00, 0x01}

func (m Module) metadata(rvas []uint32) []byte {
	strs := newHeap()
	blobs := newHeap()
	sig := blobs.blob(methodSig)
	mvid := sha1.Sum([]byte(m.Name))

	type table struct {
		id   int
		rows int
		data bytes.Buffer
	}
	tables := map[int]*table{}
	row := func(id int) *bytes.Buffer {
		t, ok := tables[id]
		if !ok {
			t = &table{id: id}
			tables[id] = t
		}
		t.rows++
		return &t.data
	}
	put := func(b *bytes.Buffer, vs ...any) {
		for _, v := range vs {
			binary.Write(b, binary.LittleEndian, v)
		}
	}

	put(row(0x00), uint16(0), strs.str(m.Name+".dll"), uint16(1), uint16(0), uint16(0))

	typeRefs := map[string]uint16{}
	for _, mr := range m.MemberRefs {
		key := mr.Namespace + "." + mr.Type
		if _, ok := typeRefs[key]; ok {
			continue
		}
		scope := uint16(0)
		if len(m.References) > 0 {
			scope = 1<<2 | 2
		}
		put(row(0x01), scope, strs.str(mr.Type), strs.str(mr.Namespace))
		typeRefs[key] = uint16(tables[0x01].rows)
	}

	typeRow := map[string]uint16{}
	methodRow := uint16(1)
	put(row(0x02), uint32(0), strs.str("<Module>"), uint16(0), uint16(0), uint16(1), methodRow)
	for i, t := range m.Types {
		typeRow[t.Name] = uint16(i + 2)
		flags := uint32(0x00100001)
		if t.Enclosing != "" {
			flags = 0x00100002
		}
		put(row(0x02), flags, strs.str(t.Name), strs.str(t.Namespace), uint16(0), uint16(1), methodRow)
		methodRow += uint16(len(t.Methods))
	}

	i := 0
	for _, t := range m.Types {
		for _, meth := range t.Methods {
			flags := uint16(methodPublicHideBySig)
			if meth.Body == nil {
				flags |= methodAbstractVirtual
			}
			put(row(0x06), rvas[i], uint16(0), flags, strs.str(meth.Name), sig, uint16(1))
			i++
		}
	}

	for _, mr := range m.MemberRefs {
		class := typeRefs[mr.Namespace+"."+mr.Type]<<3 | 1
		put(row(0x0a), class, strs.str(mr.Name), sig)
	}

	for _, t := range m.Types {
		if t.Enclosing == "" {
			continue
		}
		put(row(0x29), typeRow[t.Name], typeRow[t.Enclosing])
	}

	put(row(0x20), uint32(0x8004), m.Version[0], m.Version[1], m.Version[2], m.Version[3],
		uint32(0), uint16(0), strs.str(m.Name), uint16(0))

	for _, ref := range m.References {
		put(row(0x23), ref.Version[0], ref.Version[1], ref.Version[2], ref.Version[3],
			uint32(0), blobs.blob(ref.PublicKeyToken), strs.str(ref.Name), uint16(0), uint16(0))
	}

	var tbl bytes.Buffer
	var valid uint64
	for id := range tables {
		valid |= 1 << id
	}
	put(&tbl, uint32(0), uint8(2), uint8(0), uint8(0), uint8(1), valid, uint64(0x000016003301fa00))
	for id := 0; id < 64; id++ {
		if t, ok := tables[id]; ok {
			put(&tbl, uint32(t.rows))
		}
	}
	for id := 0; id < 64; id++ {
		if t, ok := tables[id]; ok {
			tbl.Write(t.data.Bytes())
		}
	}

	us := []byte{0, 0, 0, 0}
	streams := []struct {
		name string
		data []byte
	}{
		{"#~", tbl.Bytes()},
		{"#Strings", strs.buf.Bytes()},
		{"#US", us},
		{"#GUID", mvid[:16]},
		{"#Blob", blobs.buf.Bytes()},
	}

	version := []byte("v4.0.30319\x00\x00")
	headerSize := 16 + len(version) + 4
	for _, s := range streams {
		headerSize += 8 + alignUp(len(s.name)+1, 4)
	}

	var out bytes.Buffer
	put(&out, uint32(0x424a5342), uint16(1), uint16(1), uint32(0), uint32(len(version)))
	out.Write(version)
	put(&out, uint16(0), uint16(len(streams)))
	offset := headerSize
	for _, s := range streams {
		put(&out, uint32(offset), uint32(alignUp(len(s.data), 4)))
		name := make([]byte, alignUp(len(s.name)+1, 4))
		copy(name, s.name)
		out.Write(name)
		offset += alignUp(len(s.data), 4)
	}
	for _, s := range streams {
		out.Write(s.data)
		pad4(&out)
	}
	return out.Bytes()
}

// Write builds the module into dir as <Name>.dll and returns the path.
func Write(t testing.TB, dir string, m Module) string {
	t.Helper()
	data, _ := m.Build()
	path := filepath.Join(dir, m.Name+".dll")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pad4(b *bytes.Buffer) {
	for b.Len()%4 != 0 {
		b.WriteByte(0)
	}
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}
