package metadata_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pboyd/ilpatch/internal/testasm"
	"github.com/pboyd/ilpatch/metadata"
)

var fixture = testasm.Module{
	Name:    "Game",
	Version: [4]uint16{1, 2, 3, 4},
	Types: []testasm.Type{
		{
			Namespace: "Game.UI",
			Name:      "Meter",
			Methods: []testasm.Method{
				{Name: "SetValue", Body: []byte{0x06, 0x2a}},
				{Name: "Reset", Body: []byte{0x06, 0x2a}},
			},
		},
		{
			Name:      "Inner",
			Enclosing: "Meter",
			Methods:   []testasm.Method{{Name: "Abstract"}},
		},
	},
	References: []testasm.AssemblyRef{
		{Name: "UnityEngine", Version: [4]uint16{0, 0, 0, 0}},
		{Name: "mscorlib", Version: [4]uint16{2, 0, 5, 0}, PublicKeyToken: []byte{0xb7, 0x7a, 0x5c, 0x56, 0x19, 0x34, 0xe0, 0x89}},
	},
	MemberRefs: []testasm.MemberRef{
		{Namespace: "UnityEngine", Type: "Mathf", Name: "Lerp"},
	},
}

func metadataBytes(t *testing.T, m testasm.Module) ([]byte, testasm.Layout) {
	t.Helper()
	img, layout := m.Build()
	start := layout.MetadataRVA - testasm.TextRVA + testasm.TextOffset
	return img[start : start+layout.MetadataSize], layout
}

func parse(t *testing.T, data []byte) *metadata.Tables {
	t.Helper()
	root, err := metadata.ParseRoot(data)
	require.NoError(t, err)
	tables, err := metadata.ParseTables(root)
	require.NoError(t, err)
	return tables
}

func TestParseRoot(t *testing.T) {
	assert := assert.New(t)

	data, _ := metadataBytes(t, fixture)
	root, err := metadata.ParseRoot(data)
	require.NoError(t, err)

	assert.Equal("v4.0.30319", root.Version)
	var names []string
	for _, s := range root.Streams {
		names = append(names, s.Name)
	}
	assert.Equal([]string{"#~", "#Strings", "#US", "#GUID", "#Blob"}, names)

	_, b, ok := root.Stream("#Strings")
	assert.True(ok)
	assert.Equal(byte(0), b[0])

	_, _, ok = root.Stream("#Nope")
	assert.False(ok)
}

func TestParseRoot_Errors(t *testing.T) {
	data, _ := metadataBytes(t, fixture)

	tests := map[string]struct {
		data []byte
		want error
	}{
		"empty": {
			data: nil,
			want: metadata.ErrTruncated,
		},
		"bad signature": {
			data: append([]byte("XSJB"), data[4:]...),
			want: metadata.ErrBadSignature,
		},
		"truncated streams": {
			data: data[:40],
			want: metadata.ErrTruncated,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := metadata.ParseRoot(tc.data)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseTables_Layout(t *testing.T) {
	assert := assert.New(t)

	data, _ := metadataBytes(t, fixture)
	tables := parse(t, data)

	assert.Equal(1, tables.RowCount(metadata.Module))
	assert.Equal(3, tables.RowCount(metadata.TypeDef))
	assert.Equal(3, tables.RowCount(metadata.MethodDef))
	assert.Equal(2, tables.RowCount(metadata.AssemblyRef))
	assert.Equal(0, tables.RowCount(metadata.Field))

	assert.Equal(10, tables.RowSize(metadata.Module))
	assert.Equal(14, tables.RowSize(metadata.TypeDef))
	assert.Equal(14, tables.RowSize(metadata.MethodDef))
	assert.Equal(22, tables.RowSize(metadata.Assembly))
	assert.Equal(20, tables.RowSize(metadata.AssemblyRef))
	assert.Equal(6, tables.RowSize(metadata.MemberRef))
	assert.Equal("MethodDef", metadata.MethodDef.String())
}

func TestParseTables_StreamErrors(t *testing.T) {
	tests := map[string]struct {
		rename string
		want   error
	}{
		"uncompressed": {rename: "#-", want: metadata.ErrUncompressed},
		"missing":      {rename: "#X", want: metadata.ErrStreamNotFound},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			data, _ := metadataBytes(t, fixture)
			data = append([]byte(nil), data...)
			i := bytes.Index(data, []byte("#~\x00"))
			require.Positive(t, i)
			copy(data[i:], tc.rename)

			root, err := metadata.ParseRoot(data)
			require.NoError(t, err)
			_, err = metadata.ParseTables(root)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTypeDefs(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data, _ := metadataBytes(t, fixture)
	tables := parse(t, data)

	types, err := tables.TypeDefs()
	require.NoError(err)
	require.Len(types, 3)

	assert.Equal("<Module>", types[0].Name)
	assert.Empty(types[0].Methods)

	assert.Equal("Meter", types[1].Name)
	assert.Equal("Game.UI", types[1].Namespace)
	assert.Equal([]uint32{1, 2}, types[1].Methods)
	assert.Equal("Game.UI.Meter", metadata.FullName(types, 2))

	assert.Equal(uint32(2), types[2].Enclosing)
	assert.Equal([]uint32{3}, types[2].Methods)
	assert.Equal("Game.UI.Meter/Inner", metadata.FullName(types, 3))
}

func TestMethodDefs(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data, layout := metadataBytes(t, fixture)
	tables := parse(t, data)

	methods, err := tables.MethodDefs()
	require.NoError(err)
	require.Len(methods, 3)

	assert.Equal("SetValue", methods[0].Name)
	assert.Equal(layout.BodyRVA["Meter::SetValue"], methods[0].RVA)
	assert.True(methods[0].HasBody())
	assert.Equal([]byte{0x20, 0x00, 0x01}, methods[0].Signature)

	assert.Equal("Reset", methods[1].Name)
	assert.Equal(layout.BodyRVA["Meter::Reset"], methods[1].RVA)

	assert.Equal("Abstract", methods[2].Name)
	assert.Zero(methods[2].RVA)
	assert.False(methods[2].HasBody())
}

func TestAssembly(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data, _ := metadataBytes(t, fixture)
	tables := parse(t, data)

	asm, ok, err := tables.Assembly()
	require.NoError(err)
	require.True(ok)
	assert.Equal("Game", asm.Name)
	assert.Equal("1.2.3.4", metadata.VersionString(asm.Version))

	refs, err := tables.AssemblyRefs()
	require.NoError(err)
	require.Len(refs, 2)
	assert.Equal("UnityEngine", refs[0].Name)
	assert.Empty(refs[0].PublicKeyOrToken)
	assert.Equal("mscorlib", refs[1].Name)
	assert.Equal("2.0.5.0", metadata.VersionString(refs[1].Version))
	assert.Equal([]byte{0xb7, 0x7a, 0x5c, 0x56, 0x19, 0x34, 0xe0, 0x89}, refs[1].PublicKeyOrToken)
}

func TestMemberName(t *testing.T) {
	data, _ := metadataBytes(t, fixture)
	tables := parse(t, data)

	name, err := tables.MemberName(metadata.MemberRef, 1)
	require.NoError(t, err)
	assert.Equal(t, "UnityEngine.Mathf::Lerp", name)

	name, err = tables.MemberName(metadata.MethodDef, 2)
	require.NoError(t, err)
	assert.Equal(t, "Game.UI.Meter::Reset", name)

	_, err = tables.MemberName(metadata.MemberRef, 9)
	assert.ErrorIs(t, err, metadata.ErrRowRange)
}

func TestSetMethodRVA(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data, _ := metadataBytes(t, fixture)
	data = append([]byte(nil), data...)
	tables := parse(t, data)

	require.NoError(tables.SetMethodRVA(2, 0x4000))
	m, err := tables.MethodDefAt(2)
	require.NoError(err)
	assert.Equal(uint32(0x4000), m.RVA)

	off, err := tables.MethodRVAOffset(2)
	require.NoError(err)
	abs := int(tables.Stream.Offset) + off
	assert.Equal(uint32(0x4000), binary.LittleEndian.Uint32(data[abs:]))

	assert.ErrorIs(tables.SetMethodRVA(4, 0), metadata.ErrRowRange)
	assert.ErrorIs(tables.SetMethodRVA(0, 0), metadata.ErrRowRange)
}

func TestCell_TooWide(t *testing.T) {
	data, _ := metadataBytes(t, fixture)
	tables := parse(t, data)
	// MethodDef column 1 is the two byte ImplFlags.
	assert.ErrorContains(t, tables.SetCell(metadata.MethodDef, 1, 1, 0x10000), "too wide")
}

func TestCodedIndex_Decode(t *testing.T) {
	assert := assert.New(t)

	id, row, err := metadata.TypeDefOrRef.Decode(0x09)
	assert.NoError(err)
	assert.Equal(metadata.TypeRef, id)
	assert.Equal(uint32(2), row)

	id, row, err = metadata.ResolutionScope.Decode(1<<2 | 2)
	assert.NoError(err)
	assert.Equal(metadata.AssemblyRef, id)
	assert.Equal(uint32(1), row)

	_, _, err = metadata.CustomAttributeType.Decode(0)
	assert.ErrorIs(err, metadata.ErrBadIndex)
	_, _, err = metadata.TypeDefOrRef.Decode(3)
	assert.ErrorIs(err, metadata.ErrBadIndex)
}

func TestCompressedUint(t *testing.T) {
	tests := map[string]struct {
		value uint32
		size  int
	}{
		"one byte":   {0x7f, 1},
		"two bytes":  {0x80, 2},
		"two max":    {0x3fff, 2},
		"four bytes": {0x4000, 4},
		"largest":    {0x1fffffff, 4},
		"zero":       {0, 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			b := metadata.CompressUint(tc.value)
			assert.Len(t, b, tc.size)
			v, n, err := metadata.DecompressUint(b)
			assert.NoError(t, err)
			assert.Equal(t, tc.size, n)
			assert.Equal(t, tc.value, v)
		})
	}

	_, _, err := metadata.DecompressUint([]byte{0xe0})
	assert.ErrorIs(t, err, metadata.ErrBadIndex)
	_, _, err = metadata.DecompressUint([]byte{0xc0, 0x00})
	assert.ErrorIs(t, err, metadata.ErrTruncated)
}

func TestHeaps(t *testing.T) {
	assert := assert.New(t)

	strs := metadata.StringHeap("\x00abc\x00de")
	s, err := strs.At(1)
	assert.NoError(err)
	assert.Equal("abc", s)
	_, err = strs.At(5)
	assert.ErrorIs(err, metadata.ErrTruncated)
	_, err = strs.At(50)
	assert.ErrorIs(err, metadata.ErrBadIndex)

	blobs := metadata.BlobHeap{0x00, 0x02, 0xaa, 0xbb, 0x05, 0x01}
	b, err := blobs.At(1)
	assert.NoError(err)
	assert.Equal([]byte{0xaa, 0xbb}, b)
	_, err = blobs.At(4)
	assert.ErrorIs(err, metadata.ErrTruncated)

	us := metadata.UserStringHeap{0x00, 0x05, 'h', 0x00, 'i', 0x00, 0x00}
	s, err = us.At(1)
	assert.NoError(err)
	assert.Equal("hi", s)

	guids := metadata.GUIDHeap(make([]byte, 16))
	_, err = guids.At(1)
	assert.NoError(err)
	_, err = guids.At(2)
	assert.ErrorIs(err, metadata.ErrBadIndex)
}

func TestOpen(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data, layout := fixture.Build()
	m, err := metadata.Open(data)
	require.NoError(err)
	assert.Equal(int(layout.MetadataRVA-testasm.TextRVA+testasm.TextOffset), m.Offset)
	assert.True(m.CLR.IsILOnly())

	off, err := m.MethodRVAOffset(1)
	require.NoError(err)
	assert.Equal(layout.BodyRVA["Meter::SetValue"], binary.LittleEndian.Uint32(data[off:]))

	_, err = metadata.Open([]byte("MZ"))
	assert.Error(err)
}

func TestTableID_String(t *testing.T) {
	tests := map[string]struct {
		id   metadata.TableID
		want string
	}{
		"method":   {metadata.MethodDef, "MethodDef"},
		"file":     {metadata.FileTable, "File"},
		"out":      {metadata.TableID(0x40), "table(0x40)"},
		"assembly": {metadata.Assembly, "Assembly"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.id.String())
		})
	}
	assert.Equal(t, metadata.TableID(0x26), metadata.FileTable)

	id, row, err := metadata.Implementation.Decode(3<<2 | 0)
	require.NoError(t, err)
	assert.Equal(t, metadata.FileTable, id)
	assert.Equal(t, uint32(3), row)
}
