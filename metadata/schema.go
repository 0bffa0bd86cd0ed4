package metadata

import "fmt"

// TableID identifies a metadata table.
type TableID uint8

const (
	Module                 TableID = 0x00
	TypeRef                TableID = 0x01
	TypeDef                TableID = 0x02
	FieldPtr               TableID = 0x03
	Field                  TableID = 0x04
	MethodPtr              TableID = 0x05
	MethodDef              TableID = 0x06
	ParamPtr               TableID = 0x07
	Param                  TableID = 0x08
	InterfaceImpl          TableID = 0x09
	MemberRef              TableID = 0x0a
	Constant               TableID = 0x0b
	CustomAttribute        TableID = 0x0c
	FieldMarshal           TableID = 0x0d
	DeclSecurity           TableID = 0x0e
	ClassLayout            TableID = 0x0f
	FieldLayout            TableID = 0x10
	StandAloneSig          TableID = 0x11
	EventMap               TableID = 0x12
	EventPtr               TableID = 0x13
	Event                  TableID = 0x14
	PropertyMap            TableID = 0x15
	PropertyPtr            TableID = 0x16
	Property               TableID = 0x17
	MethodSemantics        TableID = 0x18
	MethodImpl             TableID = 0x19
	ModuleRef              TableID = 0x1a
	TypeSpec               TableID = 0x1b
	ImplMap                TableID = 0x1c
	FieldRVA               TableID = 0x1d
	EncLog                 TableID = 0x1e
	EncMap                 TableID = 0x1f
	Assembly               TableID = 0x20
	AssemblyProcessor      TableID = 0x21
	AssemblyOS             TableID = 0x22
	AssemblyRef            TableID = 0x23
	AssemblyRefProcessor   TableID = 0x24
	AssemblyRefOS          TableID = 0x25
	FileTable              TableID = 0x26
	ExportedType           TableID = 0x27
	ManifestResource       TableID = 0x28
	NestedClass            TableID = 0x29
	GenericParam           TableID = 0x2a
	MethodSpec             TableID = 0x2b
	GenericParamConstraint TableID = 0x2c

	numTables = 0x2d
	noTable   = TableID(0xff)
)

func (id TableID) String() string {
	if int(id) < len(schema) {
		return schema[id].name
	}
	return fmt.Sprintf("table(0x%02x)", uint8(id))
}

// CodedIndex is a column kind that can reference rows of several tables.
type CodedIndex uint8

const (
	TypeDefOrRef CodedIndex = iota
	HasConstant
	HasCustomAttribute
	HasFieldMarshal
	HasDeclSecurity
	MemberRefParent
	HasSemantics
	MethodDefOrRef
	MemberForwarded
	Implementation
	CustomAttributeType
	ResolutionScope
	TypeOrMethodDef
)

type codedInfo struct {
	bits   uint
	tables []TableID
}

var codedIndexes = [...]codedInfo{
	TypeDefOrRef: {2, []TableID{TypeDef, TypeRef, TypeSpec}},
	HasConstant:  {2, []TableID{Field, Param, Property}},
	HasCustomAttribute: {5, []TableID{
		MethodDef, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef,
		Module, DeclSecurity, Property, Event, StandAloneSig, ModuleRef,
		TypeSpec, Assembly, AssemblyRef, FileTable, ExportedType, ManifestResource,
		GenericParam, GenericParamConstraint, MethodSpec,
	}},
	HasFieldMarshal:     {1, []TableID{Field, Param}},
	HasDeclSecurity:     {2, []TableID{TypeDef, MethodDef, Assembly}},
	MemberRefParent:     {3, []TableID{TypeDef, TypeRef, ModuleRef, MethodDef, TypeSpec}},
	HasSemantics:        {1, []TableID{Event, Property}},
	MethodDefOrRef:      {1, []TableID{MethodDef, MemberRef}},
	MemberForwarded:     {1, []TableID{Field, MethodDef}},
	Implementation:      {2, []TableID{FileTable, AssemblyRef, ExportedType}},
	CustomAttributeType: {3, []TableID{noTable, noTable, MethodDef, MemberRef, noTable}},
	ResolutionScope:     {2, []TableID{Module, ModuleRef, AssemblyRef, TypeRef}},
	TypeOrMethodDef:     {1, []TableID{TypeDef, MethodDef}},
}

// Decode splits a coded index value into its table and one-based row.
func (c CodedIndex) Decode(v uint32) (TableID, uint32, error) {
	info := codedIndexes[c]
	tag := v & (1<<info.bits - 1)
	if int(tag) >= len(info.tables) || info.tables[tag] == noTable {
		return noTable, 0, fmt.Errorf("coded index tag %d: %w", tag, ErrBadIndex)
	}
	return info.tables[tag], v >> info.bits, nil
}

type columnKind uint8

const (
	fixed1 columnKind = iota
	fixed2
	fixed4
	stringIndex
	guidIndex
	blobIndex
	tableIndex
	codedIndex
)

type column struct {
	name  string
	kind  columnKind
	table TableID
	coded CodedIndex
}

func u8(name string) column   { return column{name: name, kind: fixed1} }
func u16(name string) column  { return column{name: name, kind: fixed2} }
func u32(name string) column  { return column{name: name, kind: fixed4} }
func str(name string) column  { return column{name: name, kind: stringIndex} }
func guid(name string) column { return column{name: name, kind: guidIndex} }
func blob(name string) column { return column{name: name, kind: blobIndex} }

func index(name string, table TableID) column {
	return column{name: name, kind: tableIndex, table: table}
}

func coded(name string, c CodedIndex) column {
	return column{name: name, kind: codedIndex, coded: c}
}

type tableSchema struct {
	name    string
	columns []column
}

var schema = [numTables]tableSchema{
	Module:    {"Module", []column{u16("Generation"), str("Name"), guid("Mvid"), guid("EncId"), guid("EncBaseId")}},
	TypeRef:   {"TypeRef", []column{coded("ResolutionScope", ResolutionScope), str("TypeName"), str("TypeNamespace")}},
	TypeDef:   {"TypeDef", []column{u32("Flags"), str("TypeName"), str("TypeNamespace"), coded("Extends", TypeDefOrRef), index("FieldList", Field), index("MethodList", MethodDef)}},
	FieldPtr:  {"FieldPtr", []column{index("Field", Field)}},
	Field:     {"Field", []column{u16("Flags"), str("Name"), blob("Signature")}},
	MethodPtr: {"MethodPtr", []column{index("Method", MethodDef)}},
	MethodDef: {"MethodDef", []column{u32("RVA"), u16("ImplFlags"), u16("Flags"), str("Name"), blob("Signature"), index("ParamList", Param)}},
	ParamPtr:  {"ParamPtr", []column{index("Param", Param)}},
	Param:     {"Param", []column{u16("Flags"), u16("Sequence"), str("Name")}},

	InterfaceImpl:   {"InterfaceImpl", []column{index("Class", TypeDef), coded("Interface", TypeDefOrRef)}},
	MemberRef:       {"MemberRef", []column{coded("Class", MemberRefParent), str("Name"), blob("Signature")}},
	Constant:        {"Constant", []column{u8("Type"), u8("Padding"), coded("Parent", HasConstant), blob("Value")}},
	CustomAttribute: {"CustomAttribute", []column{coded("Parent", HasCustomAttribute), coded("Type", CustomAttributeType), blob("Value")}},
	FieldMarshal:    {"FieldMarshal", []column{coded("Parent", HasFieldMarshal), blob("NativeType")}},
	DeclSecurity:    {"DeclSecurity", []column{u16("Action"), coded("Parent", HasDeclSecurity), blob("PermissionSet")}},
	ClassLayout:     {"ClassLayout", []column{u16("PackingSize"), u32("ClassSize"), index("Parent", TypeDef)}},
	FieldLayout:     {"FieldLayout", []column{u32("Offset"), index("Field", Field)}},
	StandAloneSig:   {"StandAloneSig", []column{blob("Signature")}},
	EventMap:        {"EventMap", []column{index("Parent", TypeDef), index("EventList", Event)}},
	EventPtr:        {"EventPtr", []column{index("Event", Event)}},
	Event:           {"Event", []column{u16("EventFlags"), str("Name"), coded("EventType", TypeDefOrRef)}},
	PropertyMap:     {"PropertyMap", []column{index("Parent", TypeDef), index("PropertyList", Property)}},
	PropertyPtr:     {"PropertyPtr", []column{index("Property", Property)}},
	Property:        {"Property", []column{u16("Flags"), str("Name"), blob("Type")}},
	MethodSemantics: {"MethodSemantics", []column{u16("Semantics"), index("Method", MethodDef), coded("Association", HasSemantics)}},
	MethodImpl:      {"MethodImpl", []column{index("Class", TypeDef), coded("MethodBody", MethodDefOrRef), coded("MethodDeclaration", MethodDefOrRef)}},
	ModuleRef:       {"ModuleRef", []column{str("Name")}},
	TypeSpec:        {"TypeSpec", []column{blob("Signature")}},
	ImplMap:         {"ImplMap", []column{u16("MappingFlags"), coded("MemberForwarded", MemberForwarded), str("ImportName"), index("ImportScope", ModuleRef)}},
	FieldRVA:        {"FieldRVA", []column{u32("RVA"), index("Field", Field)}},
	EncLog:          {"EncLog", []column{u32("Token"), u32("FuncCode")}},
	EncMap:          {"EncMap", []column{u32("Token")}},

	Assembly:             {"Assembly", []column{u32("HashAlgId"), u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"), u32("Flags"), blob("PublicKey"), str("Name"), str("Culture")}},
	AssemblyProcessor:    {"AssemblyProcessor", []column{u32("Processor")}},
	AssemblyOS:           {"AssemblyOS", []column{u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion")}},
	AssemblyRef:          {"AssemblyRef", []column{u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"), u32("Flags"), blob("PublicKeyOrToken"), str("Name"), str("Culture"), blob("HashValue")}},
	AssemblyRefProcessor: {"AssemblyRefProcessor", []column{u32("Processor"), index("AssemblyRef", AssemblyRef)}},
	AssemblyRefOS:        {"AssemblyRefOS", []column{u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion"), index("AssemblyRef", AssemblyRef)}},
	FileTable:            {"File", []column{u32("Flags"), str("Name"), blob("HashValue")}},
	ExportedType:         {"ExportedType", []column{u32("Flags"), u32("TypeDefId"), str("TypeName"), str("TypeNamespace"), coded("Implementation", Implementation)}},
	ManifestResource:     {"ManifestResource", []column{u32("Offset"), u32("Flags"), str("Name"), coded("Implementation", Implementation)}},
	NestedClass:          {"NestedClass", []column{index("NestedClass", TypeDef), index("EnclosingClass", TypeDef)}},

	GenericParam:           {"GenericParam", []column{u16("Number"), u16("Flags"), coded("Owner", TypeOrMethodDef), str("Name")}},
	MethodSpec:             {"MethodSpec", []column{coded("Method", MethodDefOrRef), blob("Instantiation")}},
	GenericParamConstraint: {"GenericParamConstraint", []column{index("Owner", GenericParam), coded("Constraint", TypeDefOrRef)}},
}

// Column indexes used by the typed readers.
const (
	colTypeDefFlags      = 0
	colTypeDefName       = 1
	colTypeDefNamespace  = 2
	colTypeDefExtends    = 3
	colTypeDefFieldList  = 4
	colTypeDefMethodList = 5

	colMethodDefRVA  = 0
	colMethodDefImpl = 1
	colMethodDefFlag = 2
	colMethodDefName = 3
	colMethodDefSig  = 4

	colMemberRefClass = 0
	colMemberRefName  = 1

	colTypeRefScope     = 0
	colTypeRefName      = 1
	colTypeRefNamespace = 2

	colNestedNested    = 0
	colNestedEnclosing = 1
)
