package metadata

import (
	"fmt"
	"strings"
)

// Method attribute and implementation flags.
const (
	MethodAbstract         = 0x0400
	MethodPinvokeImpl      = 0x2000
	MethodImplCodeTypeMask = 0x0003
	MethodImplNative       = 0x0001
	MethodImplRuntime      = 0x0003
	MethodImplInternal     = 0x1000
)

const maxNesting = 64

// TypeDefRow is one row of the TypeDef table. Methods holds the one-based
// MethodDef rows owned by the type.
type TypeDefRow struct {
	Row       uint32
	Flags     uint32
	Name      string
	Namespace string
	Extends   uint32

	// Enclosing is the TypeDef row of the enclosing type, or zero.
	Enclosing uint32

	Methods []uint32
}

// MethodDefRow is one row of the MethodDef table.
type MethodDefRow struct {
	Row       uint32
	RVA       uint32
	ImplFlags uint16
	Flags     uint16
	Name      string
	Signature []byte
}

// HasBody reports whether the method should carry IL.
func (m MethodDefRow) HasBody() bool {
	if m.RVA == 0 || m.Flags&(MethodAbstract|MethodPinvokeImpl) != 0 {
		return false
	}
	switch m.ImplFlags & MethodImplCodeTypeMask {
	case MethodImplNative, MethodImplRuntime:
		return false
	}
	return m.ImplFlags&MethodImplInternal == 0
}

// AssemblyRow is the single row of the Assembly table.
type AssemblyRow struct {
	HashAlgID uint32
	Version   [4]uint16
	Flags     uint32
	PublicKey []byte
	Name      string
	Culture   string
}

// AssemblyRefRow is one row of the AssemblyRef table.
type AssemblyRefRow struct {
	Row              uint32
	Version          [4]uint16
	Flags            uint32
	PublicKeyOrToken []byte
	Name             string
	Culture          string
}

// VersionString formats a four part assembly version.
func VersionString(v [4]uint16) string {
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

// TypeDefs returns every type definition in table order, with method ranges
// and enclosing types resolved.
func (t *Tables) TypeDefs() ([]TypeDefRow, error) {
	n := uint32(t.RowCount(TypeDef))
	methods := uint32(t.RowCount(MethodDef))
	out := make([]TypeDefRow, n)

	for row := uint32(1); row <= n; row++ {
		td := &out[row-1]
		td.Row = row
		var err error
		if td.Flags, err = t.Cell(TypeDef, row, colTypeDefFlags); err != nil {
			return nil, err
		}
		if td.Name, err = t.readString(TypeDef, row, colTypeDefName); err != nil {
			return nil, err
		}
		if td.Namespace, err = t.readString(TypeDef, row, colTypeDefNamespace); err != nil {
			return nil, err
		}
		if td.Extends, err = t.Cell(TypeDef, row, colTypeDefExtends); err != nil {
			return nil, err
		}

		first, err := t.Cell(TypeDef, row, colTypeDefMethodList)
		if err != nil {
			return nil, err
		}
		end := methods + 1
		if row < n {
			if end, err = t.Cell(TypeDef, row+1, colTypeDefMethodList); err != nil {
				return nil, err
			}
		}
		if first == 0 || end > methods+1 {
			return nil, fmt.Errorf("TypeDef row %d method list %d..%d: %w", row, first, end, ErrBadIndex)
		}
		for m := first; m < end; m++ {
			td.Methods = append(td.Methods, m)
		}
	}

	for row := uint32(1); row <= uint32(t.RowCount(NestedClass)); row++ {
		nested, err := t.Cell(NestedClass, row, colNestedNested)
		if err != nil {
			return nil, err
		}
		enclosing, err := t.Cell(NestedClass, row, colNestedEnclosing)
		if err != nil {
			return nil, err
		}
		if nested == 0 || nested > n || enclosing > n {
			return nil, fmt.Errorf("NestedClass row %d: %w", row, ErrBadIndex)
		}
		out[nested-1].Enclosing = enclosing
	}
	return out, nil
}

// FullName returns the type's full name. Nested types are joined to their
// enclosing type with a slash.
func FullName(types []TypeDefRow, row uint32) string {
	var parts []string
	for seen := 0; row != 0 && int(row) <= len(types) && seen <= len(types); seen++ {
		td := types[row-1]
		if td.Enclosing == 0 && td.Namespace != "" {
			parts = append(parts, td.Namespace+"."+td.Name)
		} else {
			parts = append(parts, td.Name)
		}
		row = td.Enclosing
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// MethodDefAt reads one MethodDef row.
func (t *Tables) MethodDefAt(row uint32) (MethodDefRow, error) {
	m := MethodDefRow{Row: row}
	rva, err := t.Cell(MethodDef, row, colMethodDefRVA)
	if err != nil {
		return m, err
	}
	m.RVA = rva
	impl, err := t.Cell(MethodDef, row, colMethodDefImpl)
	if err != nil {
		return m, err
	}
	m.ImplFlags = uint16(impl)
	flags, err := t.Cell(MethodDef, row, colMethodDefFlag)
	if err != nil {
		return m, err
	}
	m.Flags = uint16(flags)
	if m.Name, err = t.readString(MethodDef, row, colMethodDefName); err != nil {
		return m, err
	}
	if m.Signature, err = t.readBlob(MethodDef, row, colMethodDefSig); err != nil {
		return m, err
	}
	return m, nil
}

// MethodDefs returns every method definition in table order.
func (t *Tables) MethodDefs() ([]MethodDefRow, error) {
	n := uint32(t.RowCount(MethodDef))
	out := make([]MethodDefRow, 0, n)
	for row := uint32(1); row <= n; row++ {
		m, err := t.MethodDefAt(row)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Assembly returns the module's assembly definition. The boolean is false
// for modules without an Assembly row, such as netmodules.
func (t *Tables) Assembly() (AssemblyRow, bool, error) {
	var a AssemblyRow
	if t.RowCount(Assembly) == 0 {
		return a, false, nil
	}
	cells := make([]uint32, 6)
	for i := range cells {
		v, err := t.Cell(Assembly, 1, i)
		if err != nil {
			return a, false, err
		}
		cells[i] = v
	}
	a.HashAlgID = cells[0]
	a.Version = [4]uint16{uint16(cells[1]), uint16(cells[2]), uint16(cells[3]), uint16(cells[4])}
	a.Flags = cells[5]

	var err error
	if a.PublicKey, err = t.readBlob(Assembly, 1, 6); err != nil {
		return a, false, err
	}
	if a.Name, err = t.readString(Assembly, 1, 7); err != nil {
		return a, false, err
	}
	if a.Culture, err = t.readString(Assembly, 1, 8); err != nil {
		return a, false, err
	}
	return a, true, nil
}

// AssemblyRefs returns every assembly reference in table order.
func (t *Tables) AssemblyRefs() ([]AssemblyRefRow, error) {
	n := uint32(t.RowCount(AssemblyRef))
	out := make([]AssemblyRefRow, 0, n)
	for row := uint32(1); row <= n; row++ {
		r := AssemblyRefRow{Row: row}
		for i := 0; i < 4; i++ {
			v, err := t.Cell(AssemblyRef, row, i)
			if err != nil {
				return nil, err
			}
			r.Version[i] = uint16(v)
		}
		var err error
		if r.Flags, err = t.Cell(AssemblyRef, row, 4); err != nil {
			return nil, err
		}
		if r.PublicKeyOrToken, err = t.readBlob(AssemblyRef, row, 5); err != nil {
			return nil, err
		}
		if r.Name, err = t.readString(AssemblyRef, row, 6); err != nil {
			return nil, err
		}
		if r.Culture, err = t.readString(AssemblyRef, row, 7); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// MemberName returns a readable name for a method or field token target:
// "Type::Name" for MemberRef and MethodDef rows.
func (t *Tables) MemberName(table TableID, row uint32) (string, error) {
	switch table {
	case MethodDef:
		m, err := t.MethodDefAt(row)
		if err != nil {
			return "", err
		}
		types, err := t.TypeDefs()
		if err != nil {
			return "", err
		}
		for _, td := range types {
			for _, r := range td.Methods {
				if r == row {
					return FullName(types, td.Row) + "::" + m.Name, nil
				}
			}
		}
		return m.Name, nil
	case MemberRef:
		name, err := t.readString(MemberRef, row, colMemberRefName)
		if err != nil {
			return "", err
		}
		class, err := t.Cell(MemberRef, row, colMemberRefClass)
		if err != nil {
			return "", err
		}
		parent, prow, err := MemberRefParent.Decode(class)
		if err != nil {
			return "", err
		}
		if parent == TypeRef {
			owner, err := t.typeRefName(prow, 0)
			if err != nil {
				return "", err
			}
			return owner + "::" + name, nil
		}
		return name, nil
	}
	return "", fmt.Errorf("%s: %w", table, ErrBadIndex)
}

func (t *Tables) typeRefName(row uint32, depth int) (string, error) {
	name, err := t.readString(TypeRef, row, colTypeRefName)
	if err != nil {
		return "", err
	}
	ns, err := t.readString(TypeRef, row, colTypeRefNamespace)
	if err != nil {
		return "", err
	}
	if ns != "" {
		name = ns + "." + name
	}
	scope, err := t.Cell(TypeRef, row, colTypeRefScope)
	if err != nil {
		return "", err
	}
	if id, outer, err := ResolutionScope.Decode(scope); err == nil && id == TypeRef && depth < maxNesting {
		enclosing, err := t.typeRefName(outer, depth+1)
		if err != nil {
			return "", err
		}
		return enclosing + "/" + name, nil
	}
	return name, nil
}
