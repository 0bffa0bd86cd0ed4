package container

import (
	"fmt"

	"github.com/pboyd/ilpatch/cil"
	"github.com/pboyd/ilpatch/metadata"
)

// Type is a type defined by the module.
type Type struct {
	Row       uint32
	Namespace string
	Name      string

	// FullName is the namespace qualified name. Nested types are joined to
	// their enclosing type with "/".
	FullName string

	Methods []*Method
}

// Method is a method defined by a type.
type Method struct {
	Row       uint32
	Name      string
	RVA       uint32
	Flags     uint16
	ImplFlags uint16
	Token     cil.Token

	Type *Type

	hasBody bool
	body    *cil.MethodBody

	// size is the length of the body on disk. loaded is the body encoded
	// right after decoding; Commit rewrites only bodies that no longer
	// encode the same.
	size   int
	loaded []byte
}

// String returns "Type::Method".
func (m *Method) String() string {
	return m.Type.FullName + "::" + m.Name
}

// HasBody reports whether the method has an IL body.
func (m *Method) HasBody() bool { return m.hasBody }

func readTypes(t *metadata.Tables) ([]*Type, error) {
	rows, err := t.TypeDefs()
	if err != nil {
		return nil, err
	}

	types := make([]*Type, 0, len(rows))
	for _, row := range rows {
		typ := &Type{
			Row:       row.Row,
			Namespace: row.Namespace,
			Name:      row.Name,
			FullName:  metadata.FullName(rows, row.Row),
		}
		for _, mrow := range row.Methods {
			def, err := t.MethodDefAt(mrow)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", typ.FullName, err)
			}
			typ.Methods = append(typ.Methods, &Method{
				Row:       def.Row,
				Name:      def.Name,
				RVA:       def.RVA,
				Flags:     def.Flags,
				ImplFlags: def.ImplFlags,
				Token:     cil.Token(uint32(metadata.MethodDef)<<24 | def.Row),
				Type:      typ,
				hasBody:   def.HasBody(),
			})
		}
		types = append(types, typ)
	}
	return types, nil
}

// Types returns every type in TypeDef table order, including <Module>.
func (c *Container) Types() []*Type { return c.types }

// Type returns the type with the given full name.
func (c *Container) Type(fullName string) (*Type, error) {
	for _, t := range c.types {
		if t.FullName == fullName {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", fullName, ErrTypeNotFound)
}

// Method returns the first method of t named name, in table order.
func (t *Type) Method(name string) (*Method, error) {
	for _, m := range t.Methods {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%s::%s: %w", t.FullName, name, ErrMethodNotFound)
}

// FindMethod locates a method by exact type full name and method name. The
// first method with the name wins; signatures are not compared.
func (c *Container) FindMethod(typeName, methodName string) (*Method, error) {
	t, err := c.Type(typeName)
	if err != nil {
		return nil, err
	}
	return t.Method(methodName)
}

// Body returns the decoded body of m. The same body is returned on every
// call, and edits made to it are written by Commit.
func (c *Container) Body(m *Method) (*cil.MethodBody, error) {
	if m.body != nil {
		return m.body, nil
	}
	if !m.hasBody || m.RVA == 0 {
		return nil, fmt.Errorf("%s: %w", m, ErrNoBody)
	}

	raw, err := c.mod.Image.At(m.RVA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}
	body, size, err := cil.DecodeBody(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}
	loaded, err := body.Encode()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}

	m.body = body
	m.size = size
	m.loaded = loaded
	return body, nil
}

// MethodBody locates a method and returns its body.
func (c *Container) MethodBody(typeName, methodName string) (*cil.MethodBody, error) {
	m, err := c.FindMethod(typeName, methodName)
	if err != nil {
		return nil, err
	}
	return c.Body(m)
}
