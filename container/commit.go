package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pboyd/ilpatch/peimage"
)

const fatHeader = 0x3

// Commit writes every edited method body back to the file the container was
// opened from, replacing its contents.
//
// A new body overwrites the old one when it fits. Otherwise it goes into the
// unused tail of the section holding the old body, and failing that, at the
// end of a grown last section. The image is assembled in memory and only
// written once every body is placed. A container can be committed once.
func (c *Container) Commit() error {
	if c.committed {
		return ErrCommitted
	}
	if c.file == nil {
		return ErrClosed
	}
	if !c.mod.CLR.IsILOnly() {
		return fmt.Errorf("%s: %w", c.path, ErrMixedMode)
	}

	img, err := peimage.Parse(bytes.Clone(c.data))
	if err != nil {
		return fmt.Errorf("cannot parse container %s: %w", c.path, err)
	}

	var written []placement
	for _, t := range c.types {
		for _, m := range t.Methods {
			p, err := c.write(img, m)
			if err != nil {
				return fmt.Errorf("%s: %w", m, err)
			}
			if p != nil {
				written = append(written, *p)
			}
		}
	}
	img.UpdateCheckSum()

	if _, err := c.file.WriteAt(img.Data, 0); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	if err := c.file.Truncate(int64(len(img.Data))); err != nil {
		return fmt.Errorf("truncate %s: %w", c.path, err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", c.path, err)
	}

	for _, p := range written {
		p.method.RVA = p.rva
		p.method.size = len(p.encoded)
		p.method.loaded = p.encoded
	}
	c.data = img.Data
	c.committed = true
	c.log.Info("committed container",
		zap.String("path", c.path),
		zap.Int("methods", len(written)),
		zap.Int("size", len(img.Data)),
	)
	return nil
}

type placement struct {
	method  *Method
	rva     uint32
	encoded []byte
}

// write places the body of m in img if it changed and points the method at
// it. The result is nil for unchanged bodies.
func (c *Container) write(img *peimage.Image, m *Method) (*placement, error) {
	if m.body == nil {
		return nil, nil
	}
	encoded, err := m.body.Encode()
	if err != nil {
		return nil, err
	}
	if bytes.Equal(encoded, m.loaded) {
		return nil, nil
	}

	rva, off, err := c.place(img, m, encoded)
	if err != nil {
		return nil, err
	}
	copy(img.Data[off:], encoded)

	cell, err := c.mod.MethodRVAOffset(m.Row)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(img.Data[cell:], rva)

	c.log.Debug("placed method body",
		zap.String("method", m.String()),
		zap.Uint32("old_rva", m.RVA),
		zap.Uint32("rva", rva),
		zap.Int("old_size", m.size),
		zap.Int("size", len(encoded)),
	)
	return &placement{method: m, rva: rva, encoded: encoded}, nil
}

func (c *Container) place(img *peimage.Image, m *Method, encoded []byte) (uint32, int, error) {
	aligned := encoded[0]&0x3 != fatHeader || m.RVA%4 == 0
	if len(encoded) <= m.size && aligned {
		off, err := img.RVAToOffset(m.RVA)
		if err != nil {
			return 0, 0, err
		}
		clear(img.Data[off : off+m.size])
		return m.RVA, off, nil
	}

	n := uint32(len(encoded))
	s, err := img.Section(m.RVA)
	if err != nil {
		return 0, 0, err
	}
	rva, off, err := img.Reserve(s, n)
	if err == nil {
		return rva, off, nil
	}
	if !errors.Is(err, peimage.ErrNoRoom) {
		return 0, 0, err
	}
	c.log.Debug("section full, growing image", zap.String("section", s.Name), zap.Uint32("size", n))
	return img.Grow(n)
}
