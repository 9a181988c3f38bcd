package onode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	MaxOIAttrLength = 256 // inline object-info attribute
	MaxSSAttrLength = 128 // inline snapset attribute
)

// RootRef points at the root of an auxiliary tree (omap, xattrs).
type RootRef struct {
	Addr  uint64
	Depth uint32
}

// ReservedRange is the logical address range reserved for object data.
type ReservedRange struct {
	Addr uint64
	Len  uint32
}

// Layout is the fixed-size metadata record stored as an onode tree value.
type Layout struct {
	Size       uint64
	Mtime      int64
	Ctime      int64
	OIAttrLen  uint16
	SSAttrLen  uint16
	OmapRoot   RootRef
	XattrRoot  RootRef
	ObjectData ReservedRange
	OIAttr     [MaxOIAttrLength]byte
	SSAttr     [MaxSSAttrLength]byte
}

// LayoutSize is the encoded size of a Layout and the value size of every
// onode tree entry.
var LayoutSize = binary.Size(Layout{})

// MarshalBinary encodes l into exactly LayoutSize bytes.
func (l *Layout) MarshalBinary() ([]byte, error) {
	if err := l.checkAttrLens(); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, LayoutSize))
	if err := binary.Write(buf, binary.LittleEndian, l); err != nil {
		return nil, fmt.Errorf("encode onode layout: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a LayoutSize-byte record. l is left untouched
// when the record is rejected.
func (l *Layout) UnmarshalBinary(data []byte) error {
	if len(data) != LayoutSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrValueSize, len(data), LayoutSize)
	}
	var decoded Layout
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &decoded); err != nil {
		return fmt.Errorf("decode onode layout: %w", err)
	}
	if err := decoded.checkAttrLens(); err != nil {
		return err
	}
	*l = decoded
	return nil
}

func (l *Layout) checkAttrLens() error {
	if l.OIAttrLen > MaxOIAttrLength {
		return fmt.Errorf("%w: object info attr length %d exceeds %d", ErrValueSize, l.OIAttrLen, MaxOIAttrLength)
	}
	if l.SSAttrLen > MaxSSAttrLength {
		return fmt.Errorf("%w: snapset attr length %d exceeds %d", ErrValueSize, l.SSAttrLen, MaxSSAttrLength)
	}
	return nil
}

// OI returns the populated part of the object-info attribute.
func (l *Layout) OI() []byte { return l.OIAttr[:min(int(l.OIAttrLen), MaxOIAttrLength)] }

// SS returns the populated part of the snapset attribute.
func (l *Layout) SS() []byte { return l.SSAttr[:min(int(l.SSAttrLen), MaxSSAttrLength)] }

func (l *Layout) SetOIAttr(b []byte) error {
	if len(b) > MaxOIAttrLength {
		return fmt.Errorf("%w: object info attr is %d bytes, limit %d", ErrValueTooLarge, len(b), MaxOIAttrLength)
	}
	l.OIAttr = [MaxOIAttrLength]byte{}
	l.OIAttrLen = uint16(copy(l.OIAttr[:], b))
	return nil
}

func (l *Layout) SetSSAttr(b []byte) error {
	if len(b) > MaxSSAttrLength {
		return fmt.Errorf("%w: snapset attr is %d bytes, limit %d", ErrValueTooLarge, len(b), MaxSSAttrLength)
	}
	l.SSAttr = [MaxSSAttrLength]byte{}
	l.SSAttrLen = uint16(copy(l.SSAttr[:], b))
	return nil
}
