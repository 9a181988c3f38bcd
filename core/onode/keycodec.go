package onode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encoded keys compare with bytes.Compare in the same order Compare gives
// their identifiers. The leading byte separates ordinary keys from the max
// sentinel.
const (
	keyPrefixObject byte = 0x01
	keyPrefixMax    byte = 0x02

	stringEscape     byte = 0x00
	stringEscapedNul byte = 0xFF
	stringTerminator byte = 0x01
)

// EncodeKey returns the order-preserving tree key for oid.
func EncodeKey(oid ObjectID) []byte {
	if oid.max {
		return []byte{keyPrefixMax}
	}
	buf := make([]byte, 0, 1+1+8+4+len(oid.Namespace)+len(oid.Name)+4+8+8)
	buf = append(buf, keyPrefixObject)
	buf = append(buf, uint8(oid.Shard)^0x80)
	buf = binary.BigEndian.AppendUint64(buf, uint64(oid.Pool)^(1<<63))
	buf = binary.BigEndian.AppendUint32(buf, oid.Hash)
	buf = appendString(buf, oid.Namespace)
	buf = appendString(buf, oid.Name)
	buf = binary.BigEndian.AppendUint64(buf, oid.Snap)
	buf = binary.BigEndian.AppendUint64(buf, oid.Generation)
	return buf
}

func appendString(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == stringEscape {
			buf = append(buf, stringEscape, stringEscapedNul)
			continue
		}
		buf = append(buf, s[i])
	}
	return append(buf, stringEscape, stringTerminator)
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(key []byte) (ObjectID, error) {
	if len(key) == 0 {
		return ObjectID{}, fmt.Errorf("%w: empty key", ErrCorruptKey)
	}
	switch key[0] {
	case keyPrefixMax:
		if len(key) != 1 {
			return ObjectID{}, fmt.Errorf("%w: trailing bytes after max sentinel", ErrCorruptKey)
		}
		return MaxObjectID(), nil
	case keyPrefixObject:
	default:
		return ObjectID{}, fmt.Errorf("%w: unknown key prefix 0x%02x", ErrCorruptKey, key[0])
	}

	rest := key[1:]
	if len(rest) < 1+8+4 {
		return ObjectID{}, fmt.Errorf("%w: key too short (%d bytes)", ErrCorruptKey, len(key))
	}
	var oid ObjectID
	oid.Shard = int8(rest[0] ^ 0x80)
	oid.Pool = int64(binary.BigEndian.Uint64(rest[1:9]) ^ (1 << 63))
	oid.Hash = binary.BigEndian.Uint32(rest[9:13])
	rest = rest[13:]

	var err error
	if oid.Namespace, rest, err = readString(rest); err != nil {
		return ObjectID{}, err
	}
	if oid.Name, rest, err = readString(rest); err != nil {
		return ObjectID{}, err
	}
	if len(rest) != 16 {
		return ObjectID{}, fmt.Errorf("%w: expected 16 trailing bytes, got %d", ErrCorruptKey, len(rest))
	}
	oid.Snap = binary.BigEndian.Uint64(rest[:8])
	oid.Generation = binary.BigEndian.Uint64(rest[8:])
	return oid, nil
}

func readString(b []byte) (string, []byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(b); i++ {
		if b[i] != stringEscape {
			out.WriteByte(b[i])
			continue
		}
		if i+1 >= len(b) {
			return "", nil, fmt.Errorf("%w: truncated string escape", ErrCorruptKey)
		}
		switch b[i+1] {
		case stringTerminator:
			return out.String(), b[i+2:], nil
		case stringEscapedNul:
			out.WriteByte(0)
			i++
		default:
			return "", nil, fmt.Errorf("%w: bad string escape 0x%02x", ErrCorruptKey, b[i+1])
		}
	}
	return "", nil, fmt.Errorf("%w: unterminated string", ErrCorruptKey)
}
