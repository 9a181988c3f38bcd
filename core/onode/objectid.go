package onode

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	stringSizeBytes = 2 // on-tree length prefix of each variable-length key part

	// MaxNsOidLength bounds len(Namespace)+len(Name) of a key stored in the tree.
	MaxNsOidLength = 4096 - 2*stringSizeBytes
)

// ObjectID is the globally-qualified object identifier used as the onode
// tree's sort key. Fields are compared in declaration order.
type ObjectID struct {
	Shard      int8
	Pool       int64
	Hash       uint32
	Namespace  string
	Name       string
	Snap       uint64
	Generation uint64

	max bool
}

// MinObjectID returns the smallest identifier; no stored key sorts before it.
func MinObjectID() ObjectID {
	return ObjectID{Shard: math.MinInt8, Pool: math.MinInt64}
}

// MaxObjectID returns a sentinel that sorts after every stored key.
func MaxObjectID() ObjectID {
	return ObjectID{max: true}
}

// IsMax reports whether oid is the MaxObjectID sentinel.
func (oid ObjectID) IsMax() bool { return oid.max }

// Validate checks that oid may be stored: it is not the MAX sentinel and
// its variable-length parts fit the encoding bound.
func (oid ObjectID) Validate() error {
	if oid.max {
		return fmt.Errorf("%w: MAX is a listing bound", ErrInvalidKey)
	}
	if n := len(oid.Namespace) + len(oid.Name); n > MaxNsOidLength {
		return fmt.Errorf("%w: namespace+name is %d bytes, limit %d", ErrValueTooLarge, n, MaxNsOidLength)
	}
	return nil
}

// Compare orders identifiers lexicographically over their fields.
func Compare(a, b ObjectID) int {
	switch {
	case a.max && b.max:
		return 0
	case a.max:
		return 1
	case b.max:
		return -1
	}
	if c := cmp.Compare(a.Shard, b.Shard); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Pool, b.Pool); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Hash, b.Hash); c != 0 {
		return c
	}
	if c := strings.Compare(a.Namespace, b.Namespace); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Snap, b.Snap); c != 0 {
		return c
	}
	return cmp.Compare(a.Generation, b.Generation)
}

// String renders oid as shard:pool:hash:ns/name@snap.gen.
func (oid ObjectID) String() string {
	if oid.max {
		return "MAX"
	}
	return fmt.Sprintf("%d:%d:%08x:%s/%s@%d.%d",
		oid.Shard, oid.Pool, oid.Hash, oid.Namespace, oid.Name, oid.Snap, oid.Generation)
}

// ParseObjectID parses the String form, the short form "ns/name", or "MIN"/"MAX".
// A leading shard:pool:hash: is only taken as such when all three parse;
// otherwise the whole input is read as the short form. The namespace ends at
// the first '/', so a namespace containing '/' does not round-trip.
func ParseObjectID(s string) (ObjectID, error) {
	switch s {
	case "MAX":
		return MaxObjectID(), nil
	case "MIN":
		return MinObjectID(), nil
	}

	var oid ObjectID
	rest := s
	if parts := strings.SplitN(s, ":", 4); len(parts) == 4 {
		shard, err1 := strconv.ParseInt(parts[0], 10, 8)
		pool, err2 := strconv.ParseInt(parts[1], 10, 64)
		hash, err3 := strconv.ParseUint(parts[2], 16, 32)
		if err1 == nil && err2 == nil && err3 == nil {
			oid.Shard, oid.Pool, oid.Hash = int8(shard), pool, uint32(hash)
			rest = parts[3]
		}
	}

	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		snap, gen, ok := strings.Cut(rest[at+1:], ".")
		if ok {
			s1, err1 := strconv.ParseUint(snap, 10, 64)
			g1, err2 := strconv.ParseUint(gen, 10, 64)
			if err1 == nil && err2 == nil {
				oid.Snap, oid.Generation = s1, g1
				rest = rest[:at]
			}
		}
	}

	ns, name, ok := strings.Cut(rest, "/")
	if !ok {
		return ObjectID{}, fmt.Errorf("object id %q is missing the namespace/name separator", s)
	}
	oid.Namespace, oid.Name = ns, name
	return oid, nil
}
