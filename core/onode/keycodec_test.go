package onode

import (
	"bytes"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleObjectIDs() []ObjectID {
	return []ObjectID{
		MinObjectID(),
		{Shard: -1, Pool: -5, Name: "a"},
		{Shard: 0, Pool: -1, Name: "a"},
		{Shard: 0, Pool: 0, Name: "a"},
		{Shard: 0, Pool: 0, Hash: 1, Name: ""},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "", Name: "a"},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "", Name: "a\x00"},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "", Name: "a\x00b"},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "", Name: "a\x01"},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "", Name: "ab"},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "a", Name: ""},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "a", Name: "a", Snap: 1},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "a", Name: "a", Snap: 1, Generation: 2},
		{Shard: 0, Pool: 0, Hash: 1, Namespace: "a", Name: "a", Snap: math.MaxUint64},
		{Shard: 3, Pool: math.MaxInt64, Hash: math.MaxUint32, Namespace: "\xff", Name: "\xff"},
		MaxObjectID(),
	}
}

func TestEncodeKey_RoundTrip(t *testing.T) {
	for _, oid := range sampleObjectIDs() {
		decoded, err := DecodeKey(EncodeKey(oid))
		require.NoError(t, err, "decode %s", oid)
		require.Equal(t, oid, decoded)
	}
}

func TestEncodeKey_PreservesOrder(t *testing.T) {
	oids := sampleObjectIDs()
	require.True(t, sort.SliceIsSorted(oids, func(i, j int) bool { return Compare(oids[i], oids[j]) < 0 }),
		"sample identifiers must be listed in ascending order")

	for i := range oids {
		for j := range oids {
			want := Compare(oids[i], oids[j])
			got := bytes.Compare(EncodeKey(oids[i]), EncodeKey(oids[j]))
			require.Equal(t, want, got, "%s vs %s", oids[i], oids[j])
		}
	}
}

func TestDecodeKey_Corrupt(t *testing.T) {
	valid := EncodeKey(ObjectID{Namespace: "ns", Name: "name"})

	cases := map[string][]byte{
		"empty":            {},
		"unknown prefix":   {0x7f, 0x00},
		"max with trailer": {keyPrefixMax, 0x00},
		"short header":     valid[:5],
		"truncated":        valid[:len(valid)-3],
		"bad escape":       append(append([]byte{}, valid[:14]...), 0x00, 0x42),
		"unterminated":     valid[:16],
	}
	for name, key := range cases {
		_, err := DecodeKey(key)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, ErrCorruptKey), name)
	}
}
