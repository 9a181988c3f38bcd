package onode

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseObjectID_FullForm(t *testing.T) {
	oid, err := ParseObjectID("-1:42:0000beef:ns/obj.1@7.3")
	require.NoError(t, err)
	require.Equal(t, ObjectID{Shard: -1, Pool: 42, Hash: 0xbeef, Namespace: "ns", Name: "obj.1", Snap: 7, Generation: 3}, oid)
	require.Equal(t, "-1:42:0000beef:ns/obj.1@7.3", oid.String())

	back, err := ParseObjectID(oid.String())
	require.NoError(t, err)
	require.Equal(t, oid, back)
}

func TestParseObjectID_ShortFormAndSentinels(t *testing.T) {
	oid, err := ParseObjectID("ns/name")
	require.NoError(t, err)
	require.Equal(t, ObjectID{Namespace: "ns", Name: "name"}, oid)

	// An '@' that is not followed by snap.gen stays part of the name.
	oid, err = ParseObjectID("/user@example")
	require.NoError(t, err)
	require.Equal(t, "user@example", oid.Name)

	maxID, err := ParseObjectID("MAX")
	require.NoError(t, err)
	require.True(t, maxID.IsMax())
	require.Equal(t, "MAX", maxID.String())

	minID, err := ParseObjectID("MIN")
	require.NoError(t, err)
	require.Equal(t, MinObjectID(), minID)

	_, err = ParseObjectID("no-separator")
	require.Error(t, err)
	// A prefix that is not shard:pool:hash: belongs to the short form.
	oid, err = ParseObjectID("ns/a:b:c:d")
	require.NoError(t, err)
	require.Equal(t, ObjectID{Namespace: "ns", Name: "a:b:c:d"}, oid)
	oid, err = ParseObjectID("x:1:2:ns/name")
	require.NoError(t, err)
	require.Equal(t, ObjectID{Namespace: "x:1:2:ns", Name: "name"}, oid)
}

func TestCompare(t *testing.T) {
	a := ObjectID{Pool: 1, Name: "a"}
	b := ObjectID{Pool: 1, Name: "b"}

	require.Equal(t, -1, Compare(a, b))
	require.Equal(t, 1, Compare(b, a))
	require.Equal(t, 0, Compare(a, a))

	require.Equal(t, -1, Compare(MinObjectID(), a))
	require.Equal(t, 1, Compare(MaxObjectID(), b))
	require.Equal(t, 0, Compare(MaxObjectID(), MaxObjectID()))

	// Fields compare in declaration order: the pool outranks the name.
	require.Equal(t, -1, Compare(ObjectID{Pool: 1, Name: "z"}, ObjectID{Pool: 2, Name: "a"}))
	require.Equal(t, -1, Compare(ObjectID{Name: "a", Snap: 9}, ObjectID{Name: "a", Snap: 10}))
}

func TestValidate(t *testing.T) {
	ok := ObjectID{Namespace: "ns", Name: strings.Repeat("x", MaxNsOidLength-2)}
	require.NoError(t, ok.Validate())

	tooLong := ObjectID{Namespace: "ns", Name: strings.Repeat("x", MaxNsOidLength-1)}
	err := tooLong.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrValueTooLarge))

	require.True(t, errors.Is(MaxObjectID().Validate(), ErrInvalidKey))
	require.NoError(t, MinObjectID().Validate())
}
