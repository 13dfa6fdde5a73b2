package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupKeyStableAcrossDrivers(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewGroupKey([]string{"country", "day", "tier"}, []any{"US", day, int64(2)})
	require.NoError(t, err)
	b, err := NewGroupKey([]string{"country", "day", "tier"}, []any{[]byte("US"), day.In(time.FixedZone("x", 7200)), int32(2)})
	require.NoError(t, err)

	require.Equal(t, a.Canonical(), b.Canonical())
	require.Equal(t, a.Hash(), b.Hash())
	require.Len(t, a.Hash(), 64)
}

func TestGroupKeyDelimiterSafe(t *testing.T) {
	tests := []struct {
		desc string
		a, b []any
	}{
		{desc: "comma inside value", a: []any{"a,b", "c"}, b: []any{"a", "b,c"}},
		{desc: "colon and digits", a: []any{"1:x", "y"}, b: []any{"1", "x:y"}},
		{desc: "null versus literal N", a: []any{nil, "x"}, b: []any{"N", "x"}},
		{desc: "null versus empty", a: []any{nil, "x"}, b: []any{"", "x"}},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			ka, err := NewGroupKey([]string{"c1", "c2"}, tc.a)
			require.NoError(t, err)
			kb, err := NewGroupKey([]string{"c1", "c2"}, tc.b)
			require.NoError(t, err)
			require.NotEqual(t, ka.Canonical(), kb.Canonical())
			require.NotEqual(t, ka.Hash(), kb.Hash())
		})
	}
}

func TestGroupKeyColumnsAreSignificant(t *testing.T) {
	a, err := NewGroupKey([]string{"region"}, []any{"EU"})
	require.NoError(t, err)
	b, err := NewGroupKey([]string{"country"}, []any{"EU"})
	require.NoError(t, err)
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestGroupKeyReadable(t *testing.T) {
	k, err := NewGroupKey([]string{"country", "city", "n"}, []any{`Côte "d'Ivoire"`, nil, 3.5})
	require.NoError(t, err)
	require.Equal(t, `{"country":"Côte \"d'Ivoire\"","city":null,"n":"3.5"}`, k.Readable())
	require.Equal(t, `7:country15:Côte "d'Ivoire"4:cityN1:n3:3.5`, k.Canonical())
}

func TestNewGroupKeyLengthMismatch(t *testing.T) {
	_, err := NewGroupKey([]string{"a", "b"}, []any{"x"})
	require.Error(t, err)
}
