package board

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderKeyBetweenBounds(t *testing.T) {
	k := OrderKeyBetween("", "")
	require.NotEmpty(t, k)

	lo := OrderKeyBetween("", k)
	hi := OrderKeyBetween(k, "")
	require.Less(t, lo, k)
	require.Less(t, k, hi)
}

func TestOrderKeyBetweenAdjacent(t *testing.T) {
	cases := []struct{ a, b string }{
		{"V", "W"},
		{"", "1"},
		{"A", "AV"},
		{"zz", ""},
		{"3", "4"},
	}
	for _, tc := range cases {
		k := OrderKeyBetween(tc.a, tc.b)
		if tc.a != "" {
			require.Greater(t, k, tc.a, "between(%q,%q)", tc.a, tc.b)
		}
		if tc.b != "" {
			require.Less(t, k, tc.b, "between(%q,%q)", tc.a, tc.b)
		}
	}
}

func TestOrderKeyAfterChain(t *testing.T) {
	keys := make([]string, 0, 200)
	last := ""
	for i := 0; i < 200; i++ {
		last = OrderKeyAfter(last)
		keys = append(keys, last)
	}
	require.True(t, sort.StringsAreSorted(keys))
	for _, k := range keys {
		require.NotEqual(t, byte('0'), k[len(k)-1], "keys must not end with the minimum digit")
	}
}

func TestOrderKeyRepeatedMidpoints(t *testing.T) {
	// repeatedly split the same interval; keys must stay strictly ordered
	lo, hi := OrderKeyBetween("", ""), OrderKeyAfter(OrderKeyBetween("", ""))
	for i := 0; i < 100; i++ {
		mid := OrderKeyBetween(lo, hi)
		require.Greater(t, mid, lo)
		require.Less(t, mid, hi)
		if i%2 == 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
}
