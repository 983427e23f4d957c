package presence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColorGeneratorDistinctSequence(t *testing.T) {
	cg := NewColorGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		c := cg.NextColor()
		require.Regexp(t, `^#[0-9a-f]{6}$`, c)
		require.False(t, seen[c], "color %s repeated at index %d", c, i)
		seen[c] = true
	}
}
