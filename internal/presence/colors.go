package presence

import (
	"math"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

// golden-ratio conjugate; stepping the hue by it spreads consecutive
// colors across the wheel
const hueStep = 0.618033988749895

// ColorGenerator hands out participant colors for one board. Each call
// advances the hue by the golden-ratio step at fixed saturation and
// lightness.
type ColorGenerator struct {
	mu sync.Mutex
	n  int
}

func NewColorGenerator() *ColorGenerator {
	return &ColorGenerator{}
}

// NextColor returns the next color in the sequence as a hex string.
func (g *ColorGenerator) NextColor() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	hue := math.Mod(float64(g.n)*hueStep, 1)
	g.n++
	return colorful.Hsl(hue*360, 0.85, 0.55).Hex()
}
