package engine

import "sync"

// guardState is the suppression state of one engine instance. Each board
// session owns its own guard, so sessions in one process never
// cross-contaminate.
type guardState int

const (
	guardIdle guardState = iota
	guardApplyingRemote
)

// Guard is the reentrancy gate between remote application and local
// change classification. While a remote event is being applied, the
// classifier discards every observed mutation, which is the sole
// mechanism preventing local -> remote -> local echo loops.
//
// The guard is deliberately coarse: one state per session, not per
// record. Remote applications are batched per event rather than
// interleaved with local edits.
type Guard struct {
	mu    sync.Mutex
	state guardState
}

// With runs fn with suppression active. The state is restored on every
// exit path, including a panic inside fn, so a failed remote application
// cannot wedge the session into permanent suppression.
//
// The document delivers change notifications synchronously at commit,
// inside fn, so the classifier has always observed the mutations before
// the state resets.
func (g *Guard) With(fn func()) {
	g.mu.Lock()
	g.state = guardApplyingRemote
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.state = guardIdle
		g.mu.Unlock()
	}()

	fn()
}

// Suppressing reports whether a remote application is in progress.
func (g *Guard) Suppressing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == guardApplyingRemote
}
