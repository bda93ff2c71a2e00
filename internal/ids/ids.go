package ids

import (
	"math"
	"sync/atomic"

	platformerrors "github.com/jmgilman/go/errors"
)

// ErrExhausted is returned once every positive int32 has been handed out.
// Ids do not wrap around.
var ErrExhausted = platformerrors.New(platformerrors.CodeUnavailable, "entry ids exhausted")

type EntryID = int32

// Generator hands out entry ids starting at 1. The counter holds the last
// id returned.
type Generator struct {
	entryCounter int64
}

func NewGenerator() *Generator {
	return &Generator{
		entryCounter: 0,
	}
}

func (g *Generator) NextEntry() (EntryID, error) {
	for {
		cur := atomic.LoadInt64(&g.entryCounter)
		if cur >= math.MaxInt32 {
			return 0, ErrExhausted
		}
		if atomic.CompareAndSwapInt64(&g.entryCounter, cur, cur+1) {
			return EntryID(cur + 1), nil
		}
	}
}

type GeneratorSnapshot struct {
	EntryCounter int64
}

func (g *Generator) Snapshot() GeneratorSnapshot {
	return GeneratorSnapshot{
		EntryCounter: atomic.LoadInt64(&g.entryCounter),
	}
}

func (g *Generator) Restore(snap GeneratorSnapshot) {
	atomic.StoreInt64(&g.entryCounter, snap.EntryCounter)
}

// Observe makes sure id is never handed out again.
func (g *Generator) Observe(id EntryID) {
	for {
		cur := atomic.LoadInt64(&g.entryCounter)
		if int64(id) <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&g.entryCounter, cur, int64(id)) {
			return
		}
	}
}
