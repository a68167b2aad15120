package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idGenerator produces lexically-sortable, time-derived ids, mutex-guarded
// since the engine serves concurrent callers.
type idGenerator struct {
	mu      sync.Mutex
	entropy *rand.Rand
}

func newIDGenerator() *idGenerator {
	return &idGenerator{entropy: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *idGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
