// Package engine is the orchestrator: it validates inputs, composes
// repository calls into the higher-level operations the public API exposes,
// enforces per-user quotas and per-minute request limits, and runs the
// background decay loop.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rcliao/memex/internal/memexerr"
	"github.com/rcliao/memex/internal/ratelimit"
	"github.com/rcliao/memex/internal/storage"
	"github.com/rcliao/memex/internal/store"
)

// LogFunc is the signature of the Engine's logging seam. No exported
// function sets it and the engine emits no events through it, so an
// Engine logs nothing.
type LogFunc func(event string, kv ...any)

// Engine owns one open database handle and all the state derived from it. It
// corresponds to one FFI "handle" in the public API's registry.
type Engine struct {
	storage   *storage.Storage
	memRepo   *store.MemoryRepo
	sessRepo  *store.SessionRepo
	statsRepo *store.StatsRepo
	decayRepo *store.DecayRepo
	limiter   *ratelimit.Limiter
	idGen     *idGenerator
	accessQ   *accessQueue

	cfg   Config
	cfgMu sync.RWMutex

	compression   CompressionConfig
	compressionMu sync.RWMutex

	now   func() time.Time
	nowMu sync.RWMutex
	log   LogFunc

	// validMu/valid implement the Corrupt-state contract: once a storage
	// inconsistency is detected, the engine refuses further operations on
	// this handle rather than risk compounding it.
	validMu sync.RWMutex
	valid   bool
	invalid error

	decayStop   chan struct{}
	decayDone   chan struct{}
	flushStop   chan struct{}
	flushDone   chan struct{}
}

// New opens storage at cfg.DatabasePath and constructs an Engine ready to
// serve operations. The caller owns the returned Engine's lifetime and must
// call Close.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.WithDefaults()

	st, err := storage.Open(storage.Config{
		Path:           cfg.DatabasePath,
		WriterPoolSize: cfg.WriterPoolSize,
		ReaderPoolSize: cfg.ReaderPoolSize,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Ping(context.Background()); err != nil {
		st.Close()
		return nil, err
	}

	var limiter *ratelimit.Limiter
	if cfg.EnableRequestLimits {
		limiter = ratelimit.New(cfg.MaxRequestsPerMinute)
	} else {
		limiter = ratelimit.New(0)
	}

	e := &Engine{
		storage:     st,
		memRepo:     store.NewMemoryRepo(),
		sessRepo:    store.NewSessionRepo(),
		statsRepo:   store.NewStatsRepo(),
		decayRepo:   store.NewDecayRepo(),
		limiter:     limiter,
		idGen:       newIDGenerator(),
		accessQ:     newAccessQueue(0),
		cfg:         cfg,
		compression: defaultCompressionConfig(),
		now:         time.Now,
		valid:       true,
		decayStop:   make(chan struct{}),
		decayDone:   make(chan struct{}),
		flushStop:   make(chan struct{}),
		flushDone:   make(chan struct{}),
	}

	go e.runAccessFlushLoop()
	if cfg.AutoDecayEnabled {
		go e.runDecayLoop()
	} else {
		close(e.decayDone)
	}

	return e, nil
}

// Close stops the background loops and closes the underlying storage.
func (e *Engine) Close() error {
	close(e.decayStop)
	close(e.flushStop)
	<-e.flushDone
	if e.cfg.AutoDecayEnabled {
		<-e.decayDone
	}
	e.flushAccess(context.Background())
	return e.storage.Close()
}

// Config returns the engine's current configuration.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// SetClock overrides the engine's time source. It exists for tests that
// need to advance past a TTL or decay window without sleeping; production
// callers never touch it.
func (e *Engine) SetClock(now func() time.Time) {
	e.nowMu.Lock()
	defer e.nowMu.Unlock()
	e.now = now
}

// clockNow returns the engine's current time source. Every caller that
// needs "now" goes through this instead of the now field directly, so
// SetClock stays safe to call from a concurrently-running test.
func (e *Engine) clockNow() time.Time {
	e.nowMu.RLock()
	defer e.nowMu.RUnlock()
	return e.now()
}

// UpdateDecayPolicy replaces the compression cutoffs used by decay Pass 4,
// the policy knob update_decay_policy exposes at the public API.
func (e *Engine) UpdateDecayPolicy(c CompressionConfig) {
	e.compressionMu.Lock()
	defer e.compressionMu.Unlock()
	e.compression = c
}

func (e *Engine) decayPolicy() CompressionConfig {
	e.compressionMu.RLock()
	defer e.compressionMu.RUnlock()
	return e.compression
}

// IsValid reports whether the engine is still usable. Once a Corrupt
// condition is recorded, every subsequent public operation is rejected.
func (e *Engine) IsValid() bool {
	e.validMu.RLock()
	defer e.validMu.RUnlock()
	return e.valid
}

func (e *Engine) markCorrupt(cause error) {
	e.validMu.Lock()
	defer e.validMu.Unlock()
	e.valid = false
	e.invalid = cause
}

func (e *Engine) checkValid() error {
	e.validMu.RLock()
	defer e.validMu.RUnlock()
	if !e.valid {
		return memexerr.Wrap(memexerr.Corrupt, "engine handle is no longer valid", e.invalid)
	}
	return nil
}

// checkRate enforces the per-user request-rate gate ahead of a mutating
// operation. Read-only operations (recall, search, get) are not gated.
func (e *Engine) checkRate(userID string) error {
	if !e.limiter.Allow(userID) {
		return memexerr.Newf(memexerr.RateLimited, "rate limit exceeded for user %s", userID)
	}
	return nil
}

func (e *Engine) runAccessFlushLoop() {
	defer close(e.flushDone)
	ticker := time.NewTicker(defaultAccessFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.flushStop:
			return
		case <-ticker.C:
			e.flushAccess(context.Background())
		}
	}
}

const defaultAccessFlushInterval = 5 * time.Second

// flushAccess writes out every pending access-bookkeeping id. Best-effort:
// errors are swallowed, matching the design note that access updates must
// never fail the read they are bookkeeping for.
func (e *Engine) flushAccess(ctx context.Context) {
	ids := e.accessQ.Drain()
	if len(ids) == 0 {
		return
	}
	_ = e.memRepo.MarkAccessed(ctx, e.storage.Writer(), ids, e.clockNow())
}

func (e *Engine) runDecayLoop() {
	defer close(e.decayDone)
	cfg := e.Config()
	ticker := time.NewTicker(cfg.decayInterval())
	defer ticker.Stop()
	for {
		select {
		case <-e.decayStop:
			return
		case <-ticker.C:
			_, _ = e.Decay(context.Background())
		}
	}
}
