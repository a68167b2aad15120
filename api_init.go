package memex

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rcliao/memex/internal/engine"
	"github.com/rcliao/memex/internal/memexerr"
)

// version is the public API's own version string, independent of the
// module's go.mod version — the same "engine reports what it is" contract
// the operation table's version() exposes to REST and FFI callers alike.
const version = "0.1.0"

// opTimeout is the implicit deadline applied to every public operation that
// derives its own context.
const opTimeout = 30 * time.Second

// Init decodes configJSON, opens the engine's storage, and returns a handle
// the caller uses for every subsequent operation. An empty configJSON
// (nil or "{}") opens the engine with every default applied.
func Init(configJSON []byte) (Handle, error) {
	// Booleans that default to true (auto_decay_enabled, enable_compression,
	// enable_request_limits) can't be defaulted after the fact the way the
	// numeric fields are: json.Unmarshal leaves an absent bool field at its
	// Go zero value, which is false, indistinguishable from an explicit
	// "false" in the caller's JSON. Seed them here instead so an absent key
	// keeps the default and a present key still overrides it either way.
	cfg := engine.Config{
		AutoDecayEnabled:    true,
		EnableCompression:   true,
		EnableRequestLimits: true,
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &cfg); err != nil {
			return 0, memexerr.Wrap(memexerr.BadConfig, "decode config_json", err)
		}
	}

	e, err := engine.New(cfg)
	if err != nil {
		if memexerr.KindOf(err) == "" {
			err = memexerr.Wrap(memexerr.BadConfig, "open engine", err)
		}
		return 0, err
	}
	return reg.allocate(e), nil
}

// Destroy stops h's background loops and closes its storage. h is no
// longer valid after this call returns.
func Destroy(h Handle) {
	entry, err := reg.get(h)
	if err != nil {
		return
	}
	entry.engine.Close()
	reg.release(h)
}

// Version returns the public API's version string.
func Version() string { return version }

// withTimeout derives a context carrying the implicit per-operation
// deadline from a caller that has no context of its own to hand down (the
// FFI surface has none; the admin CLI may pass context.Background()).
func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}
