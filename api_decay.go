package memex

import (
	"encoding/json"

	"github.com/rcliao/memex/internal/engine"
	"github.com/rcliao/memex/internal/memexerr"
)

// Decay runs a full decay pass and returns its stats, JSON-encoded.
func Decay(h Handle) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	stats, err := entry.engine.Decay(ctx)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(stats)
}

// DecayAnalyze runs decay's selection logic read-only and returns what
// would be removed or compressed, JSON-encoded.
func DecayAnalyze(h Handle) ([]byte, error) {
	entry, err := reg.get(h)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout()
	defer cancel()
	plan, err := entry.engine.AnalyzeDecay(ctx)
	if err != nil {
		return nil, entry.recordError(err)
	}
	entry.recordError(nil)
	return json.Marshal(plan)
}

// UpdateDecayPolicy decodes policyJSON as a CompressionConfig and installs
// it as decay Pass 4's active cutoffs.
func UpdateDecayPolicy(h Handle, policyJSON []byte) (bool, error) {
	entry, err := reg.get(h)
	if err != nil {
		return false, err
	}
	var policy engine.CompressionConfig
	if err := json.Unmarshal(policyJSON, &policy); err != nil {
		return false, entry.recordError(memexerr.Wrap(memexerr.BadConfig, "decode decay policy", err))
	}
	entry.engine.UpdateDecayPolicy(policy)
	entry.recordError(nil)
	return true, nil
}
