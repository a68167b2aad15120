package engine

import "time"

// Config is the engine's fully-decoded configuration, the Go-native
// counterpart of init(config_json). The owning process is responsible for
// loading JSON from environment/files/flags and handing the engine the
// decoded struct; this package never reads outside state itself.
type Config struct {
	DatabasePath          string  `json:"database_path"`
	DefaultMemoryTTLHours int     `json:"default_memory_ttl_hours"`
	AutoDecayEnabled      bool    `json:"auto_decay_enabled"`
	DecayIntervalHours    int     `json:"decay_interval_hours"`
	EnableCompression     bool    `json:"enable_compression"`
	MaxMemoriesPerUser    int     `json:"max_memories_per_user"`
	ImportanceThreshold   float64 `json:"importance_threshold"`
	EnableRequestLimits   bool    `json:"enable_request_limits"`
	MaxRequestsPerMinute  int     `json:"max_requests_per_minute"`
	MaxBatchSize          int     `json:"max_batch_size"`
	AutoEvictOnQuota      bool    `json:"auto_evict_on_quota"`
	ReaderPoolSize        int     `json:"reader_pool_size"`
	WriterPoolSize        int     `json:"writer_pool_size"`
}

// WithDefaults returns a copy of c with every unset field defaulted per the
// configuration table.
func (c Config) WithDefaults() Config {
	if c.DatabasePath == "" {
		c.DatabasePath = "./memex.db"
	}
	if c.DefaultMemoryTTLHours == 0 {
		c.DefaultMemoryTTLHours = 720
	}
	if c.DecayIntervalHours == 0 {
		c.DecayIntervalHours = 24
	}
	if c.MaxMemoriesPerUser == 0 {
		c.MaxMemoriesPerUser = 10000
	}
	if c.ImportanceThreshold == 0 {
		c.ImportanceThreshold = 0.3
	}
	if c.MaxRequestsPerMinute == 0 {
		c.MaxRequestsPerMinute = 1000
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 100
	}
	if c.ReaderPoolSize == 0 {
		c.ReaderPoolSize = 8
	}
	if c.WriterPoolSize == 0 {
		c.WriterPoolSize = 1
	}
	return c
}

// decayInterval is DecayIntervalHours as a time.Duration, used by the
// background timer loop.
func (c Config) decayInterval() time.Duration {
	return time.Duration(c.DecayIntervalHours) * time.Hour
}

// CompressionConfig defines the cutoffs decay Pass 4 acts on. Callers may
// adjust these via update_decay_policy without touching the rest of Config.
type CompressionConfig struct {
	MinAgeDays       int     `json:"min_age_days"`
	MaxImportance    float64 `json:"max_importance"`
	TruncatedMaxLen  int     `json:"truncated_max_len"`
}

func defaultCompressionConfig() CompressionConfig {
	return CompressionConfig{MinAgeDays: 30, MaxImportance: 0.5, TruncatedMaxLen: 200}
}
