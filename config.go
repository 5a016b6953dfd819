package sessionguard

import (
	"errors"
	"time"

	"github.com/retailcore/sessionguard/jwt"
)

// Config is the engine configuration tree. Built once, validated by
// [Builder.Build], immutable afterward.
type Config struct {
	JWT       JWTConfig
	Blacklist BlacklistConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JWTConfig configures the session token codec.
type JWTConfig struct {
	// SessionLifetime is the absolute session lifetime. A session older
	// than this is unconditionally expired regardless of activity.
	SessionLifetime time.Duration
	SigningMethod   string // "ed25519" (default) or "hs256"
	PrivateKey      []byte
	PublicKey       []byte
	Issuer          string
	Audience        string
	Leeway          time.Duration
}

// BlacklistConfig configures the revoked-session store.
type BlacklistConfig struct {
	// EntryTTL bounds blacklist growth; entries recycle to "unknown"
	// afterward. Defaults to the session lifetime, which makes a missed
	// entry harmless: the token it guarded is already expired.
	EntryTTL time.Duration
	// FailClosed rejects sessions when the blacklist store is
	// unreachable. Default false: fail open, availability over
	// strictness, with the absolute lifetime bounding the blast radius.
	FailClosed bool
	// CheckTimeout bounds each blacklist read on the request path.
	CheckTimeout time.Duration
	// WriteTimeout bounds background blacklist writes.
	WriteTimeout time.Duration
	// SweepInterval is the expired-entry sweep period. Zero disables the
	// built-in sweeper.
	SweepInterval time.Duration
}

// RateLimitConfig configures the limiter's backend handling. Budgets are
// per-call policy, not engine state.
type RateLimitConfig struct {
	KeyPrefix string
	// StoreTimeout bounds each durable-backend call; overruns degrade to
	// the in-memory fallback instead of hanging the request.
	StoreTimeout time.Duration
	// ProbeInterval is how long the durable backend is considered down
	// after a failure before the next probe.
	ProbeInterval time.Duration
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events under sustained overload instead of
	// blocking the request path. Drops are counted.
	DropIfFull bool
}

// MetricsConfig configures the engine counter table.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 24h session lifetime,
// ed25519 signing, fail-open blacklist reads, async audit with drop on
// overload, metrics enabled. Signing keys must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SessionLifetime: 24 * time.Hour,
			SigningMethod:   string(jwt.MethodEd25519),
			Leeway:          30 * time.Second,
		},
		Blacklist: BlacklistConfig{
			CheckTimeout:  500 * time.Millisecond,
			WriteTimeout:  2 * time.Second,
			SweepInterval: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			KeyPrefix:     "rl",
			StoreTimeout:  500 * time.Millisecond,
			ProbeInterval: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.JWT.SessionLifetime <= 0 {
		return errors.New("config: session lifetime must be positive")
	}
	if cfg.JWT.SigningMethod != string(jwt.MethodEd25519) && cfg.JWT.SigningMethod != string(jwt.MethodHS256) {
		return errors.New("config: unsupported signing method")
	}
	if cfg.Blacklist.EntryTTL == 0 {
		cfg.Blacklist.EntryTTL = cfg.JWT.SessionLifetime
	}
	if cfg.Blacklist.EntryTTL < 0 {
		return errors.New("config: blacklist entry TTL must be positive")
	}
	if cfg.Blacklist.CheckTimeout <= 0 {
		cfg.Blacklist.CheckTimeout = 500 * time.Millisecond
	}
	if cfg.Blacklist.WriteTimeout <= 0 {
		cfg.Blacklist.WriteTimeout = 2 * time.Second
	}
	if cfg.RateLimit.StoreTimeout <= 0 {
		cfg.RateLimit.StoreTimeout = 500 * time.Millisecond
	}
	if cfg.RateLimit.ProbeInterval <= 0 {
		cfg.RateLimit.ProbeInterval = 10 * time.Second
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = 256
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	return out
}
