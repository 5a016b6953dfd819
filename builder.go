package sessionguard

import (
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/retailcore/sessionguard/internal/auditstore"
	"github.com/retailcore/sessionguard/internal/blacklist"
	"github.com/retailcore/sessionguard/internal/lockout"
	"github.com/retailcore/sessionguard/internal/ratelimit"
	"github.com/retailcore/sessionguard/jwt"
)

// Builder assembles an [Engine]. Construct with [New], chain the With*
// methods, then call [Builder.Build] once.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	db       *sql.DB
	identity IdentityProvider
	sink     AuditSink

	built bool
}

// New creates a [Builder] seeded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the durable rate-limit backend. Without it the limiter
// runs purely on the in-memory fallback.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDB sets the durable store for blacklist entries and audit rows.
// Without it both use in-process stores, which is only suitable for tests
// and single-process deployments.
func (b *Builder) WithDB(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithIdentityProvider sets the external credential-validation
// collaborator. Required.
func (b *Builder) WithIdentityProvider(provider IdentityProvider) *Builder {
	b.identity = provider
	return b
}

// WithAuditSink adds a sink that receives audit events in addition to the
// durable store.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the engine counter table.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and assembles the [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.identity == nil {
		return nil, errors.New("identity provider is required")
	}
	if err := validateConfig(&b.config); err != nil {
		return nil, err
	}

	jwtMgr, err := jwt.NewManager(jwt.Config{
		SessionLifetime: b.config.JWT.SessionLifetime,
		SigningMethod:   jwt.SigningMethod(b.config.JWT.SigningMethod),
		PrivateKey:      b.config.JWT.PrivateKey,
		PublicKey:       b.config.JWT.PublicKey,
		Issuer:          b.config.JWT.Issuer,
		Audience:        b.config.JWT.Audience,
		Leeway:          b.config.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	var blStore blacklist.Store
	var auStore auditstore.Store
	if b.db != nil {
		blStore = blacklist.NewPostgresStore(b.db)
		auStore = auditstore.NewPostgresStore(b.db)
	} else {
		blStore = blacklist.NewMemoryStore()
		auStore = auditstore.NewMemoryStore()
	}

	var sink AuditSink = newStoreSink(auStore)
	if b.sink != nil {
		sink = &teeSink{sinks: []AuditSink{sink, b.sink}}
	}

	metrics := NewMetrics(b.config.Metrics)

	var primary ratelimit.Backend
	if b.redis != nil {
		primary = ratelimit.NewRedisBackend(b.redis, b.config.RateLimit.KeyPrefix)
	}

	engine := newEngine(engineDeps{
		config:     b.config,
		jwt:        jwtMgr,
		blacklist:  blStore,
		auditStore: auStore,
		dispatcher: newAuditDispatcher(b.config.Audit, sink),
		lockout:    lockout.New(auStore),
		limiter: ratelimit.NewLimiter(primary,
			ratelimit.WithStoreTimeout(b.config.RateLimit.StoreTimeout),
			ratelimit.WithProbeInterval(b.config.RateLimit.ProbeInterval),
			ratelimit.WithDegradedHook(func() {
				metrics.Inc(MetricRateLimitDegraded)
			}),
		),
		identity: b.identity,
		metrics:  metrics,
	})

	if b.config.Blacklist.SweepInterval > 0 {
		engine.sweeper = blacklist.NewSweeper(blStore, b.config.Blacklist.SweepInterval)
	}

	b.built = true
	return engine, nil
}
