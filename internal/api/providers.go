package api

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-keypool/internal/auth"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/infra/notify"
	"github.com/kashguard/go-keypool/internal/infra/provision"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/mailer"
	"github.com/kashguard/go-keypool/internal/mailer/transport"
	"github.com/kashguard/go-keypool/internal/metrics"
	"github.com/kashguard/go-keypool/internal/persistence"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PROVIDERS - define here only providers that for various reasons (e.g. cyclic dependency) can't live in their corresponding packages
// or for wrapping providers that only accept sub-configs to prevent the requirements for defining providers for sub-configs.
// https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

func NewClock(t ...*testing.T) time2.Clock {
	var clock time2.Clock

	useMock := len(t) > 0 && t[0] != nil

	if useMock {
		clock = time2.NewMockClock(time.Now())
	} else {
		clock = time2.DefaultClock
	}

	return clock
}

func NoTest() []*testing.T {
	return nil
}

func NewMailer(cfg config.Server) (*mailer.Mailer, error) {
	var transporter transport.MailTransporter

	switch config.MailerTransporter(cfg.Mailer.Transporter) {
	case config.MailerTransporterSMTP:
		transporter = transport.NewSMTP(cfg.SMTP)
	case config.MailerTransporterMock:
		log.Warn().Msg("Initializing mock mailer")
		transporter = transport.NewMock()
	default:
		return nil, fmt.Errorf("unsupported mail transporter: %s", cfg.Mailer.Transporter)
	}

	m := mailer.New(cfg.Mailer, transporter)
	if err := m.ParseTemplates(); err != nil {
		return nil, fmt.Errorf("failed to parse mailer templates: %w", err)
	}

	return m, nil
}

// NewDB only connects when the pool lives in postgres; the other backends run without a database.
func NewDB(cfg config.Server) (*sql.DB, error) {
	if cfg.Pool.Backend != config.PoolBackendPostgres {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return persistence.NewDB(ctx, cfg.Database)
}

func NewRedisClient(cfg config.Server) (*redis.Client, error) {
	if cfg.Pool.Backend != config.PoolBackendRedis && cfg.Pool.AlertLatch != config.PoolBackendRedis {
		return nil, nil
	}

	if cfg.Redis.Address == "" {
		return nil, fmt.Errorf("redis address is not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewPoolStore(cfg config.Server, db *sql.DB, rdb *redis.Client, clock time2.Clock) (storage.Store, error) {
	switch cfg.Pool.Backend {
	case config.PoolBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("pool backend %s requires a database", cfg.Pool.Backend)
		}
		return storage.NewPostgresStore(db, clock), nil
	case config.PoolBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("pool backend %s requires a redis client", cfg.Pool.Backend)
		}
		return storage.NewRedisStore(rdb, clock), nil
	case config.PoolBackendMemory:
		log.Warn().Msg("Using in-memory master key pool, issued keys are lost on restart")
		return storage.NewMemoryStore(clock), nil
	default:
		return nil, fmt.Errorf("unsupported pool backend: %s", cfg.Pool.Backend)
	}
}

func NewAlertLatch(cfg config.Server, rdb *redis.Client, clock time2.Clock) storage.AlertLatch {
	if cfg.Pool.AlertLatch == config.PoolBackendRedis && rdb != nil {
		return storage.NewRedisAlertLatch(rdb)
	}

	return storage.NewMemoryAlertLatch(clock)
}

func NewSupplyMonitor(cfg config.Server, store storage.Store, latch storage.AlertLatch, m *metrics.Service) *key.SupplyMonitor {
	return key.NewSupplyMonitor(store, latch, cfg.Pool.LowSupplyThresholds, m)
}

func NewAllocator(store storage.Store, monitor *key.SupplyMonitor) *key.Allocator {
	return key.NewAllocator(store, monitor)
}

func NewDeriver() key.Deriver {
	return key.NewDerivationService()
}

func NewIssuer(cfg config.Server, allocator *key.Allocator, store storage.Store, deriver key.Deriver, clock time2.Clock) *key.Issuer {
	return key.NewIssuer(key.NewIssuerConfig(cfg), allocator, store, deriver, clock)
}

func NewExecutor(cfg config.Server, m *mailer.Mailer, metrics *metrics.Service) *notify.Executor {
	return notify.NewExecutor(notify.NewExecutorConfig(cfg), m, nil, metrics)
}

func NewProvisionService(issuer *key.Issuer, executor *notify.Executor, metrics *metrics.Service) *provision.Service {
	return provision.NewService(issuer, executor, metrics)
}

func NewLookupService(store storage.Store) *key.LookupService {
	return key.NewLookupService(store)
}

func NewRequesterAuthenticator(cfg config.Server, clock time2.Clock) (*auth.RequesterAuthenticator, error) {
	return auth.NewRequesterAuthenticator(cfg.RequesterAuth, clock)
}
