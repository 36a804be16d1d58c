package main

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/config"
	"github.com/carias-rh/lx-toolbox/internal/directory"
	"github.com/carias-rh/lx-toolbox/internal/events"
	"github.com/carias-rh/lx-toolbox/internal/kafka"
	"github.com/carias-rh/lx-toolbox/internal/observability"
	"github.com/carias-rh/lx-toolbox/internal/persistence"
	"github.com/carias-rh/lx-toolbox/internal/registry"
	"github.com/carias-rh/lx-toolbox/internal/repository"
	"github.com/carias-rh/lx-toolbox/internal/rotation"
	"github.com/carias-rh/lx-toolbox/internal/service"
	"github.com/carias-rh/lx-toolbox/internal/servicenow"
)

// subscriberTimeout bounds each event subscriber per ticket, so an audit
// or Kafka outage slows a cycle by at most this much per ticket.
const subscriberTimeout = 2 * time.Second

// app holds the configuration and the lazily opened backends of one
// command invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *registry.Registry
	metrics  *observability.Metrics
	stdout   io.Writer

	redis        *persistence.Redis
	redisChecked bool
	postgres     *persistence.Postgres
	closers      []func()
}

func newApp(g globalFlags, stdout io.Writer) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logger.Level = g.logLevel
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}
	reg, err := registry.Default(cfg)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  observability.NewMetrics(),
		stdout:   stdout,
	}, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// ticketing validates credentials before building the ServiceNow client.
func (a *app) ticketing() (*servicenow.Client, error) {
	if err := a.cfg.ValidateTicketing(); err != nil {
		return nil, err
	}
	return servicenow.NewClient(a.cfg.ServiceNow), nil
}

// redisHandle returns the Redis client without any network traffic.
func (a *app) redisHandle() *persistence.Redis {
	if a.redis == nil {
		a.redis = persistence.OpenRedis(a.cfg.Redis)
		a.closers = append(a.closers, a.redis.Close)
	}
	return a.redis
}

// openRedis returns the Redis client, pinging it on first use.
func (a *app) openRedis(ctx context.Context) *persistence.Redis {
	rd := a.redisHandle()
	if !a.redisChecked {
		a.redisChecked = true
		rd.Check(ctx, a.logger)
	}
	return rd
}

func (a *app) openPostgres(ctx context.Context) (*persistence.Postgres, error) {
	if a.postgres == nil {
		pg, err := persistence.NewPostgres(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return nil, err
		}
		a.postgres = pg
		a.closers = append(a.closers, pg.Close)
	}
	return a.postgres, nil
}

// directory returns the LMS directory, cached in Redis when available,
// or nil when no directory is configured.
func (a *app) directory(ctx context.Context) directory.Directory {
	if a.cfg.Directory.BaseURL == "" {
		return nil
	}
	client := directory.NewClient(a.cfg.Directory)
	if rd := a.openRedis(ctx); rd.Enabled() {
		return directory.NewCachedDirectory(client, rd.Client, a.cfg.Directory.CacheTTL(), a.logger)
	}
	return client
}

// resolver shares the rotation cursor through Redis when configured. It
// does not touch the network, so Resolver.Check can run first.
func (a *app) resolver() *rotation.Resolver {
	var local rotation.Rotation = rotation.NewLocalRotation()
	if rd := a.redisHandle(); rd.Enabled() {
		local = rotation.NewRedisRotation(rd.Client, a.cfg.Redis.KeyPrefix)
	}
	remote := rotation.NewRemoteRotation(a.cfg.Directory.Timeout())
	return rotation.NewResolver(local, remote, a.cfg.Assignment.DefaultAssignee, a.logger)
}

// dispatcher wires the event subscribers: the notification log always,
// Kafka and the Postgres audit when configured. An unreachable audit
// database only disables the audit.
func (a *app) dispatcher(ctx context.Context) events.Dispatcher {
	d := events.NewInMemoryDispatcher(events.WithHandlerTimeout(subscriberTimeout))
	service.NewNotificationService(d, a.logger).RegisterHandlers()

	if len(a.cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.logger)
		producer.Register(d)
		a.closers = append(a.closers, func() {
			if err := producer.Close(); err != nil {
				a.logger.Warn("close kafka producer", zap.Error(err))
			}
		})
	}

	pg, err := a.openPostgres(ctx)
	if err != nil {
		a.logger.Warn("assignment audit disabled", zap.Error(err))
		return d
	}
	if pg.Enabled() {
		repo := repository.NewAssignmentAuditRepository(pg.PoolHandle())
		service.NewAuditService(repo, a.logger).RegisterHandlers(d)
	}
	return d
}
