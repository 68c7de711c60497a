// Package bootstrap holds the startup and shutdown steps shared by every
// binary: environment and config loading, the process logger, datastore
// clients, signal handling and ordered cleanup.
package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/KalilovM/topshopes-backend/pkg/config"
	"github.com/KalilovM/topshopes-backend/pkg/db"
	"github.com/KalilovM/topshopes-backend/pkg/instance"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/migrate"
	"github.com/KalilovM/topshopes-backend/pkg/redis"
)

type closer struct {
	name  string
	close func() error
}

// Process is a started binary. Resources registered with OnClose are
// released in reverse order by Close.
type Process struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger

	closers []closer
	exit    func(int)
}

// NewLogger builds the structured logger for service from app settings.
func NewLogger(service string, app config.AppConfig) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(app.LogLevel),
		Format:      app.LogFormat,
		WarnStack:   app.LogWarnStack,
		Instance:    instance.GetID(),
	})
}

// Start loads .env and config for service. It exits the process when the
// configuration is unusable.
func Start(service string) *Process {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = service

	return &Process{
		Service: service,
		Config:  cfg,
		Logger:  NewLogger(service, cfg.App),
		exit:    os.Exit,
	}
}

// Check aborts startup when err is set. step reads as "failed to <step>".
func (p *Process) Check(step string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(context.Background(), "failed to "+step, err)
	p.Close()
	p.exit(1)
}

// OnClose registers fn to run at shutdown.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, close: fn})
}

// Close releases registered resources, newest first. It is safe to call
// more than once.
func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Database connects to the configured database and applies dev migrations
// when enabled.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Check("bootstrap database", err)
	p.OnClose("database", client.Close)
	p.Check("run dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

// Redis connects to the configured redis instance.
func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Check("bootstrap redis", err)
	p.OnClose("redis", client.Close)
	return client
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the process
// log fields.
func (p *Process) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Service,
	})
	return ctx, stop
}

// Run blocks in run until it returns, then closes every resource. A failure
// other than cancellation exits the process with status 1.
func (p *Process) Run(ctx context.Context, what string, run func(context.Context) error) {
	p.Logger.Info(ctx, "starting "+what)
	err := run(ctx)
	p.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, what+" stopped unexpectedly", err)
		p.exit(1)
		return
	}
	p.Logger.Info(ctx, what+" shutting down gracefully")
}
