// Package app wires stores, services, workers and the HTTP router from
// configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	authhandler "landledger/internal/auth/handler"
	authservice "landledger/internal/auth/service"
	authstore "landledger/internal/auth/store"
	"landledger/internal/documents"
	httpapi "landledger/internal/http"
	jwttoken "landledger/internal/jwt_token"
	"landledger/internal/land/assetid"
	landhandler "landledger/internal/land/handler"
	landservice "landledger/internal/land/service"
	landstore "landledger/internal/land/store"
	marketplacehandler "landledger/internal/marketplace/handler"
	marketplaceservice "landledger/internal/marketplace/service"
	"landledger/internal/marketplace/watchlist"
	"landledger/internal/notify"
	"landledger/internal/platform/config"
	"landledger/internal/platform/metrics"
	"landledger/internal/platform/postgres"
	"landledger/internal/platform/redis"
	"landledger/internal/ratelimit"
	tradehandler "landledger/internal/trade/handler"
	"landledger/internal/trade/integrity"
	tradeservice "landledger/internal/trade/service"
	tradestore "landledger/internal/trade/store"
	"landledger/internal/trade/transfer"
	usershandler "landledger/internal/users/handler"
	usersservice "landledger/internal/users/service"
	userstore "landledger/internal/users/store"
	"landledger/internal/verification"
	"landledger/pkg/platform/audit"
	"landledger/pkg/platform/audit/publishers/compliance"
	"landledger/pkg/platform/audit/publishers/security"
	auditmemory "landledger/pkg/platform/audit/store/memory"
	auditpg "landledger/pkg/platform/audit/store/postgres"
	"landledger/pkg/platform/audit/worker"
	pstrings "landledger/pkg/platform/strings"
	"landledger/pkg/platform/tx"
)

type landStore interface {
	landservice.Store
	marketplaceservice.LandStore
}

type requestStore interface {
	tradeservice.RequestStore
	transfer.RequestStore
}

type documentStore interface {
	landservice.DocumentStore
	documents.Fetcher
}

type background struct {
	name string
	run  func(ctx context.Context) error
}

// Mailer delivers OTP codes and notifications.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type App struct {
	Router http.Handler
	Users  *usersservice.Service

	security *security.Publisher
	workers  []background
	closers  []func() error
	mailer   Mailer
}

type Option func(*App)

// WithMailer replaces the configured SES or log sender.
func WithMailer(m Mailer) Option {
	return func(a *App) {
		a.mailer = m
	}
}

// EnsureAdmins promotes every address to ADMIN, creating accounts as needed.
func (a *App) EnsureAdmins(ctx context.Context, emails []string) error {
	for _, address := range pstrings.DedupeAndTrimLower(emails) {
		if _, err := a.Users.EnsureAdmin(ctx, address); err != nil {
			return fmt.Errorf("ensure admin %s: %w", address, err)
		}
	}
	return nil
}

// RunWorkers runs the background workers until ctx is done or one fails.
func (a *App) RunWorkers(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range a.workers {
		g.Go(func() error {
			if err := w.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", w.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Flush writes buffered security audit events.
func (a *App) Flush(ctx context.Context) {
	a.security.Flush(ctx)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// persistence is the set of stores chosen by configuration.
type persistence struct {
	db       *sql.DB
	runner   tx.Runner
	lands    landStore
	requests requestStore
	users    usersservice.Store
	audit    audit.Store
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	app := &App{}
	for _, opt := range opts {
		opt(app)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	healthChecks := map[string]httpapi.HealthCheck{}

	store, err := openPersistence(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if store.db != nil {
		app.closers = append(app.closers, store.db.Close)
		healthChecks["postgres"] = store.db.PingContext
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	var (
		otpStore authservice.Store
		watched  marketplaceservice.Watchlist
		windows  ratelimit.Store
	)
	if rdb != nil {
		app.closers = append(app.closers, rdb.Close)
		healthChecks["redis"] = rdb.Health
		if err := rdb.RegisterPoolMetrics(reg); err != nil {
			app.Close()
			return nil, err
		}
		otpStore = authstore.NewRedis(rdb.Client)
		watched = watchlist.NewRedis(rdb.Client)
		windows = ratelimit.NewRedis(rdb.Client)
	} else {
		otpStore = authstore.NewInMemory()
		watched = watchlist.NewInMemory()
	}

	docs, err := openDocuments(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	sender := app.mailer
	if sender == nil {
		if sender, err = openSender(ctx, cfg, log); err != nil {
			app.Close()
			return nil, err
		}
	}

	compliancePublisher := compliance.New(store.audit,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	app.security = security.New(store.audit,
		security.WithLogger(log),
		security.WithDroppedCounter(m.SecurityAuditsDropped),
	)
	app.workers = append(app.workers, background{name: "security audit", run: app.security.Run})

	app.Users = usersservice.New(store.users, store.runner,
		usersservice.WithLogger(log),
		usersservice.WithAuditPublisher(compliancePublisher),
		usersservice.WithAdminEmails(cfg.Auth.AdminEmails),
	)
	gate := verification.NewGate(app.Users)

	dispatcher := notify.NewDispatcher(app.Users, sender, cfg.Workflow.NotificationBuffer,
		notify.WithLogger(log),
		notify.WithMetrics(m),
	)
	app.workers = append(app.workers, background{name: "notifications", run: dispatcher.Run})

	reporter := integrity.NewReporter(log, app.security, m)

	trades := tradeservice.New(store.requests, store.lands, store.runner, gate,
		tradeservice.WithLogger(log),
		tradeservice.WithMetrics(m),
		tradeservice.WithAuditPublisher(compliancePublisher),
		tradeservice.WithNotifier(dispatcher),
		tradeservice.WithIntegrityReporter(reporter),
	)
	transfers := transfer.New(store.requests, store.lands, store.runner, gate, app.Users,
		transfer.WithLogger(log),
		transfer.WithMetrics(m),
		transfer.WithAuditPublisher(compliancePublisher),
		transfer.WithNotifier(dispatcher),
		transfer.WithIntegrityReporter(reporter),
	)
	monitor := transfer.NewStaleReviewMonitor(store.requests, cfg.Workflow.StaleReviewAge,
		transfer.WithMonitorLogger(log),
		transfer.WithMonitorMetrics(m),
		transfer.WithSchedule(cfg.Workflow.StaleReviewSchedule),
	)
	app.workers = append(app.workers, background{name: "stale review monitor", run: monitor.Run})

	registry := landservice.New(store.lands, store.runner, gate, app.Users, assetid.New(nil),
		landservice.WithLogger(log),
		landservice.WithMetrics(m),
		landservice.WithAuditPublisher(compliancePublisher),
		landservice.WithNotifier(dispatcher),
		landservice.WithDocumentStore(docs),
		landservice.WithPendingRequestRejecter(trades),
		landservice.WithPublicBaseURL(cfg.Server.PublicBaseURL),
	)
	market := marketplaceservice.New(store.lands, store.requests, store.runner, gate, watched,
		marketplaceservice.WithLogger(log),
		marketplaceservice.WithMetrics(m),
		marketplaceservice.WithAuditPublisher(compliancePublisher),
		marketplaceservice.WithRequireVerifiedLand(cfg.Workflow.RequireVerifiedLandForListing),
	)

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	otp := authservice.New(otpStore, sender, app.Users, tokens,
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
		authservice.WithSecurityPublisher(app.security),
		authservice.WithCodeTTL(cfg.OTP.TTL),
		authservice.WithMaxAttempts(cfg.OTP.MaxAttempts),
		authservice.WithTokenTTL(cfg.Auth.TokenTTL),
	)

	if store.db != nil && len(cfg.Kafka.Brokers) > 0 {
		outbox, err := openRelay(ctx, cfg, store.db, log, m)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, outbox.close)
		app.workers = append(app.workers, background{name: "outbox relay", run: outbox.Run})
	}

	otpLimit := ratelimit.NewMiddleware(
		ratelimit.NewLimiter(windows, ratelimit.WithLogger(log)),
		cfg.Limits.OTPRequests, cfg.Limits.OTPWindow,
		ratelimit.WithMiddlewareLogger(log),
		ratelimit.WithMetrics(m),
	)

	lands := landhandler.New(registry, log)
	app.Router = httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		Metrics:        m,
		Gatherer:       reg,
		Validator:      jwttoken.NewValidator(tokens),
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthChecks:   healthChecks,
		Traced:         cfg.OTel.Enabled && cfg.OTel.Endpoint != "",
		Public: []httpapi.Routes{
			httpapi.Throttled(authhandler.New(otp, log), otpLimit.ByClientIP("otp")),
			lands.Public(),
			documents.NewHandler(docs),
		},
		Protected: []httpapi.Routes{
			usershandler.New(app.Users, log),
			lands,
			marketplacehandler.New(market, log),
			tradehandler.New(trades, transfers, log),
		},
	})
	return app, nil
}

// openPersistence selects Postgres when a URL is configured and in-memory
// stores otherwise.
func openPersistence(ctx context.Context, cfg config.Config, log *slog.Logger) (*persistence, error) {
	if cfg.Postgres.URL == "" {
		log.Warn("no postgres configured, using in-memory stores")
		return &persistence{
			runner:   tx.NewShardedRunner(cfg.Workflow.TxTimeout),
			lands:    landstore.NewInMemory(),
			requests: tradestore.NewInMemory(),
			users:    userstore.NewInMemory(),
			audit:    auditmemory.NewInMemoryStore(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &persistence{
		db:       db,
		runner:   tx.NewSQLRunner(db, cfg.Workflow.TxTimeout),
		lands:    landstore.NewPostgres(db),
		requests: tradestore.NewPostgres(db),
		users:    userstore.NewPostgres(db),
		audit:    auditpg.New(db),
	}, nil
}

func openDocuments(ctx context.Context, cfg config.Config) (documentStore, error) {
	if cfg.Storage.Bucket == "" {
		return documents.NewMemory(cfg.Server.PublicBaseURL), nil
	}
	client, err := documents.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}
	return documents.NewS3Store(client, cfg.Storage.Bucket, cfg.Storage.PublicURL), nil
}

func openSender(ctx context.Context, cfg config.Config, log *slog.Logger) (Mailer, error) {
	if cfg.Email.From == "" {
		return notify.NewLogSender(log), nil
	}
	client, err := notify.NewSESClient(ctx, cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("ses: %w", err)
	}
	return notify.NewSESSender(client, cfg.Email.From), nil
}

type relay struct {
	*worker.Relay
	client *kgo.Client
}

func (r relay) close() error {
	r.client.Close()
	return nil
}

func openRelay(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger, m *metrics.Metrics) (relay, error) {
	client, err := worker.NewKafkaClient(cfg.Kafka.Brokers)
	if err != nil {
		return relay{}, fmt.Errorf("kafka: %w", err)
	}
	if err := worker.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3, 1); err != nil {
		client.Close()
		return relay{}, fmt.Errorf("kafka topic: %w", err)
	}
	return relay{
		Relay: worker.NewRelay(db, client, cfg.Kafka.AuditTopic,
			worker.WithLogger(log),
			worker.WithCounters(m.OutboxPublished, m.OutboxFailures),
		),
		client: client,
	}, nil
}
