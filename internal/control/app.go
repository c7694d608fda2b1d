// Package control wires configuration, stores, chain providers and the
// HTTP transport into a runnable application.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/textchain/internal/core/balance"
	"github.com/vietddude/textchain/internal/core/config"
	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/core/processor"
	"github.com/vietddude/textchain/internal/core/registry"
	"github.com/vietddude/textchain/internal/core/wallet"
	"github.com/vietddude/textchain/internal/health"
	"github.com/vietddude/textchain/internal/infra/chain/evm"
	redisclient "github.com/vietddude/textchain/internal/infra/redis"
	"github.com/vietddude/textchain/internal/infra/rpc"
	"github.com/vietddude/textchain/internal/infra/storage"
	"github.com/vietddude/textchain/internal/infra/storage/memory"
	"github.com/vietddude/textchain/internal/infra/storage/postgres"
	"github.com/vietddude/textchain/internal/platform/ratelimiter"
	"github.com/vietddude/textchain/internal/server"
)

// App is the main application struct that manages the service lifecycle.
type App struct {
	cfg         *config.AppConfig
	registry    *registry.Registry
	processor   *processor.Processor
	server      *server.Server
	monitor     *health.Monitor
	clients     []*rpc.ChainClient
	vouchers    storage.VoucherRepository
	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger
}

// Options adjust how NewApp treats its dependencies.
type Options struct {
	// SkipMigrations leaves the schema untouched at startup.
	SkipMigrations bool
}

// NewApp creates a new App instance with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	app := &App{
		cfg: cfg,
		log: slog.Default(),
	}

	// 1. Chains
	app.registry = registry.FromConfig(cfg.Chains)
	app.monitor = health.NewMonitor()

	tracker := rpc.NewBudget(cfg.Chains)
	adapters := make(map[domain.ChainKey]balance.Provider, app.registry.Len())
	for _, chainCfg := range cfg.Chains {
		descriptor, ok := app.registry.Resolve(chainCfg.Key)
		if !ok {
			continue
		}

		client := rpc.NewChainClient(chainCfg, tracker, app.log)
		app.clients = append(app.clients, client)
		app.monitor.AddChain(chainCfg.Key, client.Providers())

		if len(chainCfg.Providers) == 0 {
			app.log.Warn("Chain has no RPC providers, balances will be skipped", "chain", chainCfg.Key)
			continue
		}
		adapters[descriptor.Key] = evm.NewBalanceAdapter(descriptor, client)
		app.log.Info("Chain initialized", "chain", chainCfg.Key, "chain_id", descriptor.ChainID, "providers", len(chainCfg.Providers))
	}

	aggregator := balance.NewAggregator(app.registry, adapters,
		balance.WithTimeout(cfg.Aggregator.Timeout),
		balance.WithLogger(app.log),
	)

	// 2. Storage
	procOpts := []processor.Option{processor.WithLogger(app.log)}
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		app.db = db

		if !opts.SkipMigrations {
			if err := db.Migrate(); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to migrate db: %w", err)
			}
		}

		app.vouchers = postgres.NewVoucherRepo(db)
		procOpts = append(procOpts,
			processor.WithUsers(postgres.NewUserRepo(db)),
			processor.WithVouchers(app.vouchers),
			processor.WithDeposits(postgres.NewDepositRepo(db)),
			processor.WithAddressBook(postgres.NewAddressBookRepo(db)),
		)
		app.monitor.AddDependency("database", db, true)
		app.log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		app.vouchers = memory.NewVoucherRepo(store)
		procOpts = append(procOpts,
			processor.WithUsers(memory.NewUserRepo(store)),
			processor.WithVouchers(app.vouchers),
			processor.WithDeposits(memory.NewDepositRepo(store)),
			processor.WithAddressBook(memory.NewAddressBookRepo(store)),
		)
		app.log.Info("Using Memory storage")
	}

	app.processor = processor.New(app.registry, aggregator, wallet.NewGenerator(), procOpts...)

	// 3. Webhook dedupe
	var dedupe server.Deduper
	if cfg.Redis.Enabled() {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			app.log.Warn("Failed to connect to Redis, using in-memory dedupe", "error", err)
		} else {
			app.redisClient = client
			app.monitor.AddDependency("redis", client, false)
			dedupe = client
		}
	}
	if dedupe == nil {
		dedupe = server.NewMemoryDeduper(cfg.Redis.DedupeTTL)
	}

	// 4. HTTP
	app.server = server.NewServer(server.Config{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		TwilioPath:     cfg.SMS.TwilioPath,
		JSONPath:       cfg.SMS.JSONPath,

		TwilioAccountSID: cfg.SMS.AccountSID,
		TwilioAuthToken:  cfg.SMS.AuthToken,
		TwilioWebhookURL: cfg.SMS.WebhookURL,
	}, app.processor,
		server.WithDeduper(dedupe),
		server.WithLimiter(ratelimiter.New(cfg.RateLimit.PerSenderRPS, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)),
		server.WithMonitor(app.monitor),
		server.WithLogger(app.log),
	)

	return app, nil
}

// Processor returns the command engine.
func (a *App) Processor() *processor.Processor {
	return a.processor
}

// Vouchers returns the voucher store the engine redeems against.
func (a *App) Vouchers() storage.VoucherRepository {
	return a.vouchers
}

// Handler returns the HTTP handler without starting a listener.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Start starts the HTTP server in the background.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()
	a.log.Info("HTTP server listening",
		"port", a.cfg.Server.Port,
		"twilio_path", a.cfg.SMS.TwilioPath,
		"json_path", a.cfg.SMS.JSONPath,
		"sms_number", a.cfg.SMS.PhoneNumber,
		"signature_check", a.cfg.SMS.AuthToken != "" && a.cfg.SMS.WebhookURL != "",
		"chains", a.registry.Len(),
	)
	return nil
}

// Stop shuts the server down and releases every connection.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping TextChain...")
	err := a.server.Stop(ctx)
	a.Close()
	return err
}

// Close releases stores and RPC clients. It is safe to call after Stop.
func (a *App) Close() {
	for _, c := range a.clients {
		if err := c.Close(); err != nil {
			a.log.Warn("Failed to close RPC client", "error", err)
		}
	}
	a.clients = nil

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
		a.redisClient = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
		a.db = nil
	}
}
