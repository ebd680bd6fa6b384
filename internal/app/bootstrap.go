package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"token_vote/internal/api"
	"token_vote/internal/cache"
	"token_vote/internal/derive"
	"token_vote/internal/domain"
	"token_vote/internal/engine"
	"token_vote/internal/event"
	"token_vote/internal/infra"
	"token_vote/internal/infra/storage"
	"token_vote/internal/infra/wallet"
	"token_vote/internal/ledger"
	"token_vote/internal/market"
	"token_vote/internal/vote"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.IconDownloader

	Ledger    *ledger.Client
	Deriver   *derive.Deriver
	Market    *market.Reader
	Wallet    *wallet.Keypair
	Publisher domain.VotePublisher
	Session   *engine.Session
	Watcher   *engine.WalletWatcher
	Hub       *api.Hub
	Router    http.Handler
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component. Nothing is started yet.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Token Vote...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Initialize Icon Downloader
	downloader, err := infra.NewIconDownloader(cfg.Storage.IconsDir)
	if err != nil {
		return err
	}
	b.Downloader = downloader
	slog.Info("✅ Icon downloader ready")

	// 5. Ledger, derivation, vote state
	program, err := domain.ParseAddress(cfg.Ledger.ProgramID)
	if err != nil {
		return &domain.ConfigError{Field: "ledger.program_id", Err: err}
	}
	b.Deriver = derive.New(program)
	b.Ledger = ledger.NewClient(cfg.Ledger.RPCURL, ledger.Commitment(cfg.Ledger.Commitment),
		ledger.WithHTTPClient(&http.Client{Timeout: cfg.LedgerTimeout()}),
		ledger.WithConfirmPoll(cfg.ConfirmPoll()),
	)
	reader := vote.NewStateReader(b.Ledger, b.Deriver, vote.WithOwnerCheck(cfg.Security.VerifyFlagOwner))
	slog.Info("✅ Ledger client ready", slog.String("rpc", cfg.Ledger.RPCURL), slog.String("program", program.String()))

	// 6. Wallet
	b.Wallet = wallet.NewKeypair(cfg.Wallet.KeypairPath, b.Ledger)
	if cfg.Wallet.AutoConnect {
		if err := b.Wallet.Connect(); err != nil {
			return fmt.Errorf("wallet auto-connect: %w", err)
		}
	}
	submitter := vote.NewSubmitter(b.Ledger, b.Wallet, reader, b.Deriver, infra.GlobalMetrics)

	// 7. Market data behind the TTL cache
	marketCache := cache.New[string, market.Payload](cfg.CacheTTL(), nil)
	b.Market = market.NewReader(cfg.Market.BaseURL, marketCache,
		market.WithHTTPClient(&http.Client{Timeout: cfg.MarketTimeout()}),
	)

	// 8. Vote feed
	if len(cfg.Kafka.Brokers) > 0 {
		b.Publisher = event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		slog.Info("✅ Kafka publisher ready", slog.String("topic", cfg.Kafka.Topic))
	} else {
		b.Publisher = event.NopPublisher{}
	}

	// 9. Session, watcher, presentation
	b.Hub = api.NewHub(infra.GlobalMetrics)
	b.Session = engine.NewSession(256, engine.Deps{
		Market:    b.Market,
		Reader:    reader,
		Submitter: submitter,
		History:   b.Storage,
		Publisher: b.Publisher,
		Icons:     b.Downloader,
		Metrics:   infra.GlobalMetrics,
	}, b.Hub.Publish)
	b.Watcher = engine.NewWalletWatcher(b.Wallet, b.Session.Inbox(), cfg.WalletPoll())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		infra.NewPrometheusCollector(infra.GlobalMetrics),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := api.NewHandler(b.Session, b.Market, b.Storage, b.Wallet, b.Hub)
	b.Router = api.NewRouter(handler, registry)

	return nil
}

// CheckLedger pings the RPC endpoint. Failure is reported, not fatal.
func (b *Bootstrap) CheckLedger(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.Ledger.Ping(ctx); err != nil {
		slog.Warn("⚠️ Ledger health check failed", slog.Any("error", err))
		return
	}
	slog.Info("✅ Ledger healthy")
}

// SyncAssets fills in missing icons for tracked tokens in the background
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	slog.Info("🔄 Starting asset synchronization...")

	tokens, err := b.Storage.ListTokens(100)
	if err != nil {
		slog.Error("Failed to list tracked tokens", slog.Any("error", err))
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, token := range tokens {
		if token.IconPath != "" {
			continue
		}
		wg.Add(1)
		go func(contract string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			view := b.Market.FetchTokenData(ctx, contract)
			if view == nil || view.ImageURL == "" {
				return
			}

			path, err := b.Downloader.DownloadIcon(contract, view.ImageURL)
			if err != nil {
				slog.Warn("Failed to download icon", slog.String("contract", contract), slog.Any("error", err))
				return
			}
			if err := b.Storage.SetTokenIcon(contract, path); err != nil {
				slog.Error("Failed to store icon path", slog.String("contract", contract), slog.Any("error", err))
			}
		}(token.Contract)
	}

	wg.Wait()
	slog.Info("✨ Asset synchronization completed")
}

// Close releases resources held by Initialize.
func (b *Bootstrap) Close() {
	if b.Wallet != nil {
		b.Wallet.Disconnect()
	}
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			slog.Warn("Failed to close publisher", slog.Any("error", err))
		}
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close storage", slog.Any("error", err))
		}
	}
}
