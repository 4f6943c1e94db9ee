// cmd/bot/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cdcrypto/pumpfun-twitter-bot/internal/config"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/eligibility"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/guard"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/logger"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/market"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/orders"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/stream"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/swap"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/trader"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/wallet"
	"github.com/cdcrypto/pumpfun-twitter-bot/pkg/blockchain/solana"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "bot exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	appLog := logger.WithComponent(log.Logger, "bot")

	appLog.Info("starting mention trading bot",
		zap.Int("rpc_endpoints", len(cfg.RPCList)),
		zap.String("feed", cfg.FeedURL))

	w, err := wallet.New(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	appLog.Info("wallet loaded", zap.String("address", w.String()))

	chain, err := solana.NewClient(cfg.RPCList, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to build rpc client: %w", err)
	}
	if healthy, total := chain.HealthCheck(); healthy < total {
		appLog.Warn("some rpc endpoints are not responding",
			zap.Int("healthy", healthy), zap.Int("total", total))
	}
	if balance, err := chain.GetBalance(context.Background(), w.PublicKey); err == nil {
		appLog.Info("wallet balance", zap.Float64("sol", float64(balance)/swap.LamportsPerSOL))
	}

	jupiter := swap.NewJupiterClient(cfg.QuoteAPIURL, log.Logger)
	engine, err := swap.NewEngine(chain, w, jupiter, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to build swap engine: %w", err)
	}

	gateway := market.NewGateway(cfg.PumpAPIURL, cfg.DexAPIURL, log.Logger)
	gateway.UseCurveReader(market.NewCurveReader(chain, log.Logger))
	assets := market.NewAssetClient(cfg.RPCList[0], log.Logger)
	book := orders.NewBook(log.Logger)
	rateGuard := guard.New(log.Logger)

	bot := trader.New(rateGuard, gateway, engine, assets, book, w.String(),
		tradingConfig(cfg), log.Logger)

	// One stream client per process; the feed rejects parallel sockets
	// from the same origin.
	feed := stream.NewClient(cfg.FeedURL, nil, log.Logger)
	unsubscribe := feed.Subscribe(bot.Subscriber())
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		feed.Connect()
		<-ctx.Done()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		appLog.Info("shutting down")
		feed.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	appLog.Info("bot stopped")
	return nil
}

func tradingConfig(cfg *config.Config) eligibility.Config {
	return eligibility.Config{
		AutoBuyEnabled:       cfg.Trading.AutoBuyEnabled,
		FollowerCheckEnabled: cfg.Trading.FollowerCheckEnabled,
		MinFollowers:         cfg.Trading.MinFollowers,
		AgeCheckEnabled:      cfg.Trading.AgeCheckEnabled,
		MaxAgeMinutes:        cfg.Trading.MaxAgeMinutes,
		BuyAmountSol:         cfg.Trading.BuyAmountSol,
		SlippagePercent:      cfg.Trading.SlippagePercent,
		Buylist:              eligibility.NewHandleList(cfg.Trading.Buylist...),
		Blacklist:            eligibility.NewHandleList(cfg.Trading.Blacklist...),
	}
}
