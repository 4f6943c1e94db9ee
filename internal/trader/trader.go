// internal/trader/trader.go
package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cdcrypto/pumpfun-twitter-bot/internal/eligibility"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/guard"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/logger"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/market"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/orders"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/stream"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/swap"
)

// Swapper executes swaps and quotes prices. Satisfied by *swap.Engine.
type Swapper interface {
	Buy(ctx context.Context, mintAddress string, amountSol, slippagePercent float64) swap.Result
	Sell(ctx context.Context, mintAddress string, amountTokens, slippagePercent float64) swap.Result
	TokenPrice(ctx context.Context, mintAddress string, amountSol, slippagePercent float64) (float64, bool)
}

// MarketSource resolves a token identifier to its market record.
// Satisfied by *market.Gateway.
type MarketSource interface {
	ResolveToken(ctx context.Context, identifier string, venue stream.Category) (market.TokenRecord, bool)
}

// HoldingsSource lists fungible tokens owned by a wallet. Satisfied by
// *market.AssetClient.
type HoldingsSource interface {
	SearchOwnedTokens(ctx context.Context, ownerAddress string) ([]market.TokenRecord, error)
}

// Outcome reports what the trader did with one mention, for logging and
// for tests.
type Outcome struct {
	Attempted bool
	Reason    string
	OrderID   string
	Result    *swap.Result
}

// Trader wires mention intake to swap execution: the handle lists are
// screened, then the rate guard runs, market data is fetched, the
// remaining eligibility rules apply, and only then does a buy fire.
// Every executed trade gets an order record.
type Trader struct {
	guard    *guard.Guard
	markets  MarketSource
	swapper  Swapper
	holdings HoldingsSource
	book     *orders.Book
	owner    string
	logger   *zap.Logger

	mu  sync.RWMutex
	cfg eligibility.Config
}

func New(g *guard.Guard, markets MarketSource, swapper Swapper, holdings HoldingsSource, book *orders.Book, owner string, cfg eligibility.Config, logger *zap.Logger) *Trader {
	return &Trader{
		guard:    g,
		markets:  markets,
		swapper:  swapper,
		holdings: holdings,
		book:     book,
		owner:    owner,
		cfg:      cfg,
		logger:   logger.Named("trader"),
	}
}

// SetConfig swaps the eligibility settings at runtime. In-flight
// evaluations keep the snapshot they started with.
func (t *Trader) SetConfig(cfg eligibility.Config) {
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
}

// Config returns the current eligibility settings.
func (t *Trader) Config() eligibility.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Subscriber adapts the trader for the mention feed.
func (t *Trader) Subscriber() stream.Subscriber {
	return func(mentions []stream.Mention, category stream.Category) {
		for _, m := range mentions {
			t.HandleMention(context.Background(), m)
		}
	}
}

// HandleMention evaluates one mention for an automatic buy.
//
// Order of gates matters: the handle lists run before the guard, so a
// blacklisted account spamming a token cannot drain that token's
// attempt budget. The global interval check consumes nothing, so a
// burst of mentions does not burn the budget either. The per-token
// slot is taken before market data is fetched, which means a fetch
// failure still costs an attempt. That is deliberate: a token whose
// data cannot be fetched should not be hammered.
func (t *Trader) HandleMention(ctx context.Context, m stream.Mention) Outcome {
	mint := m.MintAddress
	if mint == "" {
		return Outcome{Reason: "mention carries no token identifier"}
	}
	cfg := t.Config()
	if !cfg.AutoBuyEnabled {
		return Outcome{Reason: "auto-buy is disabled"}
	}

	if d, settled := eligibility.ScreenHandle(m.Account.ScreenName, cfg); settled && !d.Buy {
		t.logger.Info("auto-buy declined",
			zap.String("mint", mint),
			zap.String("handle", m.Account.ScreenName),
			zap.String("reason", d.Reason))
		return Outcome{Reason: d.Reason}
	}

	if v := t.guard.CheckInterval(); !v.Allow {
		t.logger.Debug("mention skipped", zap.String("mint", mint), zap.String("reason", v.Reason))
		return Outcome{Reason: v.Reason}
	}
	if v := t.guard.ShouldAttempt(mint); !v.Allow {
		t.logger.Debug("mention skipped", zap.String("mint", mint), zap.String("reason", v.Reason))
		return Outcome{Reason: v.Reason}
	}

	record, ok := t.markets.ResolveToken(ctx, mint, m.Category)
	if !ok {
		t.logger.Warn("token data unavailable, skipping",
			zap.String("mint", mint), zap.String("venue", string(m.Category)))
		return Outcome{Reason: "token data unavailable"}
	}

	decision := eligibility.Decide(eligibility.DecisionInput{
		Handle:           m.Account.ScreenName,
		FollowerCount:    m.Account.FollowersCount,
		TokenCreatedUnix: record.CreatedUnix,
		Now:              time.Now(),
	}, cfg)
	if !decision.Buy {
		t.logger.Info("auto-buy declined",
			zap.String("mint", mint),
			zap.String("handle", m.Account.ScreenName),
			zap.String("reason", decision.Reason))
		return Outcome{Reason: decision.Reason}
	}

	opLog := logger.WithOperation(t.logger, "auto-buy")
	opLog.Info("auto-buy triggered",
		zap.String("mint", mint),
		zap.String("symbol", record.Symbol),
		zap.String("handle", m.Account.ScreenName),
		zap.String("reason", decision.Reason),
		zap.Float64("amount_sol", cfg.BuyAmountSol))

	t.guard.RecordAttempt()
	order := t.book.Create(record.Symbol, record.Name, orders.SideBuy, cfg.BuyAmountSol, mint)
	result := t.swapper.Buy(ctx, mint, cfg.BuyAmountSol, cfg.SlippagePercent)
	t.settle(order.ID, result)
	opLog.Info("auto-buy settled",
		zap.String("order", order.ID),
		zap.Bool("success", result.Success))

	return Outcome{Attempted: true, Reason: decision.Reason, OrderID: order.ID, Result: &result}
}

// Buy executes a manual purchase, bypassing eligibility but not the
// rate guard.
func (t *Trader) Buy(ctx context.Context, mintAddress string, amountSol, slippagePercent float64) (Outcome, error) {
	if v := t.guard.CheckInterval(); !v.Allow {
		return Outcome{Reason: v.Reason}, fmt.Errorf("buy rejected: %s", v.Reason)
	}
	if v := t.guard.ShouldAttempt(mintAddress); !v.Allow {
		return Outcome{Reason: v.Reason}, fmt.Errorf("buy rejected: %s", v.Reason)
	}

	symbol, name := t.describe(ctx, mintAddress)
	t.guard.RecordAttempt()
	order := t.book.Create(symbol, name, orders.SideBuy, amountSol, mintAddress)
	result := t.swapper.Buy(ctx, mintAddress, amountSol, slippagePercent)
	t.settle(order.ID, result)
	return Outcome{Attempted: true, OrderID: order.ID, Result: &result}, nil
}

// Sell executes a manual sale. Sales are not rate guarded.
func (t *Trader) Sell(ctx context.Context, mintAddress string, amountTokens, slippagePercent float64) (Outcome, error) {
	if amountTokens <= 0 {
		return Outcome{}, fmt.Errorf("sell amount must be positive, got %f", amountTokens)
	}
	symbol, name := t.describe(ctx, mintAddress)
	order := t.book.Create(symbol, name, orders.SideSell, amountTokens, mintAddress)
	result := t.swapper.Sell(ctx, mintAddress, amountTokens, slippagePercent)
	t.settle(order.ID, result)
	return Outcome{Attempted: true, OrderID: order.ID, Result: &result}, nil
}

// TokenPrice quotes the current SOL price of one token at the
// configured buy size.
func (t *Trader) TokenPrice(ctx context.Context, mintAddress string) (float64, bool) {
	cfg := t.Config()
	return t.swapper.TokenPrice(ctx, mintAddress, cfg.BuyAmountSol, cfg.SlippagePercent)
}

// Holdings lists the wallet's launchpad tokens.
func (t *Trader) Holdings(ctx context.Context) ([]market.TokenRecord, error) {
	if t.holdings == nil {
		return nil, fmt.Errorf("holdings lookup is not configured")
	}
	return t.holdings.SearchOwnedTokens(ctx, t.owner)
}

func (t *Trader) settle(orderID string, result swap.Result) {
	if result.Success {
		if err := t.book.Complete(orderID, result.Signature); err != nil {
			t.logger.Warn("order completion failed", zap.String("order", orderID), zap.Error(err))
		}
		return
	}
	msg := "swap failed"
	if result.Err != "" {
		msg = result.Err
	}
	if err := t.book.Fail(orderID, result.Signature, msg); err != nil {
		t.logger.Warn("order failure record failed", zap.String("order", orderID), zap.Error(err))
	}
}

func (t *Trader) describe(ctx context.Context, mintAddress string) (symbol, name string) {
	if record, ok := t.markets.ResolveToken(ctx, mintAddress, stream.CategoryPumpFun); ok {
		return record.Symbol, record.Name
	}
	short := mintAddress
	if len(short) > 8 {
		short = short[:8]
	}
	return short, short
}
