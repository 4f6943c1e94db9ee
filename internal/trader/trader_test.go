package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cdcrypto/pumpfun-twitter-bot/internal/eligibility"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/guard"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/market"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/orders"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/stream"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/swap"
)

type swapCall struct {
	mint     string
	amount   float64
	slippage float64
}

type fakeSwapper struct {
	result  swap.Result
	price   float64
	priceOK bool
	buys    []swapCall
	sells   []swapCall
	quotes  []swapCall
}

func (f *fakeSwapper) Buy(ctx context.Context, mint string, amountSol, slippagePercent float64) swap.Result {
	f.buys = append(f.buys, swapCall{mint, amountSol, slippagePercent})
	return f.result
}

func (f *fakeSwapper) Sell(ctx context.Context, mint string, amountTokens, slippagePercent float64) swap.Result {
	f.sells = append(f.sells, swapCall{mint, amountTokens, slippagePercent})
	return f.result
}

func (f *fakeSwapper) TokenPrice(ctx context.Context, mint string, amountSol, slippagePercent float64) (float64, bool) {
	f.quotes = append(f.quotes, swapCall{mint, amountSol, slippagePercent})
	return f.price, f.priceOK
}

type fakeMarket struct {
	record  market.TokenRecord
	known   bool
	lookups int
}

func (f *fakeMarket) ResolveToken(ctx context.Context, identifier string, venue stream.Category) (market.TokenRecord, bool) {
	f.lookups++
	return f.record, f.known
}

type fakeHoldings struct {
	records []market.TokenRecord
	err     error
}

func (f *fakeHoldings) SearchOwnedTokens(ctx context.Context, ownerAddress string) ([]market.TokenRecord, error) {
	return f.records, f.err
}

type fixture struct {
	trader  *Trader
	swapper *fakeSwapper
	markets *fakeMarket
	book    *orders.Book
	clock   *time.Time
}

func defaultConfig() eligibility.Config {
	return eligibility.Config{
		AutoBuyEnabled:       true,
		FollowerCheckEnabled: true,
		MinFollowers:         1000,
		AgeCheckEnabled:      true,
		MaxAgeMinutes:        5,
		BuyAmountSol:         0.1,
		SlippagePercent:      1.0,
		Buylist:              eligibility.NewHandleList(),
		Blacklist:            eligibility.NewHandleList(),
	}
}

func newFixture(t *testing.T, cfg eligibility.Config) *fixture {
	t.Helper()
	now := time.Now()
	clock := &now
	logger := zaptest.NewLogger(t)

	swapper := &fakeSwapper{result: swap.Result{Success: true, Signature: "sig1"}}
	markets := &fakeMarket{
		record: market.TokenRecord{
			Symbol:      "TST",
			Name:        "Test Token",
			CreatedUnix: now.Add(-2 * time.Minute).Unix(),
			MintAddress: "Mint111",
		},
		known: true,
	}
	book := orders.NewBook(logger, orders.WithPurgeDelay(time.Hour))
	g := guard.New(logger, guard.WithClock(func() time.Time { return *clock }))

	return &fixture{
		trader:  New(g, markets, swapper, &fakeHoldings{}, book, "Owner111", cfg, logger),
		swapper: swapper,
		markets: markets,
		book:    book,
		clock:   clock,
	}
}

func mention(handle string, followers int) stream.Mention {
	return stream.Mention{
		ID:          "1",
		Category:    stream.CategoryPumpFun,
		MintAddress: "Mint111",
		Account:     stream.Account{ScreenName: handle, FollowersCount: followers},
	}
}

func TestAutoBuyHappyPath(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	out := fx.trader.HandleMention(context.Background(), mention("alice", 5000))
	require.True(t, out.Attempted, out.Reason)

	require.Len(t, fx.swapper.buys, 1)
	assert.Equal(t, swapCall{"Mint111", 0.1, 1.0}, fx.swapper.buys[0])

	order, ok := fx.book.Get(out.OrderID)
	require.True(t, ok)
	assert.Equal(t, orders.StatusSuccess, order.Status)
	assert.Equal(t, "sig1", order.Signature)
	assert.Equal(t, orders.SideBuy, order.Side)
	assert.Equal(t, "TST", order.TokenSymbol)
}

func TestAutoBuyDeclinedByFollowerCount(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	out := fx.trader.HandleMention(context.Background(), mention("smallaccount", 200))
	assert.False(t, out.Attempted)
	assert.Contains(t, out.Reason, "follower count")
	assert.Empty(t, fx.swapper.buys)
	assert.Empty(t, fx.book.Active(), "declined mentions leave no order record")
}

func TestAutoBuyBlacklistedHandle(t *testing.T) {
	cfg := defaultConfig()
	cfg.Blacklist = eligibility.NewHandleList("scammer")
	fx := newFixture(t, cfg)

	out := fx.trader.HandleMention(context.Background(), mention("Scammer", 100000))
	assert.False(t, out.Attempted)
	assert.Contains(t, out.Reason, "blacklisted")
	assert.Empty(t, fx.swapper.buys)
}

func TestBlacklistedMentionsLeaveAttemptBudgetIntact(t *testing.T) {
	cfg := defaultConfig()
	cfg.Blacklist = eligibility.NewHandleList("scammer")
	cfg.Buylist = eligibility.NewHandleList("insider")
	fx := newFixture(t, cfg)

	// A spamming blacklisted account must not consume the token's
	// attempt budget or trigger any market lookups.
	for i := 0; i < 5; i++ {
		out := fx.trader.HandleMention(context.Background(), mention("scammer", 100000))
		assert.False(t, out.Attempted)
		assert.Contains(t, out.Reason, "blacklisted")
	}
	assert.Zero(t, fx.markets.lookups)

	out := fx.trader.HandleMention(context.Background(), mention("insider", 10))
	require.True(t, out.Attempted, out.Reason)
	require.Len(t, fx.swapper.buys, 1)
}

func TestAutoBuyDisabledSkipsEverything(t *testing.T) {
	cfg := defaultConfig()
	cfg.AutoBuyEnabled = false
	fx := newFixture(t, cfg)

	out := fx.trader.HandleMention(context.Background(), mention("alice", 5000))
	assert.False(t, out.Attempted)
	assert.Zero(t, fx.markets.lookups, "no market traffic while auto-buy is off")
}

func TestMentionWithoutMintIgnored(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	m := mention("alice", 5000)
	m.MintAddress = ""
	out := fx.trader.HandleMention(context.Background(), m)
	assert.False(t, out.Attempted)
	assert.Zero(t, fx.markets.lookups)
}

func TestUnresolvableTokenIsSkipped(t *testing.T) {
	fx := newFixture(t, defaultConfig())
	fx.markets.known = false

	out := fx.trader.HandleMention(context.Background(), mention("alice", 5000))
	assert.False(t, out.Attempted)
	assert.Equal(t, "token data unavailable", out.Reason)
	assert.Empty(t, fx.swapper.buys)
}

func TestIntervalGateBlocksBackToBackMentions(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	first := fx.trader.HandleMention(context.Background(), mention("alice", 5000))
	require.True(t, first.Attempted)

	second := fx.trader.HandleMention(context.Background(), mention("bob", 5000))
	assert.False(t, second.Attempted)
	assert.Contains(t, second.Reason, "too soon")

	*fx.clock = fx.clock.Add(3 * time.Second)
	third := fx.trader.HandleMention(context.Background(), mention("carol", 5000))
	assert.True(t, third.Attempted)
}

func TestFailedSwapRecordsErrorOrder(t *testing.T) {
	fx := newFixture(t, defaultConfig())
	fx.swapper.result = swap.Result{Signature: "sig2", Err: "transaction failed: slippage"}

	out := fx.trader.HandleMention(context.Background(), mention("alice", 5000))
	require.True(t, out.Attempted)

	order, ok := fx.book.Get(out.OrderID)
	require.True(t, ok)
	assert.Equal(t, orders.StatusError, order.Status)
	assert.Equal(t, "sig2", order.Signature)
	assert.Contains(t, order.Error, "slippage")
}

func TestManualBuyBypassesEligibility(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinFollowers = 1_000_000 // auto path would decline everything
	fx := newFixture(t, cfg)

	out, err := fx.trader.Buy(context.Background(), "Mint111", 0.25, 2.0)
	require.NoError(t, err)
	require.True(t, out.Attempted)
	assert.Equal(t, swapCall{"Mint111", 0.25, 2.0}, fx.swapper.buys[0])
}

func TestManualBuyStillRateGuarded(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	_, err := fx.trader.Buy(context.Background(), "Mint111", 0.1, 1.0)
	require.NoError(t, err)
	_, err = fx.trader.Buy(context.Background(), "Mint111", 0.1, 1.0)
	assert.Error(t, err)
	assert.Len(t, fx.swapper.buys, 1)
}

func TestManualSellValidatesAmount(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	_, err := fx.trader.Sell(context.Background(), "Mint111", -1, 1.0)
	assert.Error(t, err)
	assert.Empty(t, fx.swapper.sells)
}

func TestManualSellCreatesOrder(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	out, err := fx.trader.Sell(context.Background(), "Mint111", 150, 1.0)
	require.NoError(t, err)
	order, ok := fx.book.Get(out.OrderID)
	require.True(t, ok)
	assert.Equal(t, orders.SideSell, order.Side)
	assert.Equal(t, float64(150), order.Amount)
	assert.Equal(t, orders.StatusSuccess, order.Status)
}

func TestSetConfigTakesEffect(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	cfg := fx.trader.Config()
	cfg.AutoBuyEnabled = false
	fx.trader.SetConfig(cfg)

	out := fx.trader.HandleMention(context.Background(), mention("alice", 5000))
	assert.Equal(t, "auto-buy is disabled", out.Reason)
}

func TestHoldingsPassthrough(t *testing.T) {
	fx := newFixture(t, defaultConfig())

	records, err := fx.trader.Holdings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	failing := New(guard.New(zaptest.NewLogger(t)), fx.markets, fx.swapper,
		&fakeHoldings{err: errors.New("rpc down")}, fx.book, "Owner111",
		defaultConfig(), zaptest.NewLogger(t))
	_, err = failing.Holdings(context.Background())
	assert.Error(t, err)
}

func TestTokenPriceUsesConfiguredBuySize(t *testing.T) {
	fx := newFixture(t, defaultConfig())
	fx.swapper.price = 0.0000005
	fx.swapper.priceOK = true

	price, ok := fx.trader.TokenPrice(context.Background(), "Mint111")
	require.True(t, ok)
	assert.Equal(t, 0.0000005, price)
	require.Len(t, fx.swapper.quotes, 1)
	assert.Equal(t, swapCall{"Mint111", 0.1, 1.0}, fx.swapper.quotes[0])
}
