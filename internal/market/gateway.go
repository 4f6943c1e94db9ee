// internal/market/gateway.go
package market

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cdcrypto/pumpfun-twitter-bot/internal/stream"
)

const (
	metadataTTL = 60 * time.Second
	reservesTTL = 10 * time.Second
)

// Gateway resolves token identifiers into normalized TokenRecords,
// trying venue-specific strategies in priority order. Expected failures
// ("token not found", upstream hiccup) are reported as an absent
// result, never as an error to the caller.
type Gateway struct {
	pumpAPIURL string
	dexAPIURL  string
	httpClient *http.Client
	curve      *CurveReader
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	record  TokenRecord
	expires time.Time
}

// NewGateway builds a gateway against the given upstream base URLs.
// pumpAPIURL may point at the pump.fun API directly or at a local
// instance of the proxy in internal/proxy.
func NewGateway(pumpAPIURL, dexAPIURL string, logger *zap.Logger) *Gateway {
	return &Gateway{
		pumpAPIURL: pumpAPIURL,
		dexAPIURL:  dexAPIURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("market"),
		cache:      make(map[string]cacheEntry),
	}
}

// ResolveToken returns the normalized record for an identifier, or
// ok=false when no strategy could resolve it. Resolution is idempotent:
// the same identifier yields the same record within the cache TTL.
func (g *Gateway) ResolveToken(ctx context.Context, identifier string, venue stream.Category) (TokenRecord, bool) {
	if identifier == "" {
		return TokenRecord{}, false
	}

	if record, ok := g.cached(identifier); ok {
		return record, true
	}

	var (
		record TokenRecord
		ok     bool
	)
	switch venue {
	case stream.CategoryPumpFun:
		record, ok = g.resolvePumpFun(ctx, identifier)
		if !ok {
			record, ok = g.resolveFromCurve(ctx, identifier)
		}
	case stream.CategoryDexScreener:
		record, ok = g.resolveDexScreener(ctx, identifier)
	default:
		g.logger.Warn("unknown venue", zap.String("venue", string(venue)))
		return TokenRecord{}, false
	}
	if !ok {
		return TokenRecord{}, false
	}

	g.store(identifier, record, metadataTTL)
	return record, true
}

// UseCurveReader enables the on-chain fallback: when the coins endpoint
// cannot resolve an identifier, reserves are read from the bonding
// curve account directly.
func (g *Gateway) UseCurveReader(r *CurveReader) {
	g.curve = r
}

// resolveFromCurve builds a minimal record from on-chain curve state.
// No metadata lives on the curve account, so symbol and name fall back
// to a shortened mint.
func (g *Gateway) resolveFromCurve(ctx context.Context, identifier string) (TokenRecord, bool) {
	if g.curve == nil {
		return TokenRecord{}, false
	}
	data, ok := g.curve.GetCoinData(ctx, identifier)
	if !ok {
		return TokenRecord{}, false
	}

	short := identifier
	if len(short) > 8 {
		short = short[:8]
	}
	record := TokenRecord{
		Symbol:      short,
		Name:        short,
		MintAddress: data.Mint,
	}
	if data.VirtualTokenReserves > 0 && data.VirtualSolReserves > 0 {
		price := (float64(data.VirtualSolReserves) / 1e9) / (float64(data.VirtualTokenReserves) / 1e6)
		record.Price = floatPtr(price)
	}
	g.logger.Debug("token resolved from bonding curve", zap.String("mint", identifier))
	return record, true
}

func (g *Gateway) cached(identifier string) (TokenRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.cache[identifier]
	if !ok || time.Now().After(entry.expires) {
		return TokenRecord{}, false
	}
	return entry.record, true
}

func (g *Gateway) store(identifier string, record TokenRecord, ttl time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[identifier] = cacheEntry{record: record, expires: time.Now().Add(ttl)}
}
