// internal/market/dexscreener.go
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

type dexScreenerToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type dexScreenerPair struct {
	ChainID       string           `json:"chainId"`
	PairAddress   string           `json:"pairAddress"`
	BaseToken     dexScreenerToken `json:"baseToken"`
	PriceUSD      string           `json:"priceUsd"`
	MarketCap     float64          `json:"marketCap"`
	PairCreatedAt int64            `json:"pairCreatedAt"` // millis
	Info          struct {
		ImageURL string `json:"imageUrl"`
	} `json:"info"`
}

type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

// resolveDexScreener tries the identifier first as a trading-pair
// address, then as a token contract address filtered to the Solana
// chain. Each step may fail silently and fall through to the next.
func (g *Gateway) resolveDexScreener(ctx context.Context, identifier string) (TokenRecord, bool) {
	if pair, ok := g.fetchDexPairs(ctx, fmt.Sprintf("%s/latest/dex/pairs/solana/%s", g.dexAPIURL, identifier), false); ok {
		return dexPairToRecord(pair), true
	}
	if pair, ok := g.fetchDexPairs(ctx, fmt.Sprintf("%s/latest/dex/tokens/%s", g.dexAPIURL, identifier), true); ok {
		return dexPairToRecord(pair), true
	}
	g.logger.Debug("dexscreener lookup miss", zap.String("identifier", identifier))
	return TokenRecord{}, false
}

// fetchDexPairs returns the first pair from the response; when
// filterChain is set, the first pair tagged with the Solana chain.
func (g *Gateway) fetchDexPairs(ctx context.Context, url string, filterChain bool) (dexScreenerPair, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		g.logger.Error("failed to build dexscreener request", zap.Error(err))
		return dexScreenerPair{}, false
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("dexscreener request failed", zap.Error(err))
		return dexScreenerPair{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dexScreenerPair{}, false
	}

	var parsed dexScreenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		g.logger.Warn("malformed dexscreener response", zap.Error(err))
		return dexScreenerPair{}, false
	}
	if len(parsed.Pairs) == 0 {
		return dexScreenerPair{}, false
	}
	if !filterChain {
		return parsed.Pairs[0], true
	}
	for _, pair := range parsed.Pairs {
		if pair.ChainID == "solana" {
			return pair, true
		}
	}
	return dexScreenerPair{}, false
}

func dexPairToRecord(pair dexScreenerPair) TokenRecord {
	record := TokenRecord{
		Symbol:      pair.BaseToken.Symbol,
		Name:        pair.BaseToken.Name,
		ImageURL:    pair.Info.ImageURL,
		CreatedUnix: pair.PairCreatedAt / 1000,
		MintAddress: pair.BaseToken.Address,
	}
	if price, err := strconv.ParseFloat(pair.PriceUSD, 64); err == nil && price > 0 {
		record.Price = floatPtr(price)
	}
	if pair.MarketCap > 0 {
		record.MarketCap = floatPtr(pair.MarketCap)
	}
	return record
}
