// internal/market/pumpfun.go
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// pumpCoinResponse is the coins endpoint payload, whether served by
// pump.fun directly or through the local proxy.
type pumpCoinResponse struct {
	Mint                 string  `json:"mint"`
	Name                 string  `json:"name"`
	Symbol               string  `json:"symbol"`
	ImageURI             string  `json:"image_uri"`
	VirtualTokenReserves uint64  `json:"virtual_token_reserves"`
	VirtualSolReserves   uint64  `json:"virtual_sol_reserves"`
	BondingCurve         string  `json:"bonding_curve"`
	TotalSupply          uint64  `json:"total_supply"`
	Complete             bool    `json:"complete"`
	USDMarketCap         float64 `json:"usd_market_cap"`
	MarketCap            float64 `json:"market_cap"`
	Creator              string  `json:"creator"`
	CreatedTimestamp     int64   `json:"created_timestamp"`
}

// resolvePumpFun fetches a token's description from the coins endpoint.
// A non-2xx status or an HTML body (the upstream serves error pages
// with a 200 on occasion) both count as "not resolvable". When the
// exact identifier 404s, the fixed 4-character "pump" suffix is tried
// the other way around.
func (g *Gateway) resolvePumpFun(ctx context.Context, identifier string) (TokenRecord, bool) {
	coin, ok := g.fetchPumpCoin(ctx, identifier)
	if !ok {
		alternate := alternatePumpAddress(identifier)
		if alternate == identifier {
			return TokenRecord{}, false
		}
		if coin, ok = g.fetchPumpCoin(ctx, alternate); !ok {
			return TokenRecord{}, false
		}
	}

	record := TokenRecord{
		Symbol:      coin.Symbol,
		Name:        coin.Name,
		ImageURL:    coin.ImageURI,
		CreatedUnix: coin.CreatedTimestamp,
		MintAddress: identifier,
	}
	if coin.Mint != "" {
		record.MintAddress = coin.Mint
	}
	if coin.USDMarketCap > 0 {
		record.MarketCap = floatPtr(coin.USDMarketCap)
	} else if coin.MarketCap > 0 {
		record.MarketCap = floatPtr(coin.MarketCap)
	}
	// Spot price from the virtual reserves when the curve is still live.
	if coin.VirtualTokenReserves > 0 && coin.VirtualSolReserves > 0 {
		price := (float64(coin.VirtualSolReserves) / 1e9) / (float64(coin.VirtualTokenReserves) / 1e6)
		record.Price = floatPtr(price)
	}
	return record, true
}

func (g *Gateway) fetchPumpCoin(ctx context.Context, identifier string) (pumpCoinResponse, bool) {
	url := fmt.Sprintf("%s/coins/%s", g.pumpAPIURL, identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		g.logger.Error("failed to build pump.fun request", zap.Error(err))
		return pumpCoinResponse{}, false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("pump.fun request failed", zap.String("mint", identifier), zap.Error(err))
		return pumpCoinResponse{}, false
	}
	defer resp.Body.Close()

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		g.logger.Warn("pump.fun returned an HTML error page", zap.String("mint", identifier))
		return pumpCoinResponse{}, false
	}
	if resp.StatusCode != http.StatusOK {
		g.logger.Debug("pump.fun lookup miss",
			zap.String("mint", identifier), zap.Int("status", resp.StatusCode))
		return pumpCoinResponse{}, false
	}

	var coin pumpCoinResponse
	if err := json.NewDecoder(resp.Body).Decode(&coin); err != nil {
		g.logger.Warn("malformed pump.fun response", zap.Error(err))
		return pumpCoinResponse{}, false
	}
	return coin, true
}

// alternatePumpAddress flips the identifier between its suffixed and
// bare forms: pump.fun mints conventionally end in "pump", but links
// carry both spellings.
func alternatePumpAddress(identifier string) string {
	if strings.HasSuffix(identifier, "pump") {
		return strings.TrimSuffix(identifier, "pump")
	}
	return identifier + "pump"
}
