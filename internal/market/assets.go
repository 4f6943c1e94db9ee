// internal/market/assets.go
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// AssetClient talks to a DAS-capable RPC endpoint (Helius-style
// getAsset/searchAssets extension methods) for wallet holdings.
type AssetClient struct {
	rpcURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewAssetClient(rpcURL string, logger *zap.Logger) *AssetClient {
	return &AssetClient{
		rpcURL:     rpcURL,
		httpClient: &http.Client{},
		logger:     logger.Named("assets"),
	}
}

type dasRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type dasError struct {
	Message string `json:"message"`
}

type dasAssetItem struct {
	ID      string `json:"id"`
	Content struct {
		Metadata struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"metadata"`
		Links struct {
			Image string `json:"image"`
		} `json:"links"`
	} `json:"content"`
	TokenInfo struct {
		Supply    float64 `json:"supply"`
		Decimals  int     `json:"decimals"`
		PriceInfo struct {
			PricePerToken float64 `json:"price_per_token"`
		} `json:"price_info"`
	} `json:"token_info"`
}

type dasSearchResponse struct {
	Error  *dasError `json:"error"`
	Result struct {
		Items []dasAssetItem `json:"items"`
	} `json:"result"`
}

// SearchOwnedTokens lists the owner's fungible holdings, keeping only
// assets whose identifier carries the pump.fun suffix convention.
func (c *AssetClient) SearchOwnedTokens(ctx context.Context, ownerAddress string) ([]TokenRecord, error) {
	body, err := json.Marshal(dasRequest{
		JSONRPC: "2.0",
		ID:      "holdings",
		Method:  "searchAssets",
		Params: map[string]interface{}{
			"ownerAddress": ownerAddress,
			"tokenType":    "fungible",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode searchAssets request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build searchAssets request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searchAssets request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searchAssets responded with status %d", resp.StatusCode)
	}

	var parsed dasSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("malformed searchAssets response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("searchAssets error: %s", parsed.Error.Message)
	}

	var holdings []TokenRecord
	for _, item := range parsed.Result.Items {
		if !strings.HasSuffix(strings.ToLower(item.ID), "pump") {
			continue
		}
		record := TokenRecord{
			Symbol:      item.Content.Metadata.Symbol,
			Name:        item.Content.Metadata.Name,
			ImageURL:    item.Content.Links.Image,
			MintAddress: item.ID,
		}
		if price := item.TokenInfo.PriceInfo.PricePerToken; price > 0 {
			record.Price = floatPtr(price)
			if item.TokenInfo.Supply > 0 {
				adjusted := item.TokenInfo.Supply / math.Pow10(item.TokenInfo.Decimals)
				record.MarketCap = floatPtr(price * adjusted)
			}
		}
		holdings = append(holdings, record)
	}

	c.logger.Debug("holdings resolved",
		zap.String("owner", ownerAddress), zap.Int("count", len(holdings)))
	return holdings, nil
}
