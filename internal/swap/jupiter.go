// internal/swap/jupiter.go
package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// QuoteParams describes one routed-quote request.
type QuoteParams struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // smallest units of the input asset
	SlippageBps int
}

// Quote is a priced route. Raw carries the untouched upstream payload
// so the swap-build call can echo it back verbatim.
type Quote struct {
	OutAmount uint64
	Raw       json.RawMessage
}

// JupiterClient speaks the v6 quote/swap API.
type JupiterClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewJupiterClient(baseURL string, logger *zap.Logger) *JupiterClient {
	return &JupiterClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger.Named("jupiter"),
	}
}

// GetQuote requests a direct route for an exact input amount. A
// missing or zero outAmount is reported as an error: it means "no
// route", and nothing downstream can be built from it.
func (j *JupiterClient) GetQuote(ctx context.Context, params QuoteParams) (*Quote, error) {
	query := url.Values{}
	query.Set("inputMint", params.InputMint)
	query.Set("outputMint", params.OutputMint)
	query.Set("amount", strconv.FormatUint(params.Amount, 10))
	query.Set("slippageBps", strconv.Itoa(params.SlippageBps))
	query.Set("onlyDirectRoutes", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/quote?%s", j.baseURL, query.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote responded with status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("malformed quote response: %w", err)
	}

	var envelope struct {
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("malformed quote response: %w", err)
	}
	if envelope.OutAmount == "" {
		return nil, fmt.Errorf("no route: quote has no outAmount")
	}
	outAmount, err := strconv.ParseUint(envelope.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid outAmount %q: %w", envelope.OutAmount, err)
	}
	if outAmount == 0 {
		return nil, fmt.Errorf("no route: quote outAmount is zero")
	}

	j.logger.Debug("quote received",
		zap.String("input", params.InputMint),
		zap.String("output", params.OutputMint),
		zap.Uint64("out_amount", outAmount))
	return &Quote{OutAmount: outAmount, Raw: raw}, nil
}

// BuildSwap requests a prebuilt transaction for an accepted quote,
// tagged with the configured priority fee, and deserializes it.
func (j *JupiterClient) BuildSwap(ctx context.Context, quote *Quote, signer solana.PublicKey) (*solana.Transaction, error) {
	body, err := json.Marshal(map[string]interface{}{
		"quoteResponse":             quote.Raw,
		"userPublicKey":             signer.String(),
		"wrapAndUnwrapSol":          true,
		"dynamicComputeUnitLimit":   true,
		"prioritizationFeeLamports": PriorityFeeLamports,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap responded with status %d", resp.StatusCode)
	}

	var parsed struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("malformed swap response: %w", err)
	}
	if parsed.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response carries no transaction")
	}

	tx, err := solana.TransactionFromBase64(parsed.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize swap transaction: %w", err)
	}
	return tx, nil
}
