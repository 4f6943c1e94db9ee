// pkg/blockchain/solana/client.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Client wraps the RPC pool with the operations the trading pipeline
// needs: blockhash, account lookups, raw-transaction submission, and
// confirmation polling.
type Client struct {
	rpcPool *RPCPool
	logger  *zap.Logger
}

func NewClient(rpcList []string, logger *zap.Logger) (*Client, error) {
	if len(rpcList) == 0 {
		return nil, errors.New("empty RPC list")
	}
	for _, rpcURL := range rpcList {
		if _, err := url.Parse(rpcURL); err != nil {
			return nil, errors.New("invalid RPC URL: " + rpcURL)
		}
	}
	return &Client{
		rpcPool: NewRPCPool(rpcList),
		logger:  logger.Named("solana"),
	}, nil
}

// HealthCheck probes every endpoint in the pool and reports how many
// responded. Run at startup so dead RPC URLs surface before the first
// trade needs one.
func (c *Client) HealthCheck() (healthy, total int) {
	for _, client := range c.rpcPool.clients {
		if c.rpcPool.CheckClientHealth(client) {
			healthy++
		}
	}
	return healthy, len(c.rpcPool.clients)
}

// GetLatestBlockhash returns the latest blockhash and the last block
// height it is valid for.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	result, err := c.rpcPool.GetClient().GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return result.Value.Blockhash, result.Value.LastValidBlockHeight, nil
}

// GetAccountInfo fetches an account; returns (nil, nil) when the account
// does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	result, err := c.rpcPool.GetClient().GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	return result, nil
}

// GetBalance returns the lamport balance at confirmed commitment.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := c.rpcPool.GetClient().GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return result.Value, nil
}

// SendRawTransaction broadcasts serialized transaction bytes with the
// transport-level retry count and preflight enabled.
func (c *Client) SendRawTransaction(ctx context.Context, tx []byte, maxRetries uint) (solana.Signature, error) {
	sig, err := c.rpcPool.GetClient().SendRawTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          &maxRetries,
	})
	if err != nil {
		c.logger.Error("failed to send raw transaction", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetSignatureStatus returns the processing status for one signature, or
// nil when the cluster does not know it yet.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	result, err := c.rpcPool.GetClient().GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}
	if result == nil || len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

// ConfirmTransaction polls until the signature reaches the requested
// commitment, the context expires, or the cluster reports an error for
// the transaction. An on-chain error is returned with the signature
// already landed, so callers can surface it alongside the signature.
func (c *Client) ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation timed out for %s: %w", sig, ctx.Err())
		case <-ticker.C:
			status, err := c.GetSignatureStatus(ctx, sig)
			if err != nil {
				c.logger.Debug("status poll failed", zap.Error(err))
				continue
			}
			if status == nil {
				continue
			}
			if status.Err != nil {
				return fmt.Errorf("transaction failed: %v", status.Err)
			}
			if commitmentReached(status.ConfirmationStatus, commitment) {
				return nil
			}
		}
	}
}

// commitmentReached reports whether an observed confirmation status
// satisfies the requested commitment level.
func commitmentReached(observed rpc.ConfirmationStatusType, requested rpc.CommitmentType) bool {
	rank := func(s string) int {
		switch {
		case strings.EqualFold(s, string(rpc.ConfirmationStatusFinalized)):
			return 3
		case strings.EqualFold(s, string(rpc.ConfirmationStatusConfirmed)):
			return 2
		case strings.EqualFold(s, string(rpc.ConfirmationStatusProcessed)):
			return 1
		default:
			return 0
		}
	}
	return rank(string(observed)) >= rank(string(requested))
}
