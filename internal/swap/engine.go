// internal/swap/engine.go
package swap

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/cdcrypto/pumpfun-twitter-bot/internal/logger"
	"github.com/cdcrypto/pumpfun-twitter-bot/internal/wallet"
)

const (
	// WrappedSOLMint is the fixed input asset for buys.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
	// LamportsPerSOL converts SOL amounts to lamports.
	LamportsPerSOL = 1_000_000_000
	// TokenUnitsPerToken is the smallest-unit scale of pump.fun tokens.
	TokenUnitsPerToken = 1_000_000
	// PriorityFeeLamports tags every built swap transaction.
	PriorityFeeLamports = 100_000

	maxSendRetries = 3
	confirmTimeout = 60 * time.Second
)

// Result is the outcome of one purchase or sale call. Signature may be
// present even when Success is false: the transaction landed but
// reported an error on-chain. Callers must branch on Success.
type Result struct {
	Success   bool
	Signature string
	Err       string
}

func failure(format string, args ...interface{}) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

// ChainClient is the chain surface the engine needs; satisfied by
// pkg/blockchain/solana.Client and by fakes in tests.
type ChainClient interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	SendRawTransaction(ctx context.Context, tx []byte, maxRetries uint) (solana.Signature, error)
	ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) error
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error)
}

// Engine performs routed swaps: quote, build, sign, submit, confirm.
type Engine struct {
	chain   ChainClient
	wallet  *wallet.Wallet
	jupiter *JupiterClient
	logger  *zap.Logger
}

func NewEngine(chain ChainClient, w *wallet.Wallet, jupiter *JupiterClient, logger *zap.Logger) (*Engine, error) {
	if chain == nil {
		return nil, fmt.Errorf("chain client cannot be nil")
	}
	if w == nil {
		return nil, fmt.Errorf("wallet cannot be nil")
	}
	if jupiter == nil {
		return nil, fmt.Errorf("jupiter client cannot be nil")
	}
	return &Engine{
		chain:   chain,
		wallet:  w,
		jupiter: jupiter,
		logger:  logger.Named("swap"),
	}, nil
}

// Buy swaps SOL into the target token. The destination token account is
// created first when missing; its creation must succeed before the swap
// is attempted.
func (e *Engine) Buy(ctx context.Context, mintAddress string, amountSol, slippagePercent float64) Result {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return failure("invalid mint address: %v", err)
	}

	lamports := uint64(amountSol * LamportsPerSOL)
	slippageBps := int(math.Floor(slippagePercent * 100))

	e.logger.Info("requesting buy quote",
		zap.String("mint", mintAddress),
		zap.Float64("amount_sol", amountSol),
		zap.Int("slippage_bps", slippageBps))

	quote, err := e.jupiter.GetQuote(ctx, QuoteParams{
		InputMint:   WrappedSOLMint,
		OutputMint:  mintAddress,
		Amount:      lamports,
		SlippageBps: slippageBps,
	})
	if err != nil {
		return failure("failed to get quote: %v", err)
	}

	tx, err := e.jupiter.BuildSwap(ctx, quote, e.wallet.PublicKey)
	if err != nil {
		return failure("failed to get swap transaction: %v", err)
	}

	if res := e.ensureTokenAccount(ctx, mint); !res.Success {
		return failure("failed to create token account: %s", res.Err)
	}

	return e.execute(ctx, tx)
}

// Sell swaps the token back into SOL. No account precondition: selling
// implies the holding account already exists.
func (e *Engine) Sell(ctx context.Context, mintAddress string, amountTokens, slippagePercent float64) Result {
	if _, err := solana.PublicKeyFromBase58(mintAddress); err != nil {
		return failure("invalid mint address: %v", err)
	}
	if amountTokens <= 0 {
		return failure("invalid sell amount: %f", amountTokens)
	}

	slippageBps := int(math.Floor(slippagePercent * 100))
	quote, err := e.jupiter.GetQuote(ctx, QuoteParams{
		InputMint:   mintAddress,
		OutputMint:  WrappedSOLMint,
		Amount:      uint64(amountTokens * TokenUnitsPerToken),
		SlippageBps: slippageBps,
	})
	if err != nil {
		return failure("failed to get quote: %v", err)
	}

	tx, err := e.jupiter.BuildSwap(ctx, quote, e.wallet.PublicKey)
	if err != nil {
		return failure("failed to get swap transaction: %v", err)
	}

	return e.execute(ctx, tx)
}

// TokenPrice derives a spot price in SOL from a reference-sized quote.
// Absence of a usable route yields ok=false, not an error.
func (e *Engine) TokenPrice(ctx context.Context, mintAddress string, amountSol, slippagePercent float64) (float64, bool) {
	lamports := uint64(amountSol * LamportsPerSOL)
	quote, err := e.jupiter.GetQuote(ctx, QuoteParams{
		InputMint:   WrappedSOLMint,
		OutputMint:  mintAddress,
		Amount:      lamports,
		SlippageBps: int(math.Floor(slippagePercent * 100)),
	})
	if err != nil {
		e.logger.Debug("no price quote available",
			zap.String("mint", mintAddress), zap.Error(err))
		return 0, false
	}
	return float64(lamports) / float64(quote.OutAmount), true
}

// ensureTokenAccount checks the wallet's associated account for the
// mint and creates it when absent. This is a hard dependency of a buy,
// not best-effort.
func (e *Engine) ensureTokenAccount(ctx context.Context, mint solana.PublicKey) Result {
	ata, err := e.wallet.GetATA(mint)
	if err != nil {
		return failure("failed to derive token account: %v", err)
	}

	info, err := e.chain.GetAccountInfo(ctx, ata)
	if err != nil {
		return failure("failed to check token account: %v", err)
	}
	if info != nil && info.Value != nil {
		return Result{Success: true}
	}

	e.logger.Info("creating associated token account",
		zap.String("mint", mint.String()), zap.String("ata", ata.String()))

	createIx, err := e.wallet.CreateATAInstruction(mint)
	if err != nil {
		return failure("failed to build create instruction: %v", err)
	}

	blockhash, _, err := e.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return failure("failed to get blockhash: %v", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{createIx},
		blockhash,
		solana.TransactionPayer(e.wallet.PublicKey),
	)
	if err != nil {
		return failure("failed to build create transaction: %v", err)
	}

	return e.execute(ctx, tx)
}

// execute signs, submits and confirms one transaction.
func (e *Engine) execute(ctx context.Context, tx *solana.Transaction) Result {
	blockhash, _, err := e.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return failure("failed to get blockhash: %v", err)
	}
	tx.Message.RecentBlockhash = blockhash

	if err := e.wallet.SignTransaction(tx); err != nil {
		// Prebuilt transactions come back partially signed on occasion;
		// re-signing then fails even though our signature is in place.
		if !e.hasWalletSignature(tx) {
			return failure("transaction signing failed: %v", err)
		}
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return failure("failed to serialize transaction: %v", err)
	}

	sig, err := e.chain.SendRawTransaction(ctx, raw, maxSendRetries)
	if err != nil {
		return failure("failed to send transaction: %v", err)
	}
	txLog := logger.WithTransaction(e.logger, sig.String())
	txLog.Info("transaction sent")

	confirmCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	if err := e.chain.ConfirmTransaction(confirmCtx, sig, rpc.CommitmentConfirmed); err != nil {
		return Result{Signature: sig.String(), Err: fmt.Sprintf("transaction failed: %v", err)}
	}

	// Confirmation acknowledgements have been observed to be optimistic;
	// one more direct status check catches transactions that landed with
	// an error anyway.
	status, err := e.chain.GetSignatureStatus(ctx, sig)
	if err == nil && status != nil && status.Err != nil {
		return Result{Signature: sig.String(), Err: fmt.Sprintf("transaction failed: %v", status.Err)}
	}

	txLog.Info("transaction confirmed")
	return Result{Success: true, Signature: sig.String()}
}

// hasWalletSignature reports whether the wallet's key already has a
// non-empty signature on the transaction.
func (e *Engine) hasWalletSignature(tx *solana.Transaction) bool {
	for i, key := range tx.Message.AccountKeys {
		if i >= len(tx.Signatures) {
			break
		}
		if key.Equals(e.wallet.PublicKey) && !tx.Signatures[i].IsZero() {
			return true
		}
	}
	return false
}
