// internal/market/bondingcurve.go
package market

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// PumpFunProgramID is the pump.fun bonding curve program.
var PumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

// bonding curve account layout: 8-byte discriminator, five u64 LE
// reserve fields, one byte complete flag.
const curveAccountMinLen = 8 + 40 + 1

// AccountFetcher is the chain lookup the curve reader needs.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// CurveReader resolves pump.fun bonding curve state directly from the
// chain, with a short TTL cache since reserves move on every trade.
type CurveReader struct {
	chain  AccountFetcher
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]curveCacheEntry
}

type curveCacheEntry struct {
	data    CoinData
	expires time.Time
}

func NewCurveReader(chain AccountFetcher, logger *zap.Logger) *CurveReader {
	return &CurveReader{
		chain:  chain,
		logger: logger.Named("curve"),
		cache:  make(map[string]curveCacheEntry),
	}
}

// DeriveCurveAccounts derives the bonding curve PDA and its associated
// token account for a mint.
func DeriveCurveAccounts(mint solana.PublicKey) (solana.PublicKey, solana.PublicKey, error) {
	curve, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive bonding curve: %w", err)
	}
	associated, _, err := solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive curve token account: %w", err)
	}
	return curve, associated, nil
}

// ParseVirtualReserves decodes a bonding curve account's data.
func ParseVirtualReserves(data []byte) (VirtualReserves, error) {
	if len(data) < curveAccountMinLen {
		return VirtualReserves{}, fmt.Errorf("bonding curve account data too short: %d bytes", len(data))
	}
	body := data[8:] // skip discriminator
	return VirtualReserves{
		VirtualTokenReserves: binary.LittleEndian.Uint64(body[0:8]),
		VirtualSolReserves:   binary.LittleEndian.Uint64(body[8:16]),
		RealTokenReserves:    binary.LittleEndian.Uint64(body[16:24]),
		RealSolReserves:      binary.LittleEndian.Uint64(body[24:32]),
		TokenTotalSupply:     binary.LittleEndian.Uint64(body[32:40]),
		Complete:             body[40] != 0,
	}, nil
}

// GetCoinData returns on-chain curve state for a mint, or ok=false when
// the mint or its curve account cannot be resolved.
func (r *CurveReader) GetCoinData(ctx context.Context, mintStr string) (CoinData, bool) {
	r.mu.Lock()
	if entry, ok := r.cache[mintStr]; ok && time.Now().Before(entry.expires) {
		r.mu.Unlock()
		return entry.data, true
	}
	r.mu.Unlock()

	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		r.logger.Debug("invalid mint address", zap.String("mint", mintStr), zap.Error(err))
		return CoinData{}, false
	}

	curve, associated, err := DeriveCurveAccounts(mint)
	if err != nil {
		r.logger.Warn("curve derivation failed", zap.String("mint", mintStr), zap.Error(err))
		return CoinData{}, false
	}

	info, err := r.chain.GetAccountInfo(ctx, curve)
	if err != nil {
		r.logger.Warn("curve account fetch failed", zap.String("mint", mintStr), zap.Error(err))
		return CoinData{}, false
	}
	if info == nil || info.Value == nil {
		return CoinData{}, false
	}

	reserves, err := ParseVirtualReserves(info.Value.Data.GetBinary())
	if err != nil {
		r.logger.Warn("curve account parse failed", zap.String("mint", mintStr), zap.Error(err))
		return CoinData{}, false
	}

	data := CoinData{
		Mint:                 mintStr,
		BondingCurve:         curve.String(),
		AssociatedCurve:      associated.String(),
		VirtualTokenReserves: reserves.VirtualTokenReserves,
		VirtualSolReserves:   reserves.VirtualSolReserves,
		TokenTotalSupply:     reserves.TokenTotalSupply,
		Complete:             reserves.Complete,
	}

	r.mu.Lock()
	r.cache[mintStr] = curveCacheEntry{data: data, expires: time.Now().Add(reservesTTL)}
	r.mu.Unlock()
	return data, true
}
