package market

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func curveAccountData(virtualToken, virtualSol, realToken, realSol, supply uint64, complete bool) []byte {
	data := make([]byte, curveAccountMinLen)
	binary.LittleEndian.PutUint64(data[8:], virtualToken)
	binary.LittleEndian.PutUint64(data[16:], virtualSol)
	binary.LittleEndian.PutUint64(data[24:], realToken)
	binary.LittleEndian.PutUint64(data[32:], realSol)
	binary.LittleEndian.PutUint64(data[40:], supply)
	if complete {
		data[48] = 1
	}
	return data
}

func TestParseVirtualReserves(t *testing.T) {
	data := curveAccountData(1_073_000_000_000_000, 30_000_000_000, 793_100_000_000_000, 0, 1_000_000_000_000_000, false)

	reserves, err := ParseVirtualReserves(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_073_000_000_000_000), reserves.VirtualTokenReserves)
	assert.Equal(t, uint64(30_000_000_000), reserves.VirtualSolReserves)
	assert.Equal(t, uint64(793_100_000_000_000), reserves.RealTokenReserves)
	assert.Equal(t, uint64(1_000_000_000_000_000), reserves.TokenTotalSupply)
	assert.False(t, reserves.Complete)
}

func TestParseVirtualReservesCompleteFlag(t *testing.T) {
	reserves, err := ParseVirtualReserves(curveAccountData(1, 2, 3, 4, 5, true))
	require.NoError(t, err)
	assert.True(t, reserves.Complete)
}

func TestParseVirtualReservesTooShort(t *testing.T) {
	_, err := ParseVirtualReserves(make([]byte, 20))
	assert.Error(t, err)
}

func TestDeriveCurveAccountsIsDeterministic(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	curve1, assoc1, err := DeriveCurveAccounts(mint)
	require.NoError(t, err)
	curve2, assoc2, err := DeriveCurveAccounts(mint)
	require.NoError(t, err)

	assert.Equal(t, curve1, curve2)
	assert.Equal(t, assoc1, assoc2)
	assert.NotEqual(t, curve1, assoc1)
}

type fakeFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFetcher) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.data == nil {
		return nil, nil
	}
	// Decode through the same wire shape the RPC client parses.
	payload := fmt.Sprintf(`{"data":["%s","base64"]}`, base64.StdEncoding.EncodeToString(f.data))
	var acct rpc.Account
	if err := json.Unmarshal([]byte(payload), &acct); err != nil {
		return nil, err
	}
	return &rpc.GetAccountInfoResult{Value: &acct}, nil
}

func TestGetCoinDataReadsAndCaches(t *testing.T) {
	fetcher := &fakeFetcher{data: curveAccountData(500, 600, 0, 0, 700, false)}
	r := NewCurveReader(fetcher, zaptest.NewLogger(t))

	data, ok := r.GetCoinData(context.Background(), "So11111111111111111111111111111111111111112")
	require.True(t, ok)
	assert.Equal(t, uint64(500), data.VirtualTokenReserves)
	assert.Equal(t, uint64(600), data.VirtualSolReserves)
	assert.NotEmpty(t, data.BondingCurve)

	_, ok = r.GetCoinData(context.Background(), "So11111111111111111111111111111111111111112")
	require.True(t, ok)
	assert.Equal(t, 1, fetcher.calls, "second read within TTL served from cache")
}

func TestGetCoinDataExpectedFailures(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, ok := NewCurveReader(&fakeFetcher{}, logger).GetCoinData(context.Background(), "not-a-mint")
	assert.False(t, ok, "invalid mint address")

	_, ok = NewCurveReader(&fakeFetcher{}, logger).GetCoinData(context.Background(), "So11111111111111111111111111111111111111112")
	assert.False(t, ok, "missing curve account")

	_, ok = NewCurveReader(&fakeFetcher{err: errors.New("rpc down")}, logger).GetCoinData(context.Background(), "So11111111111111111111111111111111111111112")
	assert.False(t, ok, "rpc failure")
}
