// internal/market/token.go
package market

// TokenRecord is the normalized market snapshot for one token
// identifier. Price and MarketCap stay nil when upstream has no data;
// nil means "unknown", which is not the same as zero.
type TokenRecord struct {
	Symbol      string
	Name        string
	ImageURL    string
	Price       *float64
	MarketCap   *float64
	CreatedUnix int64 // epoch seconds
	MintAddress string
}

// VirtualReserves is the parsed state of a pump.fun bonding curve
// account.
type VirtualReserves struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// CoinData is the on-chain view of a pump.fun token: the derived curve
// accounts plus the current reserves.
type CoinData struct {
	Mint                 string
	BondingCurve         string
	AssociatedCurve      string
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	TokenTotalSupply     uint64
	Complete             bool
}

func floatPtr(v float64) *float64 { return &v }
