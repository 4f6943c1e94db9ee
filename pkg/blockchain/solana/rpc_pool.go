// pkg/blockchain/solana/rpc_pool.go
package solana

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// RPCPool rotates requests across the configured RPC endpoints.
type RPCPool struct {
	clients []*rpc.Client
	mutex   sync.Mutex
	index   int
}

func NewRPCPool(rpcList []string) *RPCPool {
	var clients []*rpc.Client
	for _, url := range rpcList {
		clients = append(clients, rpc.New(url))
	}
	return &RPCPool{clients: clients}
}

// GetClient returns the next client round-robin.
func (p *RPCPool) GetClient() *rpc.Client {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	client := p.clients[p.index]
	p.index = (p.index + 1) % len(p.clients)
	return client
}

// CheckClientHealth probes one endpoint with a short timeout.
func (p *RPCPool) CheckClientHealth(client *rpc.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	return err == nil
}
