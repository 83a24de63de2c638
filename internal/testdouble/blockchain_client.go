package testdouble

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/chainpoint/anchor-core/ports"
)

// BlockchainClient is an in-memory ports.BlockchainClient. When FailWith
// is set, SendTransaction returns that error instead of a receipt,
// exercising scenario (2) of spec.md §8 ("Failed to send transaction!").
type BlockchainClient struct {
	mu        sync.Mutex
	FailWith  error
	BlockNum  int64
	ChainID   string
	SendCount int
}

// NewBlockchainClient returns a client that always succeeds until FailWith is set.
func NewBlockchainClient(chainID string) *BlockchainClient {
	return &BlockchainClient{ChainID: chainID}
}

func (b *BlockchainClient) SendTransaction(ctx context.Context, rootBytes []byte) (ports.TxReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SendCount++
	if b.FailWith != nil {
		return ports.TxReceipt{}, b.FailWith
	}
	b.BlockNum++
	sum := sha256.Sum256(rootBytes)
	return ports.TxReceipt{
		ChainID:        b.ChainID,
		TxHash:         "0x" + hex.EncodeToString(sum[:]),
		BlockNumber:    b.BlockNum,
		BlockTimestamp: time.Now(),
	}, nil
}

// ErrSendTransactionFailed is the stock failure used across tests that
// exercise the "Failed to send transaction!" scenario.
var ErrSendTransactionFailed = errors.New("Failed to send transaction!")
