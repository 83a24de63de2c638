package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpoint/anchor-core/types"
)

func TestTransactionStoreCreateAndFindByHash(t *testing.T) {
	pg := testPostgres(t)
	store := NewTransactionStore(pg)
	ctx := context.Background()

	tx := types.Transaction{
		ChainID:        "eth-mainnet",
		TxHash:         "0xabc",
		BlockNumber:    100,
		BlockTimestamp: time.Now(),
		CreatedAt:      time.Now(),
	}
	require.NoError(t, store.Create(ctx, tx))

	found, err := store.FindByHash(ctx, "0xabc")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tx.ChainID, found.ChainID)
	assert.Equal(t, tx.BlockNumber, found.BlockNumber)
}

func TestTransactionStoreFindLatest(t *testing.T) {
	pg := testPostgres(t)
	store := NewTransactionStore(pg)
	ctx := context.Background()

	older := types.Transaction{ChainID: "eth-mainnet", TxHash: "0x1", BlockNumber: 1, BlockTimestamp: time.Now(), CreatedAt: time.Now().Add(-time.Hour)}
	newer := types.Transaction{ChainID: "eth-mainnet", TxHash: "0x2", BlockNumber: 2, BlockTimestamp: time.Now(), CreatedAt: time.Now()}
	require.NoError(t, store.Create(ctx, older))
	require.NoError(t, store.Create(ctx, newer))

	latest, err := store.FindLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "0x2", latest.TxHash)
}

func TestTransactionStoreFindLatestEmpty(t *testing.T) {
	pg := testPostgres(t)
	store := NewTransactionStore(pg)

	latest, err := store.FindLatest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
}
