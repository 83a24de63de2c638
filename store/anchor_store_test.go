package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpoint/anchor-core/types"
)

func TestAnchorStoreCreateAndFind(t *testing.T) {
	pg := testPostgres(t)
	reqStore := NewRequestStore(pg)
	store := NewAnchorStore(pg)
	ctx := context.Background()

	req := newTestRequest("stream-1", "cid-anchor", types.StatusProcessing, time.Now())
	require.NoError(t, reqStore.CreateOrUpdate(ctx, req))

	anchor := types.Anchor{
		RequestID: req.ID,
		ProofCID:  "proof-cid",
		Path:      "0/1",
		CID:       "anchor-cid",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, anchor))

	found, err := store.FindByRequestID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, anchor.ProofCID, found.ProofCID)
	assert.Equal(t, anchor.Path, found.Path)
}

func TestAnchorStoreFindByRequestIDMissing(t *testing.T) {
	pg := testPostgres(t)
	store := NewAnchorStore(pg)

	found, err := store.FindByRequestID(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestAnchorStoreCreateRejectsDuplicateRequestID(t *testing.T) {
	pg := testPostgres(t)
	reqStore := NewRequestStore(pg)
	store := NewAnchorStore(pg)
	ctx := context.Background()

	req := newTestRequest("stream-1", "cid-dup", types.StatusProcessing, time.Now())
	require.NoError(t, reqStore.CreateOrUpdate(ctx, req))

	anchor := types.Anchor{RequestID: req.ID, ProofCID: "p1", Path: "0/0", CID: "c1", CreatedAt: time.Now()}
	require.NoError(t, store.Create(ctx, anchor))

	err := store.Create(ctx, anchor)
	assert.Error(t, err)
}
