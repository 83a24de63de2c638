package merkle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpoint/anchor-core/internal/testdouble"
	"github.com/chainpoint/anchor-core/types"
)

func candidatesWithCIDs(cids ...string) []types.Candidate {
	out := make([]types.Candidate, len(cids))
	for i, cid := range cids {
		out[i] = types.Candidate{StreamID: cid, CID: cid}
	}
	return out
}

func TestBuildEmptyBatch(t *testing.T) {
	b := NewMerkleBuilder(testdouble.NewContentStore(), 3)
	tree, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tree.Leaves)
	assert.Empty(t, tree.Root)
}

func TestBuildSingleLeaf(t *testing.T) {
	b := NewMerkleBuilder(testdouble.NewContentStore(), 3)
	tree, err := b.Build(context.Background(), candidatesWithCIDs("cid-a"))
	require.NoError(t, err)
	require.Len(t, tree.Leaves, 1)
	assert.Equal(t, "", tree.Leaves[0].Path)
	assert.Equal(t, "cid-a", string(tree.Root))
}

func TestBuildFourLeavesPaths(t *testing.T) {
	b := NewMerkleBuilder(testdouble.NewContentStore(), 3)
	tree, err := b.Build(context.Background(), candidatesWithCIDs("cid-0", "cid-1", "cid-2", "cid-3"))
	require.NoError(t, err)
	require.Len(t, tree.Leaves, 4)

	paths := make([]string, 4)
	for i, leaf := range tree.Leaves {
		paths[i] = leaf.Path
	}
	assert.Equal(t, []string{"0/0", "0/1", "1/0", "1/1"}, paths)
	assert.NotEmpty(t, tree.Root)
}

func TestBuildFiveLeavesPathsArePaddedBigEndian(t *testing.T) {
	b := NewMerkleBuilder(testdouble.NewContentStore(), 3)
	cids := []string{"cid-0", "cid-1", "cid-2", "cid-3", "cid-4"}
	tree, err := b.Build(context.Background(), candidatesWithCIDs(cids...))
	require.NoError(t, err)
	require.Len(t, tree.Leaves, 5)

	// 5 leaves need ceil(log2(5)) = 3 bits; indices are assigned in
	// left-packed order, so every path has 3 bits.
	for _, leaf := range tree.Leaves {
		assert.Len(t, leaf.Path, 5) // "b/b/b"
	}
}

func TestBuildPanicsOverBatchLimit(t *testing.T) {
	b := NewMerkleBuilder(testdouble.NewContentStore(), 1)
	assert.Panics(t, func() {
		_, _ = b.Build(context.Background(), candidatesWithCIDs("a", "b", "c"))
	})
}

func TestBuildIsDeterministicForIdenticalCandidates(t *testing.T) {
	store := testdouble.NewContentStore()
	b := NewMerkleBuilder(store, 3)
	cands := candidatesWithCIDs("cid-0", "cid-1")

	t1, err := b.Build(context.Background(), cands)
	require.NoError(t, err)
	t2, err := b.Build(context.Background(), cands)
	require.NoError(t, err)

	assert.Equal(t, t1.Root, t2.Root)
}
