package emit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpoint/anchor-core/internal/testdouble"
	"github.com/chainpoint/anchor-core/merkle"
	"github.com/chainpoint/anchor-core/types"
)

func leaf(streamID, cid, path string) merkle.Leaf {
	return merkle.Leaf{
		Candidate: types.Candidate{StreamID: streamID, CID: cid},
		Path:      path,
	}
}

func TestEmitAllLeavesSucceed(t *testing.T) {
	cs := testdouble.NewContentStore()
	e := NewAnchorEmitter(cs, log.NewNopLogger())

	leaves := []merkle.Leaf{
		leaf("stream-1", "cid-1", "0/0"),
		leaf("stream-2", "cid-2", "0/1"),
	}
	emitted := e.Emit(context.Background(), leaves, "proof-cid", "anchor-updates")

	require.Len(t, emitted, 2)
	assert.Equal(t, 2, cs.PublishCount("anchor-updates"))
	assert.True(t, cs.IsPinned("stream-1"))
	assert.True(t, cs.IsPinned("stream-2"))
}

func TestEmitDropsLeafOnPutFailure(t *testing.T) {
	cs := testdouble.NewContentStore()
	e := NewAnchorEmitter(cs, log.NewNopLogger())

	leaves := []merkle.Leaf{leaf("stream-1", "cid-1", "0")}
	cs.FailPut = true
	emitted := e.Emit(context.Background(), leaves, "proof-cid", "anchor-updates")

	assert.Empty(t, emitted)
	assert.False(t, cs.IsPinned("stream-1"))
}

func TestEmitDropsLeafOnPublishFailure(t *testing.T) {
	cs := testdouble.NewContentStore()
	e := NewAnchorEmitter(cs, log.NewNopLogger())

	leaves := []merkle.Leaf{leaf("stream-1", "cid-1", "0")}
	cs.FailPublish = true
	emitted := e.Emit(context.Background(), leaves, "proof-cid", "anchor-updates")

	assert.Empty(t, emitted)
	assert.False(t, cs.IsPinned("stream-1"))
}

func TestEmitOtherLeavesProceedIndependently(t *testing.T) {
	cs := testdouble.NewContentStore()
	e := NewAnchorEmitter(cs, log.NewNopLogger())

	leaves := []merkle.Leaf{
		leaf("stream-1", "cid-1", "0"),
		leaf("stream-2", "cid-2", "1"),
	}
	cs.FailPut = true // only fails the next Put call
	emitted := e.Emit(context.Background(), leaves, "proof-cid", "anchor-updates")

	require.Len(t, emitted, 1)
	assert.Equal(t, "stream-2", emitted[0].Candidate.StreamID)
}
