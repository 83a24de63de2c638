// Package emit turns a built Merkle tree's leaves into anchor-commit
// objects, pub/sub notifications, and pinned streams, per spec.md
// §4.4. Grounded on the teacher's calendar package, which similarly
// walks a tree's leaves publishing one state message per item.
package emit

import (
	"context"
	"encoding/json"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpoint/anchor-core/merkle"
	"github.com/chainpoint/anchor-core/ports"
	"github.com/chainpoint/anchor-core/types"
	"github.com/chainpoint/anchor-core/util"
)

// Emitted is one successfully emitted leaf: the candidate it came
// from, its path within the tree, and the anchor-commit object's CID.
type Emitted struct {
	Candidate types.Candidate
	Path      string
	AnchorCID string
}

// Emitter is the seam spec.md §9 calls for alongside CandidateSelector.
type Emitter interface {
	Emit(ctx context.Context, leaves []merkle.Leaf, proofCid string, topic string) []Emitted
}

// AnchorEmitter is the production Emitter.
type AnchorEmitter struct {
	Store  ports.ContentStore
	Logger log.Logger
}

// NewAnchorEmitter constructs an AnchorEmitter.
func NewAnchorEmitter(store ports.ContentStore, logger log.Logger) *AnchorEmitter {
	return &AnchorEmitter{Store: store, Logger: logger}
}

// Emit processes every leaf independently, per spec.md §5's note that
// per-leaf emission may run in parallel; a leaf whose store or publish
// call fails is simply absent from the returned slice.
func (e *AnchorEmitter) Emit(ctx context.Context, leaves []merkle.Leaf, proofCid string, topic string) []Emitted {
	var out []Emitted
	for _, leaf := range leaves {
		emitted, ok := e.emitLeaf(ctx, leaf, proofCid, topic)
		if ok {
			out = append(out, emitted)
		}
	}
	return out
}

func (e *AnchorEmitter) emitLeaf(ctx context.Context, leaf merkle.Leaf, proofCid string, topic string) (Emitted, bool) {
	commit := types.AnchorCommit{
		Prev:  leaf.Candidate.CID,
		Proof: proofCid,
		Path:  leaf.Path,
	}
	anchorCid, err := e.Store.Put(ctx, commit)
	if util.LoggerError(e.Logger, err) != nil {
		return Emitted{}, false
	}

	msg := types.UpdateMessage{
		Typ:    types.UpdateMessageType,
		Stream: leaf.Candidate.StreamID,
		Tip:    string(anchorCid),
	}
	payload, err := json.Marshal(msg)
	if util.LoggerError(e.Logger, err) != nil {
		return Emitted{}, false
	}
	if err := e.Store.Publish(ctx, topic, payload); util.LoggerError(e.Logger, err) != nil {
		return Emitted{}, false
	}

	// Pin failure does not drop the leaf; only Put/Publish failures do.
	_ = util.LoggerError(e.Logger, e.Store.Pin(ctx, leaf.Candidate.StreamID))

	return Emitted{Candidate: leaf.Candidate, Path: leaf.Path, AnchorCID: string(anchorCid)}, true
}
