// Package coordinator orchestrates one anchoring cycle end to end:
// candidate selection, Merkle tree construction, the blockchain
// transaction, and anchor-commit emission. Grounded on the teacher's
// bitcoin anchor engine, which wires the same kind of
// constructor-injected collaborators around a single "run one anchor
// cycle" entry point.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpoint/anchor-core/candidate"
	"github.com/chainpoint/anchor-core/emit"
	"github.com/chainpoint/anchor-core/merkle"
	"github.com/chainpoint/anchor-core/ports"
	"github.com/chainpoint/anchor-core/store"
	"github.com/chainpoint/anchor-core/types"
	"github.com/chainpoint/anchor-core/util"
)

const processingCompleteMessage = "CID successfully anchored."

// AnchorCoordinator runs anchorRequests, per spec.md §4.5.
type AnchorCoordinator struct {
	Requests     *store.RequestStore
	Anchors      *store.AnchorStore
	Transactions *store.TransactionStore
	Selector     candidate.Selector
	Builder      *merkle.MerkleBuilder
	Emitter      emit.Emitter
	Blockchain   ports.BlockchainClient
	ContentStore ports.ContentStore

	Limit             int
	PubsubTopic       string
	MaxAnchorAttempts int

	Logger log.Logger
}

// AnchorRequests performs one cycle: it returns nil if there was
// nothing to anchor, and propagates any unrecoverable error (the
// blockchain transaction failing is the one most tests exercise).
func (c *AnchorCoordinator) AnchorRequests(ctx context.Context) error {
	reqs, err := c.Requests.FindByStatus(ctx, types.StatusReady)
	if util.LoggerError(c.Logger, err) != nil {
		return err
	}
	if len(reqs) == 0 {
		return nil
	}

	result, err := c.Selector.Select(ctx, reqs, c.Limit)
	if err != nil {
		return err
	}
	if len(result.Candidates) == 0 {
		return nil
	}

	if err := c.Requests.UpdateRequests(ctx, store.RequestUpdate{Status: types.StatusProcessing}, result.AcceptedRequestIDs); err != nil {
		return err
	}

	tree, err := c.Builder.Build(ctx, result.Candidates)
	if err != nil {
		return err
	}

	c.Logger.Info("sending anchor transaction", "root", hexutil.Encode([]byte(tree.Root)))
	receipt, err := c.Blockchain.SendTransaction(ctx, []byte(tree.Root))
	if err != nil {
		c.handleTransactionFailure(ctx, result.AcceptedRequestIDs)
		return fmt.Errorf("sending anchor transaction: %w", err)
	}

	now := time.Now()
	tx := types.Transaction{
		ChainID:        receipt.ChainID,
		TxHash:         receipt.TxHash,
		BlockNumber:    receipt.BlockNumber,
		BlockTimestamp: receipt.BlockTimestamp,
		CreatedAt:      now,
	}
	if err := c.Transactions.Create(ctx, tx); err != nil {
		return err
	}

	proof := types.Proof{
		Root:           string(tree.Root),
		TxHash:         receipt.TxHash,
		ChainID:        receipt.ChainID,
		BlockNumber:    receipt.BlockNumber,
		BlockTimestamp: receipt.BlockTimestamp.Unix(),
	}
	proofCid, err := c.ContentStore.Put(ctx, proof)
	if util.LoggerError(c.Logger, err) != nil {
		return err
	}

	emitted := c.Emitter.Emit(ctx, tree.Leaves, string(proofCid), c.PubsubTopic)
	return c.completeEmitted(ctx, emitted, string(proofCid), now)
}

// handleTransactionFailure implements the chosen resolution to
// spec.md §9's open question: requests stay in PROCESSING, with a
// bounded per-request retry counter rather than a rollback to PENDING.
func (c *AnchorCoordinator) handleTransactionFailure(ctx context.Context, ids []string) {
	if err := c.Requests.IncrementAttempt(ctx, ids); util.LoggerError(c.Logger, err) != nil {
		return
	}
	var exhausted []string
	for _, id := range ids {
		req, err := c.Requests.FindByID(ctx, id)
		if util.LoggerError(c.Logger, err) != nil || req == nil {
			continue
		}
		if req.AttemptCount >= c.MaxAnchorAttempts {
			exhausted = append(exhausted, id)
		}
	}
	if len(exhausted) == 0 {
		return
	}
	msg := fmt.Sprintf("anchoring failed after %d attempts", c.MaxAnchorAttempts)
	if err := c.Requests.UpdateRequests(ctx, store.RequestUpdate{Status: types.StatusFailed, Message: msg}, exhausted); err != nil {
		c.Logger.Error("marking exhausted requests failed", "err", err)
	}
}

// completeEmitted persists one Anchor row per accepted request behind
// each successfully emitted leaf and marks them COMPLETED and pinned.
// Leaves absent from emitted (dropped by the Emitter) leave their
// requests in PROCESSING.
func (c *AnchorCoordinator) completeEmitted(ctx context.Context, emitted []emit.Emitted, proofCid string, now time.Time) error {
	var completedIDs []string
	pinned := true
	for _, e := range emitted {
		for _, req := range e.Candidate.AcceptedRequests {
			anchor := types.Anchor{
				RequestID: req.ID,
				ProofCID:  proofCid,
				Path:      e.Path,
				CID:       e.AnchorCID,
				CreatedAt: now,
			}
			if err := c.Anchors.Create(ctx, anchor); err != nil {
				return err
			}
			completedIDs = append(completedIDs, req.ID)
		}
	}
	return c.Requests.UpdateRequests(ctx, store.RequestUpdate{
		Status:  types.StatusCompleted,
		Message: processingCompleteMessage,
		Pinned:  &pinned,
	}, completedIDs)
}
