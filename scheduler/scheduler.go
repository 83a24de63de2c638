// Package scheduler promotes PENDING requests to READY and notifies an
// event producer, under a serializable transaction so concurrent
// scheduler instances never double-promote the same rows. Grounded on
// the teacher's abci task-polling loops (SyncMonitor, StakeIdentity),
// which run the same "scan state, act if changed" cycle on a timer.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpoint/anchor-core/ports"
	"github.com/chainpoint/anchor-core/store"
	"github.com/chainpoint/anchor-core/types"
	"github.com/chainpoint/anchor-core/util"
)

// ReadinessScheduler runs emitAnchorEventIfReady, per spec.md §4.6.
type ReadinessScheduler struct {
	Requests *store.RequestStore
	Events   ports.EventProducer

	StreamLimit        int
	MinStreamCount     int
	ReadyRetryInterval int64 // milliseconds, per spec.md §6's readyRetryIntervalMS

	Logger log.Logger
}

// EmitAnchorEventIfReady runs one scan-and-promote pass: it counts
// distinct pending streams, promotes up to StreamLimit of them to
// READY along with any stale READY rows, and — if anything moved —
// emits a single fresh-uuid anchor event. Event producer failures are
// logged, never propagated.
func (s *ReadinessScheduler) EmitAnchorEventIfReady(ctx context.Context) error {
	promoted, err := s.promote(ctx)
	if err != nil {
		return err
	}
	if len(promoted) == 0 {
		return nil
	}

	_ = util.LoggerError(s.Logger, s.Events.EmitAnchorEvent(ctx, uuid.New()))
	return nil
}

func (s *ReadinessScheduler) promote(ctx context.Context) ([]types.Request, error) {
	tx, err := s.Requests.BeginSerializable(ctx)
	if util.LoggerError(s.Logger, err) != nil {
		return nil, err
	}

	bound := s.Requests.WithConnection(tx)
	promoted, err := bound.FindAndMarkReady(ctx, s.StreamLimit, s.MinStreamCount, millisToDuration(s.ReadyRetryInterval))
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); util.LoggerError(s.Logger, err) != nil {
		return nil, err
	}
	return promoted, nil
}

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
