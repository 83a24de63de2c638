// Package gc unpins streams behind COMPLETED requests once their
// pinning window has expired. Grounded on the teacher's abci task
// loops, which run the same "scan, act, log per-item failures"
// pattern on a timer.
package gc

import (
	"context"
	"time"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpoint/anchor-core/ports"
	"github.com/chainpoint/anchor-core/store"
	"github.com/chainpoint/anchor-core/util"
)

// GarbageCollector runs garbageCollectPinnedStreams, per spec.md §4.7.
type GarbageCollector struct {
	Requests     *store.RequestStore
	Streams      ports.StreamService
	ExpiryWindow time.Duration

	Logger log.Logger
}

// CollectPinnedStreams unpins every COMPLETED, pinned request whose
// updatedAt is older than ExpiryWindow. Failures are logged per stream
// and do not stop the remaining ones.
func (g *GarbageCollector) CollectPinnedStreams(ctx context.Context) error {
	expired, err := g.Requests.FindExpiredPinned(ctx, time.Now().Add(-g.ExpiryWindow))
	if util.LoggerError(g.Logger, err) != nil {
		return err
	}

	for _, req := range expired {
		if err := util.LoggerError(g.Logger, g.Streams.UnpinStream(ctx, req.StreamID)); err != nil {
			continue
		}
		_ = util.LoggerError(g.Logger, g.Requests.MarkUnpinned(ctx, req.ID))
	}
	return nil
}
