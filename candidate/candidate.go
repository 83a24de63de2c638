// Package candidate selects which READY requests enter the next
// anchoring cycle, resolving each stream's authoritative tip through
// the stream service before a batch is built. Grounded on the
// teacher's aggregator package, which performs the analogous
// group-then-batch step ahead of tree construction.
package candidate

import (
	"context"
	"sort"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpoint/anchor-core/ports"
	"github.com/chainpoint/anchor-core/store"
	"github.com/chainpoint/anchor-core/types"
	"github.com/chainpoint/anchor-core/util"
)

const anchoredMessage = "CID successfully anchored."
const unreadableMessage = "No readable version found"

// Result is the output of one Select call.
type Result struct {
	Candidates         []types.Candidate
	AcceptedRequestIDs []string
}

// Selector is the seam spec.md §9 calls for: a production implementation
// backed by the stream service, and a test implementation that can
// simulate arbitrary stream states without a live collaborator.
type Selector interface {
	Select(ctx context.Context, reqs []types.Request, limit int) (Result, error)
}

// DefaultSelector is the production Selector.
type DefaultSelector struct {
	Streams  ports.StreamService
	Requests *store.RequestStore
	Logger   log.Logger
}

// NewDefaultSelector constructs a DefaultSelector.
func NewDefaultSelector(streams ports.StreamService, requests *store.RequestStore, logger log.Logger) *DefaultSelector {
	return &DefaultSelector{Streams: streams, Requests: requests, Logger: logger}
}

// Select implements the grouping, tip-resolution, and ordering
// algorithm of spec.md §4.2.
func (s *DefaultSelector) Select(ctx context.Context, reqs []types.Request, limit int) (Result, error) {
	buckets := groupByStream(reqs)

	var candidates []types.Candidate
	var completedIDs, failedIDs []string

	for streamID, bucketReqs := range buckets {
		stream, err := s.Streams.LoadStream(ctx, streamID)
		if util.LoggerError(s.Logger, err) != nil {
			return Result{}, err
		}

		anchorIdx := stream.AnchorIndex()

		var remaining []types.Request
		for _, r := range bucketReqs {
			idx := stream.IndexOfCID(r.CID)
			if anchorIdx >= 0 && idx >= 0 && idx <= anchorIdx {
				completedIDs = append(completedIDs, r.ID)
				continue
			}
			remaining = append(remaining, r)
		}
		if len(remaining) == 0 {
			continue
		}

		missing := missingFromLog(stream, remaining)
		if len(missing) > 0 {
			resolved, err := s.Streams.MultiQuery(ctx, []ports.MultiQuery{{StreamID: streamID, Paths: missing}})
			if util.LoggerError(s.Logger, err) != nil {
				return Result{}, err
			}
			if merged, ok := resolved[streamID]; ok {
				stream = merged
			}
		}

		tip := stream.Tip()
		tipIdx := stream.IndexOfCID(tip.CID)

		var accepted, rejected []types.Request
		for _, r := range remaining {
			idx := stream.IndexOfCID(r.CID)
			if idx < 0 || idx > tipIdx {
				rejected = append(rejected, r)
				failedIDs = append(failedIDs, r.ID)
				continue
			}
			accepted = append(accepted, r)
		}

		if len(accepted) == 0 {
			continue
		}

		candidates = append(candidates, types.Candidate{
			StreamID:         streamID,
			CID:              tip.CID,
			AcceptedRequests: accepted,
			RejectedRequests: rejected,
		})
	}

	if err := s.Requests.UpdateRequests(ctx, store.RequestUpdate{Status: types.StatusCompleted, Message: anchoredMessage}, completedIDs); err != nil {
		return Result{}, err
	}
	if err := s.Requests.UpdateRequests(ctx, store.RequestUpdate{Status: types.StatusFailed, Message: unreadableMessage}, failedIDs); err != nil {
		return Result{}, err
	}

	sortCandidatesFIFO(candidates)

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var acceptedIDs []string
	for _, c := range candidates {
		acceptedIDs = append(acceptedIDs, c.AcceptedRequestIDs()...)
	}

	return Result{Candidates: candidates, AcceptedRequestIDs: acceptedIDs}, nil
}

func groupByStream(reqs []types.Request) map[string][]types.Request {
	buckets := make(map[string][]types.Request)
	for _, r := range reqs {
		buckets[r.StreamID] = append(buckets[r.StreamID], r)
	}
	return buckets
}

// missingFromLog returns the request CIDs in reqs that do not appear
// anywhere in stream's current log, candidates for a multiQuery.
func missingFromLog(stream ports.Stream, reqs []types.Request) []string {
	var missing []string
	for _, r := range reqs {
		if stream.IndexOfCID(r.CID) < 0 {
			missing = append(missing, r.CID)
		}
	}
	return missing
}

// sortCandidatesFIFO orders candidates by the earliest accepted
// createdAt within each, tie-broken by streamId.
func sortCandidatesFIFO(candidates []types.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ei, ej := candidates[i].EarliestAccepted(), candidates[j].EarliestAccepted()
		if ei.Equal(ej) {
			return candidates[i].StreamID < candidates[j].StreamID
		}
		return ei.Before(ej)
	})
}
