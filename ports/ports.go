// Package ports declares the contracts this core expects from its
// external collaborators: the blockchain client, the content-addressed
// store, the stream service, and the event producer. Production
// adapters for these live outside this repository; anchor-core only
// depends on the interfaces, following the constructor-injected
// component graph called for in place of the original's service
// locator.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CID is an opaque content identifier minted by the content-addressed
// store. The core never interprets its bytes beyond equality;
// BlockchainClient receives the root CID's raw bytes as its payload.
type CID string

// TxReceipt is returned by a successful BlockchainClient.SendTransaction.
type TxReceipt struct {
	ChainID        string
	TxHash         string
	BlockNumber    int64
	BlockTimestamp time.Time
}

// BlockchainClient writes the Merkle root to the chain. It is the only
// component of the pipeline allowed to originate a transaction.
type BlockchainClient interface {
	SendTransaction(ctx context.Context, rootBytes []byte) (TxReceipt, error)
}

// ContentStore is the content-addressed object store and pub/sub
// backbone: put/get self-describing records, pin/unpin streams, and
// publish update notifications. Identical objects MUST yield identical
// CIDs.
type ContentStore interface {
	Put(ctx context.Context, obj interface{}) (CID, error)
	Get(ctx context.Context, cid CID, out interface{}) error
	Pin(ctx context.Context, streamID string) error
	Unpin(ctx context.Context, streamID string) error
	Publish(ctx context.Context, topic string, payload []byte) error
}

// CommitType tags one entry of a Stream's log.
type CommitType string

const (
	CommitGenesis CommitType = "GENESIS"
	CommitSigned  CommitType = "SIGNED"
	CommitAnchor  CommitType = "ANCHOR"
)

// LogEntry is one commit in a Stream's ordered log.
type LogEntry struct {
	CID  string
	Type CommitType
}

// Stream is the ordered log of commits the stream service reports for
// one streamId, plus its current tip.
type Stream struct {
	ID  string
	Log []LogEntry
}

// Tip returns the last log entry, or the zero value if the log is empty.
func (s Stream) Tip() LogEntry {
	if len(s.Log) == 0 {
		return LogEntry{}
	}
	return s.Log[len(s.Log)-1]
}

// IndexOfCID returns the position of cid within the log, or -1.
func (s Stream) IndexOfCID(cid string) int {
	for i, e := range s.Log {
		if e.CID == cid {
			return i
		}
	}
	return -1
}

// AnchorIndex returns the position of the first ANCHOR commit in the
// log, or -1 if the stream has not yet been anchored.
func (s Stream) AnchorIndex() int {
	for i, e := range s.Log {
		if e.Type == CommitAnchor {
			return i
		}
	}
	return -1
}

// MultiQuery requests specific paths of a stream, used to pull in
// commits a base LoadStream response omitted.
type MultiQuery struct {
	StreamID string
	Paths    []string
}

// StreamService resolves a stream's current log and tip, and answers
// multi-stream queries for commits not present in a prior load.
type StreamService interface {
	LoadStream(ctx context.Context, streamID string) (Stream, error)
	LoadCommit(ctx context.Context, commitID string) (Stream, error)
	MultiQuery(ctx context.Context, queries []MultiQuery) (map[string]Stream, error)
	UnpinStream(ctx context.Context, streamID string) error
}

// EventProducer is a best-effort notifier; failures are swallowed by callers.
type EventProducer interface {
	EmitAnchorEvent(ctx context.Context, id uuid.UUID) error
}
