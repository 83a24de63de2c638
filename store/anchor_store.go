package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chainpoint/anchor-core/types"
	"github.com/chainpoint/anchor-core/util"
)

// AnchorStore is the durable record of anchor-commits successfully
// emitted for a request, one row per request per spec.md §4.1.
type AnchorStore struct {
	pg *Postgres
	q  querier
}

// NewAnchorStore returns an AnchorStore bound to pg's connection pool.
func NewAnchorStore(pg *Postgres) *AnchorStore {
	return &AnchorStore{pg: pg, q: pg.DB}
}

const anchorColumns = "request_id, proof_cid, path, cid, created_at"

// Create records a as the anchor result for a.RequestID. RequestID is
// the primary key, so a second emission for the same request fails
// rather than silently overwriting the first, per the at-most-once
// completion invariant.
func (s *AnchorStore) Create(ctx context.Context, a types.Anchor) error {
	stmt := fmt.Sprintf("INSERT INTO anchors (%s) VALUES ($1, $2, $3, $4, $5)", anchorColumns)
	_, err := s.q.ExecContext(ctx, stmt, a.RequestID, a.ProofCID, a.Path, a.CID, a.CreatedAt)
	return util.LoggerError(s.pg.Logger, err)
}

// FindByRequestID returns the anchor recorded for requestID, or nil.
func (s *AnchorStore) FindByRequestID(ctx context.Context, requestID string) (*types.Anchor, error) {
	stmt := fmt.Sprintf("SELECT %s FROM anchors WHERE request_id = $1", anchorColumns)
	row := s.q.QueryRowContext(ctx, stmt, requestID)
	var a types.Anchor
	err := row.Scan(&a.RequestID, &a.ProofCID, &a.Path, &a.CID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if util.LoggerError(s.pg.Logger, err) != nil {
		return nil, err
	}
	return &a, nil
}
