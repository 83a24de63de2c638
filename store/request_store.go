package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chainpoint/anchor-core/types"
	"github.com/chainpoint/anchor-core/util"
)

// querier is satisfied by both *sql.DB and *sql.Tx, letting RequestStore
// run either against the pool or a bound transaction (withConnection).
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RequestStore is the durable table of requests: state transitions and
// batch queries, per spec.md §4.1.
type RequestStore struct {
	pg *Postgres
	q  querier
}

// NewRequestStore returns a RequestStore bound to pg's connection pool.
func NewRequestStore(pg *Postgres) *RequestStore {
	return &RequestStore{pg: pg, q: pg.DB}
}

// WithConnection returns a view of the store bound to an open
// transaction, so callers (the scheduler) can serialize a scan-and-
// promote step within one SERIALIZABLE transaction.
func (s *RequestStore) WithConnection(tx *sql.Tx) *RequestStore {
	return &RequestStore{pg: s.pg, q: tx}
}

// BeginSerializable starts a transaction isolated at SERIALIZABLE, the
// concrete mechanism behind spec.md §5's row-locking requirement.
func (s *RequestStore) BeginSerializable(ctx context.Context) (*sql.Tx, error) {
	return s.pg.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

const requestColumns = "id, cid, stream_id, status, message, pinned, attempt_count, created_at, updated_at"

func scanRequest(row interface{ Scan(...interface{}) error }) (types.Request, error) {
	var r types.Request
	var status string
	err := row.Scan(&r.ID, &r.CID, &r.StreamID, &status, &r.Message, &r.Pinned, &r.AttemptCount, &r.CreatedAt, &r.UpdatedAt)
	r.Status = types.RequestStatus(status)
	return r, err
}

// CreateOrUpdate upserts a request by its unique cid.
func (s *RequestStore) CreateOrUpdate(ctx context.Context, req types.Request) error {
	if req.ID == "" {
		return fmt.Errorf("request id is required")
	}
	now := req.UpdatedAt
	if now.IsZero() {
		now = req.CreatedAt
	}
	stmt := fmt.Sprintf(`
		INSERT INTO requests (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (cid) DO UPDATE SET
			stream_id = $3,
			status = $4,
			message = $5,
			pinned = $6,
			attempt_count = $7,
			updated_at = $9
	`, requestColumns)
	_, err := s.q.ExecContext(ctx, stmt, req.ID, req.CID, req.StreamID, string(req.Status), req.Message, req.Pinned, req.AttemptCount, req.CreatedAt, now)
	return util.LoggerError(s.pg.Logger, err)
}

// FindByCid returns the request with the given cid, or nil if none exists.
func (s *RequestStore) FindByCid(ctx context.Context, cid string) (*types.Request, error) {
	stmt := fmt.Sprintf("SELECT %s FROM requests WHERE cid = $1", requestColumns)
	row := s.q.QueryRowContext(ctx, stmt, cid)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if util.LoggerError(s.pg.Logger, err) != nil {
		return nil, err
	}
	return &r, nil
}

// FindByID returns the request with the given id, or nil if none exists.
func (s *RequestStore) FindByID(ctx context.Context, id string) (*types.Request, error) {
	stmt := fmt.Sprintf("SELECT %s FROM requests WHERE id = $1", requestColumns)
	row := s.q.QueryRowContext(ctx, stmt, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if util.LoggerError(s.pg.Logger, err) != nil {
		return nil, err
	}
	return &r, nil
}

// FindByStatus returns every request in the given status, oldest createdAt first.
func (s *RequestStore) FindByStatus(ctx context.Context, status types.RequestStatus) ([]types.Request, error) {
	stmt := fmt.Sprintf("SELECT %s FROM requests WHERE status = $1 ORDER BY created_at ASC, id ASC", requestColumns)
	rows, err := s.q.QueryContext(ctx, stmt, string(status))
	if util.LoggerError(s.pg.Logger, err) != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByStatus returns the number of requests currently in status.
func (s *RequestStore) CountByStatus(ctx context.Context, status types.RequestStatus) (int, error) {
	row := s.q.QueryRowContext(ctx, "SELECT count(*) FROM requests WHERE status = $1", string(status))
	var n int
	err := row.Scan(&n)
	return n, util.LoggerError(s.pg.Logger, err)
}

// FindAndMarkReady atomically promotes PENDING requests to READY,
// subject to minStreamCount, and re-includes stale READY rows, per
// spec.md §4.1. Must be called on a store bound to a SERIALIZABLE
// transaction (see WithConnection/BeginSerializable) so concurrent
// callers never select overlapping rows.
func (s *RequestStore) FindAndMarkReady(ctx context.Context, limit int, minStreamCount int, readyRetryInterval time.Duration) ([]types.Request, error) {
	distinctStreams, err := s.countDistinctPendingStreams(ctx)
	if util.LoggerError(s.pg.Logger, err) != nil {
		return nil, err
	}

	var promoted []types.Request
	if distinctStreams >= minStreamCount {
		promoted, err = s.promotePending(ctx, limit)
		if err != nil {
			return nil, err
		}
	}

	stale, err := s.reclaimStaleReady(ctx, readyRetryInterval)
	if err != nil {
		return nil, err
	}

	return append(promoted, stale...), nil
}

func (s *RequestStore) countDistinctPendingStreams(ctx context.Context) (int, error) {
	row := s.q.QueryRowContext(ctx, "SELECT count(DISTINCT stream_id) FROM requests WHERE status = $1", string(types.StatusPending))
	var n int
	return n, row.Scan(&n)
}

func (s *RequestStore) promotePending(ctx context.Context, limit int) ([]types.Request, error) {
	stmt := fmt.Sprintf(`
		WITH eligible_streams AS (
			SELECT DISTINCT stream_id FROM requests
			WHERE status = $1
			ORDER BY stream_id
			%s
		)
		UPDATE requests SET status = $2, updated_at = now()
		WHERE status = $1 AND stream_id IN (SELECT stream_id FROM eligible_streams)
		AND id IN (
			SELECT id FROM requests r2
			WHERE r2.status = $1
			ORDER BY r2.created_at ASC, r2.id ASC
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, limitClause(limit), requestColumns)
	rows, err := s.q.QueryContext(ctx, stmt, string(types.StatusPending), string(types.StatusReady))
	if util.LoggerError(s.pg.Logger, err) != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func limitClause(streamLimit int) string {
	if streamLimit <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", streamLimit)
}

func (s *RequestStore) reclaimStaleReady(ctx context.Context, readyRetryInterval time.Duration) ([]types.Request, error) {
	stmt := fmt.Sprintf(`
		UPDATE requests SET updated_at = now()
		WHERE status = $1 AND updated_at < now() - interval '1 millisecond' * $2
		RETURNING %s
	`, requestColumns)
	rows, err := s.q.QueryContext(ctx, stmt, string(types.StatusReady), readyRetryInterval.Milliseconds())
	if util.LoggerError(s.pg.Logger, err) != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RequestUpdate is the patch applied by UpdateRequests.
type RequestUpdate struct {
	Status  types.RequestStatus
	Message string
	Pinned  *bool
}

// UpdateRequests batch-updates the given requests by id, skipping any
// row whose current status is already terminal, to enforce at-most-once
// completion per spec.md §4.1.
func (s *RequestStore) UpdateRequests(ctx context.Context, patch RequestUpdate, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		stmt := `
			UPDATE requests SET status = $1, message = $2, updated_at = now()
			WHERE id = $3 AND status NOT IN ($4, $5)
		`
		args := []interface{}{string(patch.Status), patch.Message, id, string(types.StatusCompleted), string(types.StatusFailed)}
		if patch.Pinned != nil {
			stmt = `
				UPDATE requests SET status = $1, message = $2, pinned = $6, updated_at = now()
				WHERE id = $3 AND status NOT IN ($4, $5)
			`
			args = append(args, *patch.Pinned)
		}
		if _, err := s.q.ExecContext(ctx, stmt, args...); util.LoggerError(s.pg.Logger, err) != nil {
			return err
		}
	}
	return nil
}

// IncrementAttempt bumps AttemptCount for the given ids, used by the
// coordinator's bounded retry on transaction failure.
func (s *RequestStore) IncrementAttempt(ctx context.Context, ids []string) error {
	for _, id := range ids {
		_, err := s.q.ExecContext(ctx, "UPDATE requests SET attempt_count = attempt_count + 1, updated_at = now() WHERE id = $1", id)
		if util.LoggerError(s.pg.Logger, err) != nil {
			return err
		}
	}
	return nil
}

// FindExpiredPinned returns COMPLETED, pinned requests last updated
// before the expiry cutoff, for the garbage collector.
func (s *RequestStore) FindExpiredPinned(ctx context.Context, olderThan time.Time) ([]types.Request, error) {
	stmt := fmt.Sprintf("SELECT %s FROM requests WHERE status = $1 AND pinned = true AND updated_at < $2 ORDER BY updated_at ASC", requestColumns)
	rows, err := s.q.QueryContext(ctx, stmt, string(types.StatusCompleted), olderThan)
	if util.LoggerError(s.pg.Logger, err) != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkUnpinned clears the pinned flag for id, used once the garbage
// collector has told the stream service to unpin.
func (s *RequestStore) MarkUnpinned(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, "UPDATE requests SET pinned = false, updated_at = now() WHERE id = $1", id)
	return util.LoggerError(s.pg.Logger, err)
}
