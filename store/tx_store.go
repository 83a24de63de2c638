package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chainpoint/anchor-core/types"
	"github.com/chainpoint/anchor-core/util"
)

// TransactionStore is the durable record of blockchain transactions the
// core has successfully confirmed, at most one per anchoring cycle.
type TransactionStore struct {
	pg *Postgres
	q  querier
}

// NewTransactionStore returns a TransactionStore bound to pg's connection pool.
func NewTransactionStore(pg *Postgres) *TransactionStore {
	return &TransactionStore{pg: pg, q: pg.DB}
}

const txColumns = "chain_id, tx_hash, block_number, block_timestamp, created_at"

// Create records tx. TxHash is the primary key, so a duplicate receipt
// for the same hash fails rather than being recorded twice.
func (s *TransactionStore) Create(ctx context.Context, tx types.Transaction) error {
	stmt := fmt.Sprintf("INSERT INTO transactions (%s) VALUES ($1, $2, $3, $4, $5)", txColumns)
	_, err := s.q.ExecContext(ctx, stmt, tx.ChainID, tx.TxHash, tx.BlockNumber, tx.BlockTimestamp, tx.CreatedAt)
	return util.LoggerError(s.pg.Logger, err)
}

// FindByHash returns the transaction with the given hash, or nil.
func (s *TransactionStore) FindByHash(ctx context.Context, txHash string) (*types.Transaction, error) {
	stmt := fmt.Sprintf("SELECT %s FROM transactions WHERE tx_hash = $1", txColumns)
	row := s.q.QueryRowContext(ctx, stmt, txHash)
	return scanTx(row)
}

// FindLatest returns the most recently created transaction, or nil if
// none has been recorded yet. The process entrypoint uses it to log the
// last recorded anchor transaction at startup.
func (s *TransactionStore) FindLatest(ctx context.Context) (*types.Transaction, error) {
	stmt := fmt.Sprintf("SELECT %s FROM transactions ORDER BY created_at DESC LIMIT 1", txColumns)
	row := s.q.QueryRowContext(ctx, stmt)
	return scanTx(row)
}

func scanTx(row *sql.Row) (*types.Transaction, error) {
	var tx types.Transaction
	err := row.Scan(&tx.ChainID, &tx.TxHash, &tx.BlockNumber, &tx.BlockTimestamp, &tx.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
