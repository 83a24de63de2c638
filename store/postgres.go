// Package store is the durable persistence layer: requests, anchors
// and transactions, backed by Postgres via database/sql and lib/pq,
// mirroring the teacher's postgres package shape.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpoint/anchor-core/util"
)

// Postgres holds the shared DB connection and logger every store type embeds.
type Postgres struct {
	DB     *sql.DB
	Logger log.Logger
}

// NewPostgres opens and pings a connection to connStr.
func NewPostgres(connStr string, logger log.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if util.LoggerError(logger, err) != nil {
		return nil, err
	}
	if err := db.Ping(); util.LoggerError(logger, err) != nil {
		return nil, err
	}
	return &Postgres{DB: db, Logger: logger}, nil
}

// EnsureSchema creates every table this package owns if it does not exist yet.
func (pg *Postgres) EnsureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := pg.DB.Exec(stmt); util.LoggerError(pg.Logger, err) != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
