package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db: tx,
	}
}

type ScrapeRun struct {
	ID         string
	StartedAt  int64
	FinishedAt int64
	PairCount  int64
	QuoteCount int64
	ErrorCount int64
}

type ScrapeRunPair struct {
	RunID   string
	PairKey string
}

type ScrapeQuote struct {
	ID           int64
	RunID        string
	PairKey      string
	Position     int64
	Status       string
	ProviderName string
	ProviderCode string
	ExchangeRate string
	Payload      string
}
