package db

import (
	"context"
)

const createRun = `-- name: CreateRun :exec
insert into scrape_run (id, started_at, finished_at, pair_count, quote_count, error_count)
values (?, ?, ?, ?, ?, ?)
`

type CreateRunParams struct {
	ID         string
	StartedAt  int64
	FinishedAt int64
	PairCount  int64
	QuoteCount int64
	ErrorCount int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.StartedAt,
		arg.FinishedAt,
		arg.PairCount,
		arg.QuoteCount,
		arg.ErrorCount,
	)
	return err
}

const createRunPair = `-- name: CreateRunPair :exec
insert into scrape_run_pair (run_id, pair_key)
values (?, ?)
`

type CreateRunPairParams struct {
	RunID   string
	PairKey string
}

func (q *Queries) CreateRunPair(ctx context.Context, arg CreateRunPairParams) error {
	_, err := q.db.ExecContext(ctx, createRunPair, arg.RunID, arg.PairKey)
	return err
}

const listRunPairs = `-- name: ListRunPairs :many
select pair_key from scrape_run_pair
where run_id = ?
order by pair_key
`

func (q *Queries) ListRunPairs(ctx context.Context, runID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listRunPairs, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var pair_key string
		if err := rows.Scan(&pair_key); err != nil {
			return nil, err
		}
		items = append(items, pair_key)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createQuote = `-- name: CreateQuote :exec
insert into scrape_quote (run_id, pair_key, position, status, provider_name, provider_code, exchange_rate, payload)
values (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateQuoteParams struct {
	RunID        string
	PairKey      string
	Position     int64
	Status       string
	ProviderName string
	ProviderCode string
	ExchangeRate string
	Payload      string
}

func (q *Queries) CreateQuote(ctx context.Context, arg CreateQuoteParams) error {
	_, err := q.db.ExecContext(ctx, createQuote,
		arg.RunID,
		arg.PairKey,
		arg.Position,
		arg.Status,
		arg.ProviderName,
		arg.ProviderCode,
		arg.ExchangeRate,
		arg.Payload,
	)
	return err
}

const listRuns = `-- name: ListRuns :many
select id, started_at, finished_at, pair_count, quote_count, error_count from scrape_run
order by started_at desc
limit ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]ScrapeRun, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ScrapeRun
	for rows.Next() {
		var i ScrapeRun
		if err := rows.Scan(
			&i.ID,
			&i.StartedAt,
			&i.FinishedAt,
			&i.PairCount,
			&i.QuoteCount,
			&i.ErrorCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRun = `-- name: GetRun :one
select id, started_at, finished_at, pair_count, quote_count, error_count from scrape_run where id = ?
`

func (q *Queries) GetRun(ctx context.Context, id string) (ScrapeRun, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i ScrapeRun
	err := row.Scan(
		&i.ID,
		&i.StartedAt,
		&i.FinishedAt,
		&i.PairCount,
		&i.QuoteCount,
		&i.ErrorCount,
	)
	return i, err
}

const listQuotes = `-- name: ListQuotes :many
select id, run_id, pair_key, position, status, provider_name, provider_code, exchange_rate, payload from scrape_quote
where run_id = ?
order by pair_key, position
`

func (q *Queries) ListQuotes(ctx context.Context, runID string) ([]ScrapeQuote, error) {
	rows, err := q.db.QueryContext(ctx, listQuotes, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ScrapeQuote
	for rows.Next() {
		var i ScrapeQuote
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.PairKey,
			&i.Position,
			&i.Status,
			&i.ProviderName,
			&i.ProviderCode,
			&i.ExchangeRate,
			&i.Payload,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteRunsBefore = `-- name: DeleteRunsBefore :exec
delete from scrape_run where started_at < ?
`

func (q *Queries) DeleteRunsBefore(ctx context.Context, startedAt int64) error {
	_, err := q.db.ExecContext(ctx, deleteRunsBefore, startedAt)
	return err
}
