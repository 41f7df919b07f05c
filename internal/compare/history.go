package compare

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"remitscout-backend/internal/components/telemetry"
	"remitscout-backend/internal/db"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const report_history_record = "history-store.record"

// HistoryStore keeps every run and its quotes in sqlite.
type HistoryStore struct {
	qry    *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
}

func NewHistoryStore(database *sql.DB, tel telemetry.API) HistoryStore {
	return HistoryStore{
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
		tel:    telemetry.NewScopedAPI("compare", tel),
	}
}

// RunSummary describes a stored run.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Pairs      int
	Quotes     int
	Errors     int
}

// Record stores a run in one transaction. Failures are reported and returned,
// callers are free to ignore them.
func (h HistoryStore) Record(ctx context.Context, result Result) error {
	ctx, span := tracer.Start(ctx, "history:record")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", result.RunID))

	err := h.record(ctx, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record run")
		h.tel.ReportBroken(report_history_record, err, result.RunID)
	}
	return err
}

func (h HistoryStore) record(ctx context.Context, result Result) error {
	tx, discard, commit, err := h.makeTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer discard()

	quotes, errs := result.Counts()
	err = tx.CreateRun(ctx, db.CreateRunParams{
		ID:         result.RunID,
		StartedAt:  result.StartedAt.Unix(),
		FinishedAt: result.FinishedAt.Unix(),
		PairCount:  int64(len(result.Quotes)),
		QuoteCount: int64(quotes),
		ErrorCount: int64(errs),
	})
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	keys := make([]string, 0, len(result.Quotes))
	for key := range result.Quotes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		err = tx.CreateRunPair(ctx, db.CreateRunPairParams{RunID: result.RunID, PairKey: key})
		if err != nil {
			return fmt.Errorf("create run pair: %w", err)
		}
		for i, q := range result.Quotes[key] {
			payload, err := json.Marshal(q)
			if err != nil {
				return fmt.Errorf("serialize quote: %w", err)
			}
			err = tx.CreateQuote(ctx, db.CreateQuoteParams{
				RunID:        result.RunID,
				PairKey:      key,
				Position:     int64(i),
				Status:       string(q.Status),
				ProviderName: q.ProviderName,
				ProviderCode: q.ProviderCode,
				ExchangeRate: q.ExchangeRate,
				Payload:      string(payload),
			})
			if err != nil {
				return fmt.Errorf("create quote: %w", err)
			}
		}
	}

	return commit()
}

// Runs lists the most recent runs first.
func (h HistoryStore) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := h.qry.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, len(rows))
	for i, r := range rows {
		out[i] = RunSummary{
			ID:         r.ID,
			StartedAt:  time.Unix(r.StartedAt, 0).UTC(),
			FinishedAt: time.Unix(r.FinishedAt, 0).UTC(),
			Pairs:      int(r.PairCount),
			Quotes:     int(r.QuoteCount),
			Errors:     int(r.ErrorCount),
		}
	}
	return out, nil
}

// Quotes returns the quotes of a run keyed by pair, in their original order. Pairs that
// yielded no quotes are present with an empty slice.
func (h HistoryStore) Quotes(ctx context.Context, runID string) (map[string][]Quote, error) {
	pairs, err := h.qry.ListRunPairs(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := map[string][]Quote{}
	for _, key := range pairs {
		out[key] = []Quote{}
	}

	rows, err := h.qry.ListQuotes(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		var q Quote
		err := json.Unmarshal([]byte(r.Payload), &q)
		if err != nil {
			return nil, fmt.Errorf("parse stored quote %d: %w", r.ID, err)
		}
		out[r.PairKey] = append(out[r.PairKey], q)
	}
	return out, nil
}

// Prune deletes runs started before the cutoff along with their quotes.
func (h HistoryStore) Prune(ctx context.Context, before time.Time) error {
	return h.qry.DeleteRunsBefore(ctx, before.Unix())
}
