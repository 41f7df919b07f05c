package compare

import (
	"context"
	"errors"
	"fmt"
	"remitscout-backend/internal/components/assert"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/components/telemetry"
	"sync/atomic"
	"time"
)

const (
	report_job_run      = "job.run"
	report_job_snapshot = "job.snapshot"
	report_job_prune    = "job.prune"
)

// ErrRunInProgress is returned when a job is triggered while its previous run is still going.
var ErrRunInProgress = errors.New("comparison run already in progress")

type JobOptions struct {
	Pairs        []Pair
	SnapshotPath string
	// History is optional.
	History *HistoryStore
	// Retention prunes history older than this after each run, 0 keeps everything.
	Retention time.Duration
}

// Job is one scheduled comparison: run every pair, write the snapshot, record the history.
type Job struct {
	runner  *Runner
	opts    JobOptions
	writer  SnapshotWriter
	time    chrono.TimeAPI
	tel     telemetry.API
	running atomic.Bool
}

func NewJob(runner *Runner, opts JobOptions, timeAPI chrono.TimeAPI, tel telemetry.API) *Job {
	assert.NotNil(runner, "runner")
	assert.NotNil(timeAPI, "time")
	assert.NotNil(tel, "telemetry")

	return &Job{
		runner: runner,
		opts:   opts,
		time:   timeAPI,
		tel:    telemetry.NewScopedAPI("compare", tel),
	}
}

// Run never overlaps with itself. Snapshot failures are returned, history failures are
// only reported since the snapshot is what consumers read.
func (j *Job) Run(ctx context.Context) (Result, error) {
	if !j.running.CompareAndSwap(false, true) {
		j.tel.ReportWarning(report_job_run, ErrRunInProgress)
		return Result{}, ErrRunInProgress
	}
	defer j.running.Store(false)

	result := j.runner.Run(ctx, j.opts.Pairs)

	if j.opts.SnapshotPath != "" {
		err := j.writer.Write(j.opts.SnapshotPath, result)
		if err != nil {
			j.tel.ReportBroken(report_job_snapshot, err, j.opts.SnapshotPath)
			return result, fmt.Errorf("write snapshot: %w", err)
		}
	}

	if j.opts.History != nil {
		// Record reports its own failures
		_ = j.opts.History.Record(ctx, result)

		if j.opts.Retention > 0 {
			err := j.opts.History.Prune(ctx, j.time.Now().Add(-j.opts.Retention))
			if err != nil {
				j.tel.ReportWarning(report_job_prune, err)
			}
		}
	}

	quotes, errs := result.Counts()
	j.tel.ReportDebug(
		"comparison run finished",
		telemetry.KV{Key: "run_id", Value: result.RunID},
		telemetry.KV{Key: "quotes", Value: quotes},
		telemetry.KV{Key: "errors", Value: errs},
	)
	return result, nil
}
