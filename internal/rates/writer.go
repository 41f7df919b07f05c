package rates

import (
	"context"
	"fmt"
	"remitscout-backend/internal/components/telemetry"
	"sync"
	"time"
)

const (
	report_writer_enqueue = "best-effort-writer.enqueue"
	report_writer_put     = "best-effort-writer.put"
)

type writeResult struct {
	key string
	err error
}

// bestEffortWriter performs durable writes off the request path. Write failures travel over
// their own channel and are only ever logged.
type bestEffortWriter struct {
	store   DurableStore
	timeout time.Duration
	tel     telemetry.API

	queue   chan Record
	results chan writeResult
	done    chan struct{}

	mutex  sync.RWMutex
	closed bool

	// pending counts enqueued writes whose result was not reported yet. A WaitGroup cannot
	// be used since Enqueue may run concurrently with Wait at a zero count.
	pendingMutex sync.Mutex
	pendingCond  *sync.Cond
	pending      int
}

func newBestEffortWriter(store DurableStore, queueSize int, timeout time.Duration, tel telemetry.API) *bestEffortWriter {
	if queueSize <= 0 {
		queueSize = 1
	}
	w := &bestEffortWriter{
		store:   store,
		timeout: timeout,
		tel:     tel,
		queue:   make(chan Record, queueSize),
		results: make(chan writeResult, queueSize),
		done:    make(chan struct{}),
	}
	w.pendingCond = sync.NewCond(&w.pendingMutex)
	go w.run()
	go w.report()
	return w
}

// Enqueue schedules a write, it never blocks. A full queue drops the write.
func (w *bestEffortWriter) Enqueue(record Record) bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	if w.closed {
		w.tel.ReportWarning(report_writer_enqueue, "writer closed, dropping durable write", record.Key())
		return false
	}

	w.addPending(1)
	select {
	case w.queue <- record:
		return true
	default:
		w.addPending(-1)
		w.tel.ReportWarning(report_writer_enqueue, "write queue full, dropping durable write", record.Key())
		return false
	}
}

func (w *bestEffortWriter) run() {
	for record := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.store.Put(ctx, record)
		cancel()
		w.results <- writeResult{key: record.Key(), err: err}
	}
	close(w.results)
}

func (w *bestEffortWriter) report() {
	for res := range w.results {
		if res.err != nil {
			w.tel.ReportBroken(report_writer_put, fmt.Errorf("durable write '%s': %w", res.key, res.err))
		}
		w.addPending(-1)
	}
	close(w.done)
}

func (w *bestEffortWriter) addPending(delta int) {
	w.pendingMutex.Lock()
	w.pending += delta
	if w.pending == 0 {
		w.pendingCond.Broadcast()
	}
	w.pendingMutex.Unlock()
}

// Wait blocks until every write enqueued so far has completed and its result was reported.
func (w *bestEffortWriter) Wait() {
	w.pendingMutex.Lock()
	for w.pending > 0 {
		w.pendingCond.Wait()
	}
	w.pendingMutex.Unlock()
}

// Close stops accepting writes and drains the queue.
func (w *bestEffortWriter) Close() {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.queue)
	w.mutex.Unlock()
	<-w.done
}
