// Package sender delivers outbound Telegram messages through a bounded worker
// queue with retries for transient failures.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/orbitbot/core/logger"
	"github.com/m3rciful/orbitbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the outbound queue.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx    context.Context
	action string
	target string
	run    func(ctx context.Context) error
}

// Queue runs send jobs on a fixed worker pool.
type Queue struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewQueue starts the workers. Zero options are replaced with defaults.
func NewQueue(opts Options) *Queue {
	opts = opts.withDefaults()
	q := &Queue{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}
	q.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue schedules run without blocking. run must be safe to repeat when
// retries are enabled.
func (q *Queue) Enqueue(ctx context.Context, action, target string, run func(ctx context.Context) error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job{ctx: context.WithoutCancel(orBackground(ctx)), action: action, target: target, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats reports delivered and failed job counts.
func (q *Queue) Stats() (sent, failed uint64) {
	return q.sent.Load(), q.failed.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.handle(j)
	}
}

func (q *Queue) handle(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, q.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := q.opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		lastErr = j.run(ctx)
		if lastErr == nil {
			q.sent.Add(1)
			attrs := append(jobAttrs(j.ctx, j), slog.Duration("duration", logger.Took(start)))
			if attempt > 1 {
				attrs = append(attrs, slog.Int("attempts", attempt))
			}
			logger.Debug(j.ctx, "tg.sender", "send.ok", attrs...)
			return
		}
		if !netutil.ShouldRetry(lastErr) || attempt == attempts {
			break
		}

		delay := q.opts.RetryBackoff * time.Duration(attempt)
		logger.Debug(j.ctx, "tg.sender", "send.retry",
			append(jobAttrs(j.ctx, j), slog.Int("attempts", attempt), slog.Duration("delay", delay))...,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
			attempt = attempts
		case <-timer.C:
		}
	}

	q.failed.Add(1)
	logger.Error(j.ctx, "tg.sender", "send.fail",
		append(jobAttrs(j.ctx, j),
			slog.String("status", "fail"),
			slog.String("err", RedactToken(lastErr)),
			slog.String("error_kind", classifyError(lastErr)),
			slog.Duration("duration", logger.Took(start)),
		)...,
	)
}

func jobAttrs(_ context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.target != "" {
		attrs = append(attrs, slog.String("target", j.target))
	}
	return attrs
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
