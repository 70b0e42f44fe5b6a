package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"GoldPulse/pkg/logger"
)

// MemoryQueue is an in-process worker pool implementing QueueService.
// Notification and event jobs are process-local by nature here; durability
// across restarts comes from the signal store, not the queue, so messages
// only need to survive until Stop drains them.
type MemoryQueue struct {
	lgr    *logger.Logger
	config *QueueConfig

	jobs map[string]Job
	ch   chan Message

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped chan struct{}
}

// NewMemoryQueue creates a queue with the given worker pool configuration.
func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig, jobs []Job) *MemoryQueue {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	q := &MemoryQueue{
		lgr:     lgr,
		config:  config,
		jobs:    make(map[string]Job),
		ch:      make(chan Message, config.QueueSize),
		stopped: make(chan struct{}),
	}
	q.RegisterJobs(jobs)
	return q
}

// RegisterJobs registers multiple job handlers.
func (q *MemoryQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		q.RegisterJob(job)
	}
}

// RegisterJob registers a job handler by its message type.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

// Start launches the worker pool.
func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return nil
	}
	q.started = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.lgr.Info("queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop closes intake and blocks until queued messages are drained or ctx
// expires.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = false
	close(q.stopped)
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.lgr.Info("queue drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue drain: %w", ctx.Err())
	}
}

// PublishMessage enqueues a message for its registered job handler. It
// never blocks the caller: a full queue drops the message with an error.
func (q *MemoryQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	// The send stays under the mutex: Stop closes q.ch while holding it,
	// so an unguarded send could hit a closed channel and panic.
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return fmt.Errorf("queue not started")
	}
	if _, ok := q.jobs[msgType]; !ok {
		return fmt.Errorf("no job registered for type %q", msgType)
	}

	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return fmt.Errorf("queue full, dropping %s message", msgType)
	}
}

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()
	for msg := range q.ch {
		q.process(msg)
	}
}

func (q *MemoryQueue) process(msg Message) {
	q.mu.Lock()
	job := q.jobs[msg.Type]
	q.mu.Unlock()
	if job == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		return
	}

	msg.Attempts++
	if msg.Attempts <= q.config.RetryLimit {
		q.lgr.Warn("job failed, retrying",
			logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts),
			logger.Error(err))
		time.Sleep(q.config.RetryDelay)
		q.requeue(msg)
		return
	}

	q.lgr.Error("job failed permanently",
		logger.String("job", job.Name()),
		logger.String("message_id", msg.ID),
		logger.Error(err))
}

// requeue puts a retry back on the channel unless shutdown already closed
// intake, in which case the worker runs it inline so drain semantics hold.
func (q *MemoryQueue) requeue(msg Message) {
	q.mu.Lock()
	if q.started {
		select {
		case q.ch <- msg:
			q.mu.Unlock()
			return
		default:
		}
	}
	q.mu.Unlock()
	q.process(msg)
}
