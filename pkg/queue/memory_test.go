package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"GoldPulse/pkg/logger"
)

type countingJob struct {
	name     string
	failures int32
	handled  int32
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Type() string { return j.name }

func (j *countingJob) Handle(_ context.Context, _ interface{}) error {
	if atomic.AddInt32(&j.failures, -1) >= 0 {
		return errors.New("transient")
	}
	atomic.AddInt32(&j.handled, 1)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestQueueProcessesMessages(t *testing.T) {
	job := &countingJob{name: "notify"}
	q := NewMemoryQueue(testLogger(t), &QueueConfig{Workers: 2, RetryLimit: 1}, []Job{job})
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := q.PublishMessage(context.Background(), "notify", i); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := atomic.LoadInt32(&job.handled); got != 5 {
		t.Fatalf("expected 5 handled, got %d", got)
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	job := &countingJob{name: "notify", failures: 2}
	q := NewMemoryQueue(testLogger(t), &QueueConfig{Workers: 1, RetryLimit: 3, RetryDelay: time.Millisecond}, []Job{job})
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := q.PublishMessage(context.Background(), "notify", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := atomic.LoadInt32(&job.handled); got != 1 {
		t.Fatalf("expected eventual success, handled=%d", got)
	}
}

func TestQueueRejectsUnknownType(t *testing.T) {
	q := NewMemoryQueue(testLogger(t), &QueueConfig{Workers: 1}, nil)
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer q.Stop(context.Background())

	if err := q.PublishMessage(context.Background(), "nope", nil); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}

// Publishers racing a shutdown must get an error back, never a panic from
// a send on the closed intake channel.
func TestQueuePublishDuringStopDoesNotPanic(t *testing.T) {
	job := &countingJob{name: "notify"}
	q := NewMemoryQueue(testLogger(t), &QueueConfig{Workers: 2, QueueSize: 4}, []Job{job})
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			q.PublishMessage(context.Background(), "notify", i)
		}
	}()

	time.Sleep(time.Millisecond)
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	<-done

	if err := q.PublishMessage(context.Background(), "notify", nil); err == nil {
		t.Fatalf("publish after stop must fail")
	}
}

func TestParsePayloadStruct(t *testing.T) {
	type payload struct {
		ID string `json:"id"`
	}

	got, err := ParsePayload[payload](map[string]interface{}{"id": "abc"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ID != "abc" {
		t.Fatalf("unexpected payload %+v", got)
	}
}
