package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/subwatch/internal/jobs"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	var mu sync.Mutex
	var handled []string

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		handled = append(handled, job.GetID())
		mu.Unlock()
		return nil
	}))

	job := &jobs.ProcessStatementJob{UserID: "user-1", GCSURI: "gs://bucket/s.csv"}
	require.NoError(t, queue.PublishProcessStatement(ctx, job))
	assert.NotEmpty(t, job.JobID, "publish assigns an ID")

	waitFor(t, 2*time.Second, func() bool {
		saved, err := store.GetJob(ctx, job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{job.JobID}, handled)

	saved, err := store.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.NotNil(t, saved.StartedAt)
	assert.NotNil(t, saved.CompletedAt)
	assert.Empty(t, saved.Error)
}

func TestQueueRetriesFailedJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	var mu sync.Mutex
	attempts := 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		return nil
	}))

	job := &jobs.ProcessStatementJob{UserID: "user-1", GCSURI: "gs://bucket/s.csv", MaxRetries: 2}
	require.NoError(t, queue.PublishProcessStatement(ctx, job))

	waitFor(t, 5*time.Second, func() bool {
		saved, err := store.GetJob(ctx, job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestQueueMarksJobFailedAfterMaxRetries(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		return errors.New("permanent failure")
	}))

	job := &jobs.ProcessStatementJob{UserID: "user-1", GCSURI: "gs://bucket/s.csv", MaxRetries: 1}
	require.NoError(t, queue.PublishProcessStatement(ctx, job))

	waitFor(t, 5*time.Second, func() bool {
		saved, err := store.GetJob(ctx, job.JobID)
		return err == nil && saved.Status == jobs.JobStatusFailed
	})

	saved, err := store.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.RetryCount)
	assert.Contains(t, saved.Error, "permanent failure")
}

func TestQueueRejectsPublishAfterClose(t *testing.T) {
	queue := NewQueue(10, 1, NewStore())
	require.NoError(t, queue.Close())

	err := queue.PublishProcessStatement(context.Background(), &jobs.ProcessStatementJob{UserID: "user-1"})
	require.Error(t, err)
}

func TestQueueStopWaitsForInflightJobs(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)

	started := make(chan struct{})
	release := make(chan struct{})

	ctx := context.Background()
	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		close(started)
		<-release
		return nil
	}))

	job := &jobs.ProcessStatementJob{UserID: "user-1", GCSURI: "gs://bucket/s.csv"}
	require.NoError(t, queue.PublishProcessStatement(ctx, job))
	<-started

	stopDone := make(chan error, 1)
	go func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		stopDone <- queue.Stop(stopCtx)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a job was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopDone)
}
