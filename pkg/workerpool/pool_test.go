package workerpool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPoolProcessesTasks(t *testing.T) {
	fn := func(_ context.Context, task *Task) *Result {
		n := task.Payload.(int)
		return &Result{TaskID: task.ID, Success: true, Data: n * 2}
	}

	pool, err := New(Config{Workers: 4, QueueSize: 16}, fn, nil)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	pool.Start()

	for i := 0; i < 8; i++ {
		task := &Task{ID: fmt.Sprintf("t-%d", i), Payload: i, Context: context.Background()}
		if err := pool.Submit(task); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	seen := make(map[string]int)
	for i := 0; i < 8; i++ {
		select {
		case res := <-pool.Results():
			if !res.Success {
				t.Errorf("task %s failed: %v", res.TaskID, res.Error)
			}
			seen[res.TaskID] = res.Data.(int)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}

	if len(seen) != 8 {
		t.Errorf("results = %d, want 8", len(seen))
	}
	if seen["t-3"] != 6 {
		t.Errorf("t-3 = %d, want 6", seen["t-3"])
	}

	if err := pool.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
}

func TestPoolRetriesFailedTasks(t *testing.T) {
	attempts := make(chan int, 16)
	count := 0
	fn := func(_ context.Context, task *Task) *Result {
		count++
		attempts <- count
		if count < 3 {
			return &Result{TaskID: task.ID, Success: false, Error: errors.New("transient")}
		}
		return &Result{TaskID: task.ID, Success: true}
	}

	pool, err := New(Config{Workers: 1, QueueSize: 4, MaxRetries: 3, RetryDelay: time.Millisecond}, fn, nil)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	pool.Start()
	defer pool.Stop()

	if err := pool.Submit(&Task{ID: "t-1", Context: context.Background()}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case res := <-pool.Results():
		if !res.Success {
			t.Errorf("task should succeed after retries: %v", res.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	if len(attempts) != 3 {
		t.Errorf("attempts = %d, want 3", len(attempts))
	}
}

func TestSubmitQueueFull(t *testing.T) {
	block := make(chan struct{})
	fn := func(_ context.Context, task *Task) *Result {
		<-block
		return &Result{TaskID: task.ID, Success: true}
	}

	pool, err := New(Config{Workers: 1, QueueSize: 1}, fn, nil)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	pool.Start()
	defer func() {
		close(block)
		pool.Stop()
	}()

	// First task occupies the worker, second fills the queue.
	pool.Submit(&Task{ID: "t-1", Context: context.Background()})
	time.Sleep(10 * time.Millisecond)
	pool.Submit(&Task{ID: "t-2", Context: context.Background()})

	if err := pool.Submit(&Task{ID: "t-3", Context: context.Background()}); err == nil {
		t.Error("expected queue full error")
	}
}
