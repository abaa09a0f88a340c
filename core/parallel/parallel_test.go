package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	const items = 1000
	seen := make([]int32, items)

	Parallelize(items, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})

	for i, count := range seen {
		if count != 1 {
			t.Fatalf("item %d visited %d times, want 1", i, count)
		}
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) { called = true })
	if called {
		t.Error("fn called for zero items")
	}
}

func TestRunTasksCollectsErrors(t *testing.T) {
	wantErr := errors.New("task failed")

	errs := RunTasks(8, 3, func(task int) error {
		if task == 5 {
			return wantErr
		}
		return nil
	})

	for i, err := range errs {
		if i == 5 {
			if !errors.Is(err, wantErr) {
				t.Errorf("task 5 error = %v, want %v", err, wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("task %d unexpected error: %v", i, err)
		}
	}
}

func TestRunTasksEachTaskOnce(t *testing.T) {
	var total int64
	RunTasks(100, 0, func(task int) error {
		atomic.AddInt64(&total, int64(task))
		return nil
	})
	if total != 4950 {
		t.Errorf("task index sum = %d, want 4950", total)
	}
}
