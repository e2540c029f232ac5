package backstop

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDoBatchAllSucceed(t *testing.T) {
	clk := newImmediateClock()

	fns := []func(context.Context) (int, error){
		func(_ context.Context) (int, error) { return 1, nil },
		func(_ context.Context) (int, error) { return 2, nil },
		func(_ context.Context) (int, error) { return 3, nil },
	}

	res := DoBatch(context.Background(), fns, retryParams(clk, 2))

	if len(res.Failures) != 0 {
		t.Fatalf("Failures = %v, want none", res.Failures)
	}

	got := append([]int(nil), res.Successes...)
	sort.Ints(got)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("Successes = %v, want {1,2,3} in any order", res.Successes)
	}
}

func TestDoBatchFailureDoesNotAbortSiblings(t *testing.T) {
	clk := newImmediateClock()
	boom := NewAPIError(CodeValidation, "bad payload", WithRetryable(false))

	fns := []func(context.Context) (string, error){
		func(_ context.Context) (string, error) { return "a", nil },
		func(_ context.Context) (string, error) { return "", boom },
		func(_ context.Context) (string, error) { return "c", nil },
	}

	res := DoBatch(context.Background(), fns, retryParams(clk, 2))

	if len(res.Successes) != 2 {
		t.Fatalf("Successes = %v, want 2 entries", res.Successes)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("Failures = %v, want 1 entry", res.Failures)
	}

	f := res.Failures[0]
	if f.Index != 1 {
		t.Fatalf("failure Index = %d, want 1", f.Index)
	}
	if !errors.Is(f.Err, boom) {
		t.Fatalf("failure Err = %v, want the original error", f.Err)
	}
}

func TestDoBatchEachOperationRetriesIndependently(t *testing.T) {
	clk := newImmediateClock()

	var flakyCalls, steadyCalls atomic.Int32

	fns := []func(context.Context) (int, error){
		func(_ context.Context) (int, error) {
			if flakyCalls.Add(1) < 3 {
				return 0, NewAPIError(CodeNetwork, "flaky")
			}
			return 10, nil
		},
		func(_ context.Context) (int, error) {
			steadyCalls.Add(1)
			return 20, nil
		},
	}

	res := DoBatch(context.Background(), fns, retryParams(clk, 3))

	if len(res.Failures) != 0 {
		t.Fatalf("Failures = %v, want none", res.Failures)
	}
	if flakyCalls.Load() != 3 {
		t.Fatalf("flaky op called %d times, want 3", flakyCalls.Load())
	}
	if steadyCalls.Load() != 1 {
		t.Fatalf("steady op called %d times, want 1", steadyCalls.Load())
	}
}

func TestDoBatchEmpty(t *testing.T) {
	clk := newImmediateClock()

	res := DoBatch[int](context.Background(), nil, retryParams(clk, 1))

	if len(res.Successes) != 0 || len(res.Failures) != 0 {
		t.Fatalf("empty batch produced %v / %v", res.Successes, res.Failures)
	}
}

func TestDoBatchMaxConcurrent(t *testing.T) {
	clk := newImmediateClock()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	gate := make(chan struct{})

	fns := make([]func(context.Context) (int, error), 6)
	for i := range fns {
		fns[i] = func(_ context.Context) (int, error) {
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			<-gate

			mu.Lock()
			active--
			mu.Unlock()

			return 0, nil
		}
	}

	done := make(chan BatchResult[int], 1)
	go func() {
		done <- DoBatch(context.Background(), fns, retryParams(clk, 0), MaxConcurrent(2))
	}()

	close(gate)
	res := <-done

	if len(res.Successes) != 6 {
		t.Fatalf("Successes = %d, want 6", len(res.Successes))
	}

	mu.Lock()
	defer mu.Unlock()

	if maxSeen > 2 {
		t.Fatalf("observed %d concurrent operations, want at most 2", maxSeen)
	}
}

func TestDoBatchAllFail(t *testing.T) {
	clk := newImmediateClock()

	fns := []func(context.Context) (int, error){
		func(_ context.Context) (int, error) {
			return 0, NewAPIError(CodeValidation, "one", WithRetryable(false))
		},
		func(_ context.Context) (int, error) {
			return 0, NewAPIError(CodeValidation, "two", WithRetryable(false))
		},
	}

	res := DoBatch(context.Background(), fns, retryParams(clk, 3))

	if len(res.Successes) != 0 {
		t.Fatalf("Successes = %v, want none", res.Successes)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("Failures = %v, want 2", res.Failures)
	}

	indices := map[int]bool{}
	for _, f := range res.Failures {
		indices[f.Index] = true
	}

	if !indices[0] || !indices[1] {
		t.Fatalf("failure indices = %v, want {0, 1}", res.Failures)
	}
}
