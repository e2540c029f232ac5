package backstop

import (
	"context"
	"errors"
	"testing"
)

func TestDoDegradedPrimaryWins(t *testing.T) {
	clk := newImmediateClock()

	degradedCalls := 0
	got, err := DoDegraded(
		context.Background(),
		func(_ context.Context) (string, error) { return "full", nil },
		func(_ context.Context) (string, error) {
			degradedCalls++
			return "reduced", nil
		},
		retryParams(clk, 3),
	)
	if err != nil {
		t.Fatalf("DoDegraded() error = %v", err)
	}
	if got != "full" {
		t.Fatalf("DoDegraded() = %q, want primary result", got)
	}
	if degradedCalls != 0 {
		t.Fatal("degraded path invoked although primary succeeded")
	}
}

func TestDoDegradedFallsBackAfterRetriesExhausted(t *testing.T) {
	clk := newImmediateClock()

	primaryCalls := 0
	got, err := DoDegraded(
		context.Background(),
		func(_ context.Context) (string, error) {
			primaryCalls++
			return "", NewAPIError(CodeNetwork, "primary down")
		},
		func(_ context.Context) (string, error) { return "reduced", nil },
		retryParams(clk, 2),
	)
	if err != nil {
		t.Fatalf("DoDegraded() error = %v", err)
	}
	if got != "reduced" {
		t.Fatalf("DoDegraded() = %q, want degraded result", got)
	}
	if primaryCalls != 3 {
		t.Fatalf("primary called %d times, want full retry budget of 3", primaryCalls)
	}
}

func TestDoDegradedSecondaryErrorPropagates(t *testing.T) {
	clk := newImmediateClock()
	secondary := errors.New("degraded path also down")

	_, err := DoDegraded(
		context.Background(),
		func(_ context.Context) (int, error) {
			return 0, NewAPIError(CodeServerError, "boom")
		},
		func(_ context.Context) (int, error) { return 0, secondary },
		retryParams(clk, 0),
	)

	if !errors.Is(err, secondary) {
		t.Fatalf("error = %v, want the secondary's error", err)
	}
}

func TestDoDegradedSecondaryRunsOnce(t *testing.T) {
	clk := newImmediateClock()

	degradedCalls := 0
	params := retryParams(clk, 3)

	_, _ = DoDegraded(
		context.Background(),
		func(_ context.Context) (int, error) {
			return 0, NewAPIError(CodeServerError, "boom")
		},
		func(_ context.Context) (int, error) {
			degradedCalls++
			return 0, errors.New("still broken")
		},
		params,
	)

	if degradedCalls != 1 {
		t.Fatalf("degraded called %d times, want exactly 1 (no retry wrapping)", degradedCalls)
	}
}

func TestDoDegradedEmitsHook(t *testing.T) {
	clk := newImmediateClock()

	var reported error

	params := retryParams(clk, 0)
	params.Hooks = &Hooks{OnDegraded: func(err error) { reported = err }}

	primaryErr := NewAPIError(CodeServerError, "boom")
	_, _ = DoDegraded(
		context.Background(),
		func(_ context.Context) (int, error) { return 0, primaryErr },
		func(_ context.Context) (int, error) { return 42, nil },
		params,
	)

	if !errors.Is(reported, primaryErr) {
		t.Fatalf("OnDegraded got %v, want the primary's final error", reported)
	}
}

func TestDoFallbackReturnsStaticValue(t *testing.T) {
	used := 0
	hooks := &Hooks{OnFallbackUsed: func(error) { used++ }}

	got, err := DoFallback(
		context.Background(),
		func(_ context.Context) ([]string, error) {
			return nil, errors.New("nope")
		},
		[]string{"default"},
		hooks,
	)
	if err != nil {
		t.Fatalf("DoFallback() error = %v, want nil", err)
	}
	if len(got) != 1 || got[0] != "default" {
		t.Fatalf("DoFallback() = %v, want the fallback value", got)
	}
	if used != 1 {
		t.Fatalf("OnFallbackUsed fired %d times, want 1", used)
	}
}

func TestDoFallbackSkippedOnSuccess(t *testing.T) {
	got, err := DoFallback(
		context.Background(),
		func(_ context.Context) (int, error) { return 7, nil },
		-1,
		nil,
	)
	if err != nil || got != 7 {
		t.Fatalf("DoFallback() = %d, %v, want 7, nil", got, err)
	}
}

func TestDoFallbackFuncReceivesError(t *testing.T) {
	boom := errors.New("boom")

	got, err := DoFallbackFunc(
		context.Background(),
		func(_ context.Context) (string, error) { return "", boom },
		func(err error) (string, error) {
			if !errors.Is(err, boom) {
				t.Fatalf("fallback got %v, want original error", err)
			}
			return "recovered", nil
		},
		nil,
	)
	if err != nil {
		t.Fatalf("DoFallbackFunc() error = %v", err)
	}
	if got != "recovered" {
		t.Fatalf("DoFallbackFunc() = %q", got)
	}
}
