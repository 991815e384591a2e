package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"upbit-trader/internal/models"
)

func stubAnalyzer(stages int, fail bool) Analyzer {
	return AnalyzerFunc(func(ctx context.Context, market string, progress func(stage string, p float64)) ([]models.IndicatorReading, error) {
		for i := 0; i < stages; i++ {
			progress(fmt.Sprintf("stage-%d", i), float64(i)/float64(stages))
		}
		if fail {
			return nil, fmt.Errorf("indicator source unavailable")
		}
		return []models.IndicatorReading{
			{Name: "rsi", Score: 0.4, SampledAt: time.Now()},
		}, nil
	})
}

// collect drains messages for one request until its terminal message.
func collect(t *testing.T, w *Worker, requestID string) []Message {
	t.Helper()
	var out []Message
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-w.Messages():
			if !ok {
				t.Fatal("message channel closed before terminal message")
			}
			if msg.RequestID != requestID {
				continue
			}
			out = append(out, msg)
			if msg.Type == MessageResult || msg.Type == MessageError {
				return out
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal message")
		}
	}
}

func TestAnalyzeEmitsExactlyOneTerminalMessage(t *testing.T) {
	w := NewWorker(stubAnalyzer(3, false), zerolog.Nop())
	w.Start(context.Background())
	defer w.Stop()

	w.Submit(Request{ID: "r1", Type: RequestAnalyze, Market: "KRW-BTC"})
	msgs := collect(t, w, "r1")

	var terminals int
	for _, m := range msgs {
		if m.Type == MessageResult || m.Type == MessageError {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("terminal messages = %d, want 1", terminals)
	}
	last := msgs[len(msgs)-1]
	if last.Type != MessageResult {
		t.Fatalf("expected result, got %s (%s)", last.Type, last.Err)
	}
	if len(last.Results) != 1 || last.Results[0].Market != "KRW-BTC" {
		t.Errorf("unexpected results: %+v", last.Results)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	// An analyzer that misreports regressing progress.
	analyzer := AnalyzerFunc(func(ctx context.Context, market string, progress func(string, float64)) ([]models.IndicatorReading, error) {
		progress("a", 0.5)
		progress("b", 0.2) // regression: must be clamped up
		progress("c", 1.7) // overflow: must be clamped to 1
		return nil, nil
	})
	w := NewWorker(analyzer, zerolog.Nop())
	w.Start(context.Background())
	defer w.Stop()

	w.Submit(Request{ID: "r1", Type: RequestAnalyze, Market: "KRW-BTC"})
	msgs := collect(t, w, "r1")

	last := -1.0
	for _, m := range msgs {
		if m.Progress < last {
			t.Errorf("progress regressed: %f after %f", m.Progress, last)
		}
		if m.Progress < 0 || m.Progress > 1 {
			t.Errorf("progress out of range: %f", m.Progress)
		}
		last = m.Progress
	}
}

func TestAnalyzeFailureEmitsError(t *testing.T) {
	w := NewWorker(stubAnalyzer(1, true), zerolog.Nop())
	w.Start(context.Background())
	defer w.Stop()

	w.Submit(Request{ID: "r1", Type: RequestAnalyze, Market: "KRW-BTC"})
	msgs := collect(t, w, "r1")

	last := msgs[len(msgs)-1]
	if last.Type != MessageError {
		t.Fatalf("expected error terminal, got %s", last.Type)
	}
	if last.Err == "" {
		t.Error("error message should carry a reason")
	}
}

func TestBatchProgressPerItem(t *testing.T) {
	w := NewWorker(stubAnalyzer(0, false), zerolog.Nop())
	w.Start(context.Background())
	defer w.Stop()

	markets := []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"}
	w.Submit(Request{ID: "b1", Type: RequestBatch, Markets: markets})
	msgs := collect(t, w, "b1")

	var progress []Message
	for _, m := range msgs {
		if m.Type == MessageProgress {
			progress = append(progress, m)
		}
	}
	if len(progress) != len(markets) {
		t.Fatalf("progress messages = %d, want %d", len(progress), len(markets))
	}
	for i, m := range progress {
		if m.Current != i+1 || m.Total != len(markets) {
			t.Errorf("progress %d: current=%d total=%d", i, m.Current, m.Total)
		}
	}

	last := msgs[len(msgs)-1]
	if last.Type != MessageResult || len(last.Results) != len(markets) {
		t.Errorf("terminal result should carry all items, got %+v", last)
	}
}

func TestBatchItemFailureTerminatesBatch(t *testing.T) {
	calls := 0
	analyzer := AnalyzerFunc(func(ctx context.Context, market string, progress func(string, float64)) ([]models.IndicatorReading, error) {
		calls++
		if market == "KRW-ETH" {
			return nil, fmt.Errorf("bad feed")
		}
		return nil, nil
	})
	w := NewWorker(analyzer, zerolog.Nop())
	w.Start(context.Background())
	defer w.Stop()

	w.Submit(Request{ID: "b1", Type: RequestBatch, Markets: []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"}})
	msgs := collect(t, w, "b1")

	last := msgs[len(msgs)-1]
	if last.Type != MessageError {
		t.Fatalf("expected error terminal, got %s", last.Type)
	}
	if calls != 2 {
		t.Errorf("batch should stop at the failing item, analyzed %d", calls)
	}
}

func TestStopClosesMessages(t *testing.T) {
	w := NewWorker(stubAnalyzer(0, false), zerolog.Nop())
	w.Start(context.Background())

	w.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-w.Messages():
			if !ok {
				if w.Submit(Request{ID: "late", Type: RequestAnalyze}) {
					t.Error("submit after stop should be rejected")
				}
				return
			}
		case <-deadline:
			t.Fatal("messages channel not closed after stop")
		}
	}
}
