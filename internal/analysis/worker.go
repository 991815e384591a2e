// Package analysis runs indicator computation off the decision path.
// The worker speaks a small message protocol over channels: a request
// produces zero or more progress messages followed by exactly one
// terminal message, either a result or an error. A stop request shuts
// the worker down without further messages.
package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"upbit-trader/internal/models"
)

// RequestType tags a worker request.
type RequestType string

const (
	RequestAnalyze RequestType = "analyze"
	RequestBatch   RequestType = "batch"
	RequestStop    RequestType = "stop"
)

// MessageType tags a worker message.
type MessageType string

const (
	MessageProgress MessageType = "progress"
	MessageResult   MessageType = "result"
	MessageError    MessageType = "error"
)

// Request asks the worker to compute indicators for one market or a
// batch of markets.
type Request struct {
	ID      string
	Type    RequestType
	Market  string
	Markets []string
}

// Result carries the computed readings for one market.
type Result struct {
	Market   string
	Readings []models.IndicatorReading
}

// Message is one unit of worker output. Progress is monotonically
// non-decreasing in [0, 1] within a request; Current and Total are
// set for batch progress. Consumers must treat Readings as untrusted
// input: the aggregator drops NaN scores downstream.
type Message struct {
	RequestID string
	Type      MessageType
	Progress  float64
	Stage     string
	Current   int
	Total     int
	Results   []Result
	Err       string
}

// Analyzer computes readings for one market. Implementations report
// progress through the callback; the worker wraps those into protocol
// messages and enforces monotonicity.
type Analyzer interface {
	Analyze(ctx context.Context, market string, progress func(stage string, p float64)) ([]models.IndicatorReading, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, market string, progress func(stage string, p float64)) ([]models.IndicatorReading, error)

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(ctx context.Context, market string, progress func(stage string, p float64)) ([]models.IndicatorReading, error) {
	return f(ctx, market, progress)
}

// Worker owns one request loop. Requests are processed in order; each
// yields exactly one terminal message.
type Worker struct {
	analyzer Analyzer
	requests chan Request
	messages chan Message
	logger   zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewWorker creates a worker around the given analyzer.
func NewWorker(analyzer Analyzer, logger zerolog.Logger) *Worker {
	return &Worker{
		analyzer: analyzer,
		requests: make(chan Request, 16),
		messages: make(chan Message, 64),
		done:     make(chan struct{}),
		logger:   logger.With().Str("component", "worker").Logger(),
	}
}

// Start launches the request loop.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.loop(ctx)
	})
}

// Submit queues a request. It returns false once the worker has
// stopped.
func (w *Worker) Submit(req Request) bool {
	select {
	case <-w.done:
		return false
	case w.requests <- req:
		return true
	}
}

// Messages is the worker's output stream. It is closed when the
// worker stops.
func (w *Worker) Messages() <-chan Message {
	return w.messages
}

// Stop asks the worker to terminate. No messages follow.
func (w *Worker) Stop() {
	w.Submit(Request{Type: RequestStop})
}

func (w *Worker) loop(ctx context.Context) {
	defer func() {
		w.stopOnce.Do(func() {
			close(w.done)
			close(w.messages)
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			switch req.Type {
			case RequestStop:
				return
			case RequestAnalyze:
				w.runAnalyze(ctx, req)
			case RequestBatch:
				w.runBatch(ctx, req)
			default:
				w.emit(Message{RequestID: req.ID, Type: MessageError,
					Err: fmt.Sprintf("unknown request type %q", req.Type)})
			}
		}
	}
}

func (w *Worker) runAnalyze(ctx context.Context, req Request) {
	last := 0.0
	readings, err := w.analyzer.Analyze(ctx, req.Market, func(stage string, p float64) {
		p = clampProgress(p, &last)
		w.emit(Message{RequestID: req.ID, Type: MessageProgress, Progress: p, Stage: stage})
	})
	if err != nil {
		w.logger.Warn().Str("request", req.ID).Str("market", req.Market).Err(err).Msg("analysis failed")
		w.emit(Message{RequestID: req.ID, Type: MessageError, Err: err.Error()})
		return
	}
	w.emit(Message{
		RequestID: req.ID,
		Type:      MessageResult,
		Progress:  1,
		Results:   []Result{{Market: req.Market, Readings: readings}},
	})
}

// runBatch computes each market in turn, emitting one progress message
// per completed item before the single terminal result. Any item
// failure terminates the whole batch with an error.
func (w *Worker) runBatch(ctx context.Context, req Request) {
	total := len(req.Markets)
	results := make([]Result, 0, total)
	for i, market := range req.Markets {
		readings, err := w.analyzer.Analyze(ctx, market, func(string, float64) {})
		if err != nil {
			w.logger.Warn().Str("request", req.ID).Str("market", market).Err(err).Msg("batch item failed")
			w.emit(Message{RequestID: req.ID, Type: MessageError,
				Err: fmt.Sprintf("%s: %s", market, err.Error())})
			return
		}
		results = append(results, Result{Market: market, Readings: readings})
		w.emit(Message{
			RequestID: req.ID,
			Type:      MessageProgress,
			Progress:  float64(i+1) / float64(total),
			Stage:     market,
			Current:   i + 1,
			Total:     total,
		})
	}
	w.emit(Message{RequestID: req.ID, Type: MessageResult, Progress: 1, Results: results})
}

func (w *Worker) emit(msg Message) {
	w.messages <- msg
}

// clampProgress keeps reported progress inside [0, 1] and
// non-decreasing within a request.
func clampProgress(p float64, last *float64) float64 {
	if p < *last {
		p = *last
	}
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	*last = p
	return p
}
