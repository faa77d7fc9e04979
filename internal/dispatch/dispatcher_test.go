package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"
)

type scriptedSubmitter struct {
	mu      sync.Mutex
	errs    []error // consumed in order; nil means success
	calls   int
	orders  []model.ReplicaOrder
	results chan struct{}
}

func newScriptedSubmitter(errs ...error) *scriptedSubmitter {
	return &scriptedSubmitter{errs: errs, results: make(chan struct{}, 16)}
}

func (s *scriptedSubmitter) SubmitMarketOrder(_ context.Context, symbol string, side enum.OrderSide, quantity decimal.Decimal) (model.OrderResult, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.orders = append(s.orders, model.ReplicaOrder{Symbol: symbol, Side: side, Quantity: quantity})
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	s.mu.Unlock()

	s.results <- struct{}{}
	if err != nil {
		return model.OrderResult{}, err
	}
	return model.OrderResult{OrderID: int64(1000 + idx), Symbol: symbol, Status: enum.OrderStatusFilled}, nil
}

func (s *scriptedSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type permanentErr struct{ msg string }

func (e permanentErr) Error() string   { return e.msg }
func (e permanentErr) Transient() bool { return false }

type transientErr struct{ msg string }

func (e transientErr) Error() string   { return e.msg }
func (e transientErr) Transient() bool { return true }

type memoryRecorder struct {
	mu        sync.Mutex
	successes []model.OrderResult
	failures  []string
	permanent []bool
}

func (r *memoryRecorder) RecordSuccess(_ context.Context, _ model.ReplicaOrder, result model.OrderResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, result)
}

func (r *memoryRecorder) RecordFailure(_ context.Context, _ model.ReplicaOrder, reason string, permanent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, reason)
	r.permanent = append(r.permanent, permanent)
}

func testOrder() model.ReplicaOrder {
	return model.ReplicaOrder{
		Symbol:        "ETHUSDT",
		Side:          enum.OrderSideBuy,
		Quantity:      decimal.RequireFromString("0.15"),
		Source:        "alpha",
		SourceOrderID: 42,
	}
}

func awaitCalls(t *testing.T, submitter *scriptedSubmitter, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for range want {
		select {
		case <-submitter.results:
		case <-deadline:
			t.Fatalf("timed out waiting for %d submissions, got %d", want, submitter.callCount())
		}
	}
}

func TestDispatcherSubmitsOrder(t *testing.T) {
	submitter := newScriptedSubmitter()
	recorder := &memoryRecorder{}
	metrics := obs.NewMetrics()
	dispatcher, err := New(Config{Workers: 1, RetryBackoff: time.Millisecond}, submitter, recorder, metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Run(ctx)

	require.NoError(t, dispatcher.Enqueue(testOrder()))
	awaitCalls(t, submitter, 1)

	cancel()
	dispatcher.Wait()

	assert.Equal(t, uint64(1), metrics.Snapshot().OutcomeCounts[obs.OutcomeReplicated])
	assert.Len(t, recorder.successes, 1)
	assert.Equal(t, int64(1000), recorder.successes[0].OrderID)
}

func TestDispatcherRetriesTransient(t *testing.T) {
	submitter := newScriptedSubmitter(transientErr{"timeout"}, transientErr{"timeout"}, nil)
	metrics := obs.NewMetrics()
	dispatcher, err := New(Config{Workers: 1, MaxAttempts: 3, RetryBackoff: time.Millisecond}, submitter, nil, metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Run(ctx)

	require.NoError(t, dispatcher.Enqueue(testOrder()))
	awaitCalls(t, submitter, 3)

	cancel()
	dispatcher.Wait()

	assert.Equal(t, 3, submitter.callCount())
	assert.Equal(t, uint64(1), metrics.Snapshot().OutcomeCounts[obs.OutcomeReplicated])
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	submitter := newScriptedSubmitter(transientErr{"timeout"}, transientErr{"timeout"}, transientErr{"timeout"})
	recorder := &memoryRecorder{}
	metrics := obs.NewMetrics()
	dispatcher, err := New(Config{Workers: 1, MaxAttempts: 3, RetryBackoff: time.Millisecond}, submitter, recorder, metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Run(ctx)

	require.NoError(t, dispatcher.Enqueue(testOrder()))
	awaitCalls(t, submitter, 3)

	cancel()
	dispatcher.Wait()

	assert.Equal(t, 3, submitter.callCount())
	assert.Equal(t, uint64(1), metrics.Snapshot().OutcomeCounts[obs.OutcomeFailedTransient])
	require.Len(t, recorder.permanent, 1)
	assert.False(t, recorder.permanent[0])
}

func TestDispatcherNeverRetriesPermanent(t *testing.T) {
	submitter := newScriptedSubmitter(permanentErr{"insufficient margin"})
	recorder := &memoryRecorder{}
	metrics := obs.NewMetrics()
	dispatcher, err := New(Config{Workers: 1, MaxAttempts: 5, RetryBackoff: time.Millisecond}, submitter, recorder, metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Run(ctx)

	require.NoError(t, dispatcher.Enqueue(testOrder()))
	awaitCalls(t, submitter, 1)

	cancel()
	dispatcher.Wait()

	assert.Equal(t, 1, submitter.callCount())
	assert.Equal(t, uint64(1), metrics.Snapshot().OutcomeCounts[obs.OutcomeFailedPermanent])
	require.Len(t, recorder.permanent, 1)
	assert.True(t, recorder.permanent[0])
	assert.Equal(t, "insufficient margin", recorder.failures[0])
}

func TestDispatcherEnqueueFull(t *testing.T) {
	submitter := newScriptedSubmitter()
	dispatcher, err := New(Config{Workers: 1, QueueSize: 1}, submitter, nil, nil)
	require.NoError(t, err)

	// workers not started, the queue holds exactly one order
	require.NoError(t, dispatcher.Enqueue(testOrder()))
	err = dispatcher.Enqueue(testOrder())
	assert.ErrorIs(t, err, exception.ErrOrderQueueFull)
}

func TestDispatcherRequiresSubmitter(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil)
	assert.ErrorIs(t, err, exception.ErrNilInstance)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(transientErr{"x"}))
	assert.False(t, isTransient(permanentErr{"x"}))
	// plain transport errors stay retryable
	assert.True(t, isTransient(errors.New("connection reset")))
}
