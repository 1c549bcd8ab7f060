package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/venueminer/venueminer/internal/progress"
	"github.com/venueminer/venueminer/internal/venue"
)

type processorFunc func(ctx context.Context, v venue.Venue) venue.Result

func (f processorFunc) Process(ctx context.Context, v venue.Venue) venue.Result {
	return f(ctx, v)
}

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) byStage(stage progress.Stage) []progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []progress.Event
	for _, evt := range c.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

type captureStore struct {
	mu      sync.Mutex
	batches [][]venue.Result
}

func (c *captureStore) SaveResults(_ context.Context, results []venue.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, results)
	return nil
}

func makeVenues(n int) []venue.Venue {
	venues := make([]venue.Venue, n)
	for i := range venues {
		venues[i] = venue.Venue{
			ID:      fmt.Sprintf("v%d", i),
			Name:    fmt.Sprintf("Venue %d", i),
			PageURL: fmt.Sprintf("https://example.com/v%d", i),
		}
	}
	return venues
}

func okResult(v venue.Venue) venue.Result {
	return venue.Result{
		Venue:         v,
		Variant:       venue.VariantGrid,
		Rooms:         []venue.RoomRecord{{VenueID: v.ID, Name: "Salon"}},
		RoomsStatus:   venue.SourceOK,
		GeoStatus:     venue.SourceSkipped,
		ContentStatus: venue.SourceSkipped,
		ExtractedAt:   time.Now().UTC(),
	}
}

func TestSchedulerRespectsConcurrencyBound(t *testing.T) {
	const bound = 3
	var inFlight, peak int64

	proc := processorFunc(func(_ context.Context, v venue.Venue) venue.Result {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return okResult(v)
	})

	s := NewScheduler(SchedulerDeps{Processor: proc, Concurrency: bound, Logger: zap.NewNop()})
	results, failures := s.Run(context.Background(), makeVenues(10))
	require.Len(t, results, 10)
	require.Empty(t, failures)
	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(bound))
	require.Positive(t, atomic.LoadInt64(&peak))
}

func TestSchedulerKeepsInputOrderAndFailureLog(t *testing.T) {
	proc := processorFunc(func(_ context.Context, v venue.Venue) venue.Result {
		res := okResult(v)
		if v.ID == "v2" {
			res.Rooms = nil
			res.RoomsStatus = venue.SourceFailed
			res.FailureReason = "page load timeout"
		}
		return res
	})

	s := NewScheduler(SchedulerDeps{Processor: proc, Concurrency: 4, Logger: zap.NewNop()})
	results, failures := s.Run(context.Background(), makeVenues(5))

	require.Len(t, results, 5)
	for i, res := range results {
		require.Equal(t, fmt.Sprintf("v%d", i), res.Venue.ID, "results keep batch order")
	}
	require.Len(t, failures, 1)
	require.Equal(t, "v2", failures[0].Venue.ID)
	require.Equal(t, "page load timeout", failures[0].Reason)
}

func TestSchedulerEmitsProgress(t *testing.T) {
	emitter := &captureEmitter{}
	proc := processorFunc(func(_ context.Context, v venue.Venue) venue.Result { return okResult(v) })

	s := NewScheduler(SchedulerDeps{Processor: proc, Concurrency: 2, Emitter: emitter, Logger: zap.NewNop()})
	s.Run(context.Background(), makeVenues(4))

	require.Len(t, emitter.byStage(progress.StageRunStart), 1)
	require.Len(t, emitter.byStage(progress.StageRunDone), 1)
	require.Len(t, emitter.byStage(progress.StageVenueStart), 4)
	done := emitter.byStage(progress.StageVenueDone)
	require.Len(t, done, 4)
	for _, evt := range done {
		require.Equal(t, progress.OutcomeSuccess, evt.Outcome)
		require.Equal(t, 1, evt.Rooms)
	}
}

func TestSchedulerCancelMarksRemainingVenues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var processed int64
	proc := processorFunc(func(_ context.Context, v venue.Venue) venue.Result {
		if atomic.AddInt64(&processed, 1) == 1 {
			cancel()
		}
		return okResult(v)
	})

	s := NewScheduler(SchedulerDeps{Processor: proc, Concurrency: 1, Logger: zap.NewNop()})
	results, failures := s.Run(ctx, makeVenues(4))

	require.Len(t, results, 4)
	require.Equal(t, int64(1), atomic.LoadInt64(&processed), "no new venue is dispatched after cancel")
	require.Len(t, failures, 3)
	for _, f := range failures {
		require.Equal(t, "run canceled", f.Reason)
	}
}

func TestSchedulerHandsResultsToStore(t *testing.T) {
	store := &captureStore{}
	proc := processorFunc(func(_ context.Context, v venue.Venue) venue.Result { return okResult(v) })

	s := NewScheduler(SchedulerDeps{Processor: proc, Concurrency: 2, Store: store, Logger: zap.NewNop()})
	s.Run(context.Background(), makeVenues(6))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.batches, 1, "persistence happens as one batch after the run")
	require.Len(t, store.batches[0], 6)
}

func TestSchedulerRunLogCarriesRunID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	proc := processorFunc(func(_ context.Context, v venue.Venue) venue.Result { return okResult(v) })

	s := NewScheduler(SchedulerDeps{Processor: proc, Concurrency: 1, Logger: zap.New(core)})
	s.Run(context.Background(), makeVenues(2))

	entries := logs.FilterMessage("run complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.NotEmpty(t, fields["run_id"], "run scoped logs are stamped with the run id")
}
