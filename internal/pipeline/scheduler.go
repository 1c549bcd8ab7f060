package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/logging"
	"github.com/venueminer/venueminer/internal/progress"
	"github.com/venueminer/venueminer/internal/venue"
)

// Processor turns one venue into a terminal result. Worker implements it;
// tests substitute fakes.
type Processor interface {
	Process(ctx context.Context, v venue.Venue) venue.Result
}

// VenueFailure is one entry in the run's failure log.
type VenueFailure struct {
	Venue  venue.Venue
	Reason string
}

// SchedulerDeps wires a Scheduler. Emitter and Store are optional.
type SchedulerDeps struct {
	Processor   Processor
	Concurrency int
	Emitter     progress.Emitter
	Store       venue.ResultStore
	Logger      *zap.Logger

	// StoreTimeout bounds the post-run persistence flush (default 30s).
	StoreTimeout time.Duration
}

// Scheduler drains a venue batch through a fixed pool of workers. Venues
// are dispatched first come first served; an idle worker always picks up
// the next queued venue. The run finishes only when every venue has reached
// a terminal state.
type Scheduler struct {
	deps SchedulerDeps
	log  *zap.Logger
}

// NewScheduler builds a scheduler from its dependencies.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	if deps.Concurrency <= 0 {
		deps.Concurrency = 1
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = 30 * time.Second
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{deps: deps, log: log}
}

type task struct {
	index int
	v     venue.Venue
}

// Run processes the batch and returns results in input order plus the
// failure log. Canceling ctx stops dispatching new venues; venues already
// in flight run to their own terminal state, and venues never dispatched
// are recorded as canceled failures so the accounting stays complete.
func (s *Scheduler) Run(ctx context.Context, venues []venue.Venue) ([]venue.Result, []VenueFailure) {
	runID := uuid.New()
	rlog := logging.ForRun(s.log, runID.String())
	started := time.Now()
	s.emit(progress.Event{RunID: runID, TS: started.UTC(), Stage: progress.StageRunStart})

	results := make([]venue.Result, len(venues))

	queue := make(chan task)
	go func() {
		defer close(queue)
		for i, v := range venues {
			queue <- task{index: i, v: v}
		}
	}()

	sink := s.startStoreSink(len(venues))

	var wg sync.WaitGroup
	for i := 0; i < s.deps.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				results[t.index] = s.runOne(ctx, runID, t)
				sink.offer(results[t.index])
			}
		}()
	}
	wg.Wait()
	sink.close(rlog, s.deps.StoreTimeout)

	var failures []VenueFailure
	for _, res := range results {
		if res.FailureReason != "" {
			failures = append(failures, VenueFailure{Venue: res.Venue, Reason: res.FailureReason})
		}
	}

	s.emit(progress.Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: progress.StageRunDone,
		Dur:   time.Since(started),
	})
	rlog.Info("run complete",
		zap.Int("venues", len(venues)),
		zap.Int("failures", len(failures)),
		zap.Duration("dur", time.Since(started)))
	return results, failures
}

func (s *Scheduler) runOne(ctx context.Context, runID uuid.UUID, t task) venue.Result {
	if ctx.Err() != nil {
		res := venue.Result{
			Venue:         t.v,
			Variant:       venue.VariantUnknown,
			RoomsStatus:   venue.SourceSkipped,
			GeoStatus:     venue.SourceSkipped,
			ContentStatus: venue.SourceSkipped,
			FailureReason: "run canceled",
			ExtractedAt:   time.Now().UTC(),
		}
		s.emit(progress.Event{
			RunID: runID, TS: res.ExtractedAt, Stage: progress.StageVenueError,
			VenueID: t.v.ID, VenueName: t.v.Name, Note: res.FailureReason,
		})
		return res
	}

	start := time.Now()
	s.emit(progress.Event{
		RunID: runID, TS: start.UTC(), Stage: progress.StageVenueStart,
		VenueID: t.v.ID, VenueName: t.v.Name,
	})

	res := s.deps.Processor.Process(ctx, t.v)

	evt := progress.Event{
		RunID: runID, TS: time.Now().UTC(), Stage: progress.StageVenueDone,
		VenueID: t.v.ID, VenueName: t.v.Name,
		Variant: res.Variant, Rooms: len(res.Rooms),
		Outcome: progress.ClassifyResult(res),
		Dur:     time.Since(start),
		Note:    res.FailureReason,
	}
	s.emit(evt)
	return res
}

func (s *Scheduler) emit(evt progress.Event) {
	if s.deps.Emitter != nil {
		s.deps.Emitter.Emit(evt)
	}
}

// storeSink decouples persistence from the worker loop: offering a result
// never blocks, and the batch write happens once at the end of the run.
type storeSink struct {
	store venue.ResultStore
	ch    chan venue.Result
}

func (s *Scheduler) startStoreSink(capacity int) *storeSink {
	if s.deps.Store == nil {
		return &storeSink{}
	}
	return &storeSink{
		store: s.deps.Store,
		ch:    make(chan venue.Result, capacity),
	}
}

func (k *storeSink) offer(res venue.Result) {
	if k.store == nil {
		return
	}
	select {
	case k.ch <- res:
	default:
		// Buffer sized to the batch; overflow means offer was called more
		// than once per venue and dropping is the safe response.
	}
}

func (k *storeSink) close(log *zap.Logger, timeout time.Duration) {
	if k.store == nil {
		return
	}
	close(k.ch)
	batch := make([]venue.Result, 0, len(k.ch))
	for res := range k.ch {
		batch = append(batch, res)
	}
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := k.store.SaveResults(ctx, batch); err != nil {
		log.Warn("result persistence failed", zap.Int("results", len(batch)), zap.Error(err))
	}
}
