// Package pipeline drives venues through load, detection, extraction and
// enrichment under bounded concurrency.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/venueminer/venueminer/internal/extract"
	"github.com/venueminer/venueminer/internal/venue"
)

// RoomExtractor reads the room inventory from a rendered page.
type RoomExtractor interface {
	Extract(ctx context.Context, s venue.Session, v venue.Venue) ([]venue.RoomRecord, error)
}

// WorkerDeps wires a Worker's collaborators. Grid and Popup must be set;
// Geo and Content are optional and their sources are marked skipped when
// absent.
type WorkerDeps struct {
	Sessions venue.SessionFactory
	Grid     RoomExtractor
	Popup    RoomExtractor
	Geo      venue.GeoEnricher
	Content  venue.ContentEnricher
	Logger   *zap.Logger

	// VenueDeadline bounds one venue end to end. Zero disables the bound.
	VenueDeadline time.Duration
}

// Worker processes one venue at a time through the full task lifecycle:
// page load, control activation, variant detection, room extraction, then
// concurrent enrichment. Every path produces a terminal Result; a worker
// never panics outward and never lets one venue's failure leak into the
// next.
type Worker struct {
	deps WorkerDeps
	log  *zap.Logger
}

// NewWorker builds a worker from its dependencies.
func NewWorker(deps WorkerDeps) *Worker {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{deps: deps, log: log}
}

// Process runs the venue to a terminal Result. The result is always usable:
// a failed venue carries its reason, a partially extracted venue carries
// whatever rooms and enrichment survived.
func (w *Worker) Process(ctx context.Context, v venue.Venue) (res venue.Result) {
	res = venue.Result{
		Venue:         v,
		Variant:       venue.VariantUnknown,
		RoomsStatus:   venue.SourceSkipped,
		GeoStatus:     venue.SourceSkipped,
		ContentStatus: venue.SourceSkipped,
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("venue task panicked", zap.String("venue_id", v.ID), zap.Any("panic", r))
			res.FailureReason = fmt.Sprintf("internal: %v", r)
		}
		res.ExtractedAt = time.Now().UTC()
	}()

	vctx := ctx
	if w.deps.VenueDeadline > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, w.deps.VenueDeadline)
		defer cancel()
	}

	rooms, variant, err := w.extractRooms(vctx, v)
	res.Variant = variant
	res.Rooms = rooms
	switch {
	case err == nil:
		res.RoomsStatus = venue.SourceOK
	case errors.Is(err, venue.ErrInterfaceUnrecognized):
		res.RoomsStatus = venue.SourceFailed
		w.log.Warn("interface not recognized", zap.String("venue_id", v.ID), zap.String("url", v.PageURL))
	case isVenueFatal(ctx, vctx, err):
		res.RoomsStatus = venue.SourceFailed
		res.FailureReason = venueFailureReason(ctx, vctx, err)
		return res
	default:
		res.RoomsStatus = venue.SourceFailed
		w.log.Warn("room extraction failed", zap.String("venue_id", v.ID), zap.Error(err))
	}

	w.enrich(vctx, v, &res)
	if errors.Is(vctx.Err(), context.DeadlineExceeded) {
		// The venue deadline expired during enrichment. Whatever rooms and
		// enrichment landed before the cutoff stay on the result.
		res.FailureReason = venue.ErrVenueDeadlineExceeded.Error()
	}
	return res
}

// extractRooms owns the browser session for the venue: load, reveal,
// detect, extract. The session is released before enrichment starts so tab
// slots are not held across network waits.
func (w *Worker) extractRooms(ctx context.Context, v venue.Venue) ([]venue.RoomRecord, venue.Variant, error) {
	s, err := w.deps.Sessions.NewSession(ctx)
	if err != nil {
		return nil, venue.VariantUnknown, fmt.Errorf("open session: %w", err)
	}
	defer s.Close()

	if err := s.Navigate(ctx, v.PageURL); err != nil {
		return nil, venue.VariantUnknown, err
	}
	extract.RevealRooms(ctx, s, w.log)

	html, err := s.HTML(ctx)
	if err != nil {
		return nil, venue.VariantUnknown, fmt.Errorf("snapshot page: %w", err)
	}
	doc, err := goqueryDoc(html)
	if err != nil {
		return nil, venue.VariantUnknown, fmt.Errorf("parse page: %w", err)
	}

	variant := extract.DetectVariant(doc)
	switch variant {
	case venue.VariantGrid:
		rooms, err := w.deps.Grid.Extract(ctx, s, v)
		return rooms, variant, err
	case venue.VariantPopup:
		rooms, err := w.deps.Popup.Extract(ctx, s, v)
		return rooms, variant, err
	default:
		return nil, venue.VariantUnknown, venue.ErrInterfaceUnrecognized
	}
}

// enrich runs the geo and content lookups concurrently. The content lookup
// needs a website URL, which usually comes out of the geo result, so it
// waits on a handoff channel rather than on the whole geo call path.
func (w *Worker) enrich(ctx context.Context, v venue.Venue, res *venue.Result) {
	websiteCh := make(chan string, 1)
	g, gctx := errgroup.WithContext(ctx)

	if w.deps.Geo == nil {
		websiteCh <- ""
	} else {
		g.Go(func() error {
			gr, err := w.deps.Geo.Lookup(gctx, v.Name, v.Address)
			if err != nil {
				websiteCh <- ""
				res.GeoStatus = venue.SourceFailed
				w.log.Warn("geo lookup failed", zap.String("venue_id", v.ID), zap.Error(err))
				return nil
			}
			if gr.Website != nil {
				websiteCh <- *gr.Website
			} else {
				websiteCh <- ""
			}
			res.Geo = &gr
			res.GeoStatus = venue.SourceOK
			return nil
		})
	}

	if w.deps.Content != nil {
		g.Go(func() error {
			var website string
			select {
			case website = <-websiteCh:
			case <-gctx.Done():
				return nil
			}
			if website == "" {
				return nil
			}
			cr, err := w.deps.Content.Lookup(gctx, website)
			if err != nil {
				res.ContentStatus = venue.SourceFailed
				w.log.Warn("content lookup failed",
					zap.String("venue_id", v.ID), zap.String("website", website), zap.Error(err))
				return nil
			}
			res.Content = &cr
			res.ContentStatus = venue.SourceOK
			return nil
		})
	}

	// Goroutines report per-source failures on the result instead of
	// returning errors, so Wait only propagates ctx teardown.
	_ = g.Wait()
}

func goqueryDoc(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// isVenueFatal reports whether the extraction error ends the venue rather
// than just its rooms source.
func isVenueFatal(runCtx, venueCtx context.Context, err error) bool {
	if errors.Is(err, venue.ErrPageLoadTimeout) {
		return true
	}
	return venueCtx.Err() != nil || runCtx.Err() != nil
}

func venueFailureReason(runCtx, venueCtx context.Context, err error) string {
	switch {
	case errors.Is(err, venue.ErrPageLoadTimeout):
		return venue.ErrPageLoadTimeout.Error()
	case venueCtx.Err() != nil && runCtx.Err() == nil:
		return venue.ErrVenueDeadlineExceeded.Error()
	case runCtx.Err() != nil:
		return "run canceled"
	default:
		return strings.TrimSpace(err.Error())
	}
}
