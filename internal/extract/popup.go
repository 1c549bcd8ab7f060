package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/venue"
)

// Popup extracts room inventories from pages that hide each room's details
// behind a per-room disclosure control. Rooms are opened strictly one at a
// time: the page keeps at most one dialog mounted, and parallel clicks race
// against its close animation.
type Popup struct {
	log         *zap.Logger
	roomTimeout time.Duration
}

// NewPopup returns a popup extractor. roomTimeout bounds the disclosure of
// a single room; a room that cannot be opened in time is recorded as a
// partial row and the run moves on to the next trigger.
func NewPopup(log *zap.Logger, roomTimeout time.Duration) *Popup {
	return &Popup{log: log, roomTimeout: roomTimeout}
}

// Extract walks every disclosure trigger in document order, opening and
// parsing one dialog per room. A room whose dialog never settles yields a
// partial record carrying only the trigger label; only cancellation of the
// venue context aborts the walk.
func (p *Popup) Extract(ctx context.Context, s venue.Session, v venue.Venue) ([]venue.RoomRecord, error) {
	n, err := s.Count(ctx, popupTriggerSelector)
	if err != nil {
		return nil, fmt.Errorf("count room triggers: %w", err)
	}

	var rooms []venue.RoomRecord
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return rooms, err
		}
		label, _ := s.TextNth(ctx, popupTriggerSelector, i)
		label = firstLine(strings.TrimSpace(label))

		r, err := p.extractRoom(ctx, s, v.ID, i)
		if err != nil {
			if ctx.Err() != nil {
				return rooms, ctx.Err()
			}
			p.log.Warn("room disclosure failed, recording partial row",
				zap.String("venue_id", v.ID), zap.Int("trigger", i),
				zap.String("label", label), zap.Error(err))
			r = venue.RoomRecord{VenueID: v.ID, Name: label, Partial: true}
		}
		if r.Name == "" {
			r.Name = label
		}
		key := normalizeHeader(r.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		rooms = append(rooms, r)
	}
	return rooms, nil
}

// extractRoom opens the nth disclosure, parses the mounted dialog, and
// closes it. The close click is best effort: most layouts also dismiss on
// the next trigger click.
func (p *Popup) extractRoom(ctx context.Context, s venue.Session, venueID string, n int) (venue.RoomRecord, error) {
	rctx, cancel := context.WithTimeout(ctx, p.roomTimeout)
	defer cancel()

	if err := s.ClickNth(rctx, popupTriggerSelector, n); err != nil {
		return venue.RoomRecord{}, fmt.Errorf("open room %d: %w", n, err)
	}
	if err := s.WaitVisible(rctx, dialogSelector); err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return venue.RoomRecord{}, fmt.Errorf("room %d dialog never settled: %w", n, err)
		}
		return venue.RoomRecord{}, fmt.Errorf("wait for room %d dialog: %w", n, err)
	}
	doc, err := snapshot(rctx, s)
	if err != nil {
		return venue.RoomRecord{}, fmt.Errorf("room %d snapshot: %w", n, err)
	}
	r := parseDialog(doc, venueID)

	if err := s.Click(rctx, dialogCloseSelector); err != nil {
		p.log.Debug("dialog close click failed",
			zap.String("venue_id", venueID), zap.Int("trigger", n), zap.Error(err))
	}
	return r, nil
}

// parseDialog reads one mounted room dialog. The dialog title names the
// room; detail rows are label/value pairs in either a definition list or a
// two-column table, mapped through the same header rules as grid columns.
func parseDialog(doc *goquery.Document, venueID string) venue.RoomRecord {
	r := venue.RoomRecord{VenueID: venueID}
	dialog := doc.Find(dialogSelector).First()
	if dialog.Length() == 0 {
		return r
	}
	if title := dialog.Find(dialogTitleSelector).First(); title.Length() > 0 {
		r.Name = firstLine(strings.TrimSpace(title.Text()))
	}
	dialog.Find(dialogFieldRow).Each(func(_ int, row *goquery.Selection) {
		label := row.Find("dt, th").First()
		value := row.Find("dd, td").First()
		if label.Length() == 0 || value.Length() == 0 {
			return
		}
		applyField(&r, MapHeader(label.Text()), value.Text())
	})
	return r
}
