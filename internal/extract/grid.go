package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/venue"
)

// maxColumnPages caps how many times the extractor follows the horizontal
// column-pagination control on legacy grids. No known layout needs more than
// a handful of pages; the cap keeps a looping control from hanging a worker.
const maxColumnPages = 8

// Grid extracts room inventories from pages that render the full inventory
// as a table, either the legacy ARIA fixed-data-table or a plain HTML table.
type Grid struct {
	log *zap.Logger
}

// NewGrid returns a grid extractor.
func NewGrid(log *zap.Logger) *Grid {
	return &Grid{log: log}
}

// Extract reads every room row visible on the page. Legacy grids publish
// capacity columns across horizontally paginated column sets; the extractor
// follows the pagination control, re-parses after each advance, and merges
// the passes field-wise keyed by room name. Row order is first-seen order.
func (g *Grid) Extract(ctx context.Context, s venue.Session, v venue.Venue) ([]venue.RoomRecord, error) {
	doc, err := snapshot(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("grid snapshot: %w", err)
	}
	rooms := parseGridDoc(doc, v.ID)

	// Only legacy grids paginate columns. A missing control ends the loop
	// immediately, so the probe is free on modern tables.
	for page := 0; page < maxColumnPages; page++ {
		n, err := s.Count(ctx, nextColumnSelector)
		if err != nil || n == 0 {
			break
		}
		if err := s.Click(ctx, nextColumnSelector); err != nil {
			g.log.Debug("column pagination click failed, keeping columns seen so far",
				zap.String("venue_id", v.ID), zap.Int("page", page), zap.Error(err))
			break
		}
		doc, err = snapshot(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("grid snapshot after column page %d: %w", page+1, err)
		}
		rooms = mergeRooms(rooms, parseGridDoc(doc, v.ID))
	}

	g.log.Debug("grid extraction complete",
		zap.String("venue_id", v.ID), zap.Int("rooms", len(rooms)))
	return rooms, nil
}

func snapshot(ctx context.Context, s venue.Session) (*goquery.Document, error) {
	html, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// parseGridDoc reads one rendered pass of the grid. It is pure: all browser
// interaction stays in Extract so the parsing rules are testable against
// static snapshots.
func parseGridDoc(doc *goquery.Document, venueID string) []venue.RoomRecord {
	if doc == nil {
		return nil
	}
	if doc.Find(legacyGridRowSelector).Length() > 0 {
		return parseLegacyGrid(doc, venueID)
	}
	return parseRoomTable(doc, venueID)
}

func parseLegacyGrid(doc *goquery.Document, venueID string) []venue.RoomRecord {
	var fields []Field
	doc.Find(legacyGridHeaderSelector).Each(func(_ int, s *goquery.Selection) {
		fields = append(fields, MapHeader(s.Text()))
	})

	var rooms []venue.RoomRecord
	doc.Find(legacyGridRowSelector).Each(func(_ int, row *goquery.Selection) {
		r := venue.RoomRecord{VenueID: venueID}
		if name := row.Find(legacyGridNameSelector).First(); name.Length() > 0 {
			r.Name = firstLine(strings.TrimSpace(name.Text()))
		}
		row.Find(legacyGridCellSelector).Each(func(i int, cell *goquery.Selection) {
			if i >= len(fields) {
				return
			}
			applyField(&r, fields[i], cell.Text())
		})
		if r.Name == "" {
			if first := row.Find(legacyGridCellSelector).First(); first.Length() > 0 {
				r.Name = firstLine(strings.TrimSpace(first.Text()))
			}
		}
		if r.Name != "" {
			rooms = append(rooms, r)
		}
	})
	return rooms
}

func parseRoomTable(doc *goquery.Document, venueID string) []venue.RoomRecord {
	table := findRoomTable(doc)
	if table == nil {
		return nil
	}
	var fields []Field
	table.Find("th").Each(func(_ int, s *goquery.Selection) {
		fields = append(fields, MapHeader(s.Text()))
	})

	var rooms []venue.RoomRecord
	table.Find(tableRowSelector).Each(func(_ int, row *goquery.Selection) {
		r := venue.RoomRecord{VenueID: venueID}
		if name := row.Find(tableNameSelector).First(); name.Length() > 0 {
			r.Name = firstLine(strings.TrimSpace(name.Text()))
		}
		row.Find(tableCellSelector).Each(func(i int, cell *goquery.Selection) {
			if i >= len(fields) {
				return
			}
			applyField(&r, fields[i], cell.Text())
		})
		if r.Name != "" {
			rooms = append(rooms, r)
		}
	})
	return rooms
}

// findRoomTable picks the table whose headers match the room-inventory
// keywords. Venue pages routinely carry unrelated tables (rates, distances),
// so the first table on the page is not a safe default.
func findRoomTable(doc *goquery.Document) *goquery.Selection {
	var match *goquery.Selection
	doc.Find(tableSelector).EachWithBreak(func(_ int, t *goquery.Selection) bool {
		ok := false
		t.Find("th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
			h := strings.ToLower(strings.TrimSpace(th.Text()))
			for _, kw := range roomHeaderKeywords {
				if strings.Contains(h, kw) {
					ok = true
					return false
				}
			}
			return true
		})
		if ok {
			match = t
			return false
		}
		return true
	})
	return match
}

// mergeRooms unions a later parsing pass into an earlier one, keyed by room
// name. Names unseen so far are appended, preserving first-seen order.
func mergeRooms(dst, src []venue.RoomRecord) []venue.RoomRecord {
	index := make(map[string]int, len(dst))
	for i, r := range dst {
		index[normalizeHeader(r.Name)] = i
	}
	for _, r := range src {
		key := normalizeHeader(r.Name)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(dst)
			dst = append(dst, r)
			continue
		}
		mergeRecord(&dst[i], r)
	}
	return dst
}

// mergeRecord fills unset fields of dst from src. Values already captured in
// an earlier pass win.
func mergeRecord(dst *venue.RoomRecord, src venue.RoomRecord) {
	if dst.FloorArea == "" {
		dst.FloorArea = src.FloorArea
	}
	if dst.CeilingHeight == "" {
		dst.CeilingHeight = src.CeilingHeight
	}
	if dst.Dimensions == "" {
		dst.Dimensions = src.Dimensions
	}
	if dst.Theatre == nil {
		dst.Theatre = src.Theatre
	}
	if dst.Classroom == nil {
		dst.Classroom = src.Classroom
	}
	if dst.Banquet == nil {
		dst.Banquet = src.Banquet
	}
	if dst.Cocktail == nil {
		dst.Cocktail = src.Cocktail
	}
	if dst.UShape == nil {
		dst.UShape = src.UShape
	}
	if dst.Amphitheater == nil {
		dst.Amphitheater = src.Amphitheater
	}
}
