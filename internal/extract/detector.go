// Package extract classifies rendered venue pages and reads their
// meeting-room inventories.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/venueminer/venueminer/internal/venue"
)

// DetectVariant classifies a settled, rendered document into one of the
// known layout variants. Detection is pure inspection: it never mutates the
// page and never fails; pages matching no signature yield VariantUnknown.
//
// Grid signatures take precedence over the popup trigger, so a page that
// renders a room table alongside a leftover trigger control is still Grid.
// A direct room table with no disclosure control at all is the degenerate
// Grid case, not a failure.
func DetectVariant(doc *goquery.Document) venue.Variant {
	if doc == nil {
		return venue.VariantUnknown
	}
	switch {
	case doc.Find(legacyGridRowSelector).Length() > 0:
		return venue.VariantGrid
	case doc.Find(gridWrapperSelector).Length() > 0:
		return venue.VariantGrid
	case hasRoomTable(doc):
		return venue.VariantGrid
	case hasPopupTrigger(doc):
		return venue.VariantPopup
	}
	return venue.VariantUnknown
}

// hasRoomTable reports whether the document carries a plain HTML table whose
// headers look like a room inventory.
func hasRoomTable(doc *goquery.Document) bool {
	if doc.Find(tableSelector).Length() == 0 {
		return false
	}
	found := false
	doc.Find(tableHeaderSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, kw := range roomHeaderKeywords {
			if strings.Contains(h, kw) {
				found = true
				return false
			}
		}
		return true
	})
	return found && doc.Find(tableRowSelector).Length() > 0
}

// hasPopupTrigger reports whether the page exposes a room-list trigger or
// per-room disclosure controls.
func hasPopupTrigger(doc *goquery.Document) bool {
	if doc.Find(popupTriggerSelector).Length() > 0 {
		return true
	}
	found := false
	doc.Find("button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, want := range popupTriggerLabels {
			if strings.Contains(label, want) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
