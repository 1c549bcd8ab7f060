// Package venue defines core types shared across pipeline subsystems.
package venue

import "time"

// Venue is one establishment to process. It is immutable once enqueued.
type Venue struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	PageURL string `json:"page_url"`
}

// Variant identifies which of the known page layouts carries the room data.
type Variant string

// Layout variants recognized by the detector.
const (
	VariantGrid    Variant = "grid"
	VariantPopup   Variant = "popup"
	VariantUnknown Variant = "unknown"
)

// RoomRecord is one meeting room as read from the source page. Dimension,
// height and area values are kept as raw text because units vary by source.
// Capacity fields are nil when the source does not publish them; nil is
// distinct from zero.
type RoomRecord struct {
	VenueID       string `json:"venue_id"`
	Name          string `json:"name"`
	FloorArea     string `json:"floor_area,omitempty"`
	CeilingHeight string `json:"ceiling_height,omitempty"`
	Dimensions    string `json:"dimensions,omitempty"`

	Theatre      *int `json:"theatre,omitempty"`
	Classroom    *int `json:"classroom,omitempty"`
	Banquet      *int `json:"banquet,omitempty"`
	Cocktail     *int `json:"cocktail,omitempty"`
	UShape       *int `json:"u_shape,omitempty"`
	Amphitheater *int `json:"amphitheater,omitempty"`

	// Partial marks a room whose disclosure read timed out before every
	// field was captured.
	Partial bool `json:"partial,omitempty"`
}

// GeoResult holds place metadata from the geo enrichment service. A value
// with every field nil is a legitimate "not found" outcome, not an error.
type GeoResult struct {
	Rating           *float64 `json:"rating"`
	ReviewCount      *int     `json:"review_count"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Website          *string  `json:"website"`
	Phone            *string  `json:"phone"`
	MapsURL          *string  `json:"maps_url"`
	FormattedAddress *string  `json:"formatted_address"`
	Closed           *bool    `json:"closed"`
}

// NotFound reports whether the result carries no data at all.
func (g GeoResult) NotFound() bool {
	return g.Rating == nil && g.ReviewCount == nil && g.Latitude == nil &&
		g.Longitude == nil && g.Website == nil && g.Phone == nil &&
		g.MapsURL == nil && g.FormattedAddress == nil && g.Closed == nil
}

// ContentResult holds data extracted from the venue's own website.
type ContentResult struct {
	RoomCount  *int     `json:"room_count"`
	Parking    *bool    `json:"parking"`
	Restaurant *bool    `json:"restaurant"`
	Spa        *bool    `json:"spa"`
	WiFi       *bool    `json:"wifi"`
	Phone      *string  `json:"phone"`
	Email      *string  `json:"email"`
	Images     []string `json:"images,omitempty"`
}

// MaxImages caps the image list carried on a ContentResult.
const MaxImages = 15

// SourceStatus records the outcome of one data source for one venue.
type SourceStatus string

// Per-source outcomes carried on a Result.
const (
	SourceOK      SourceStatus = "ok"
	SourceFailed  SourceStatus = "failed"
	SourceSkipped SourceStatus = "skipped"
)

// Result is the terminal outcome for one venue. It is immutable once
// produced by a worker; partial success is representable through the
// per-source statuses.
type Result struct {
	Venue   Venue        `json:"venue"`
	Variant Variant      `json:"variant"`
	Rooms   []RoomRecord `json:"rooms"`

	Geo     *GeoResult     `json:"geo,omitempty"`
	Content *ContentResult `json:"content,omitempty"`

	RoomsStatus   SourceStatus `json:"rooms_status"`
	GeoStatus     SourceStatus `json:"geo_status"`
	ContentStatus SourceStatus `json:"content_status"`

	// FailureReason is set when the venue as a whole failed (page load
	// timeout, deadline exceeded). Source-scoped failures are carried on
	// the statuses instead.
	FailureReason string    `json:"failure_reason,omitempty"`
	ExtractedAt   time.Time `json:"extracted_at"`
}

// Succeeded reports whether every source produced data.
func (r Result) Succeeded() bool {
	return r.FailureReason == "" &&
		r.RoomsStatus == SourceOK &&
		r.GeoStatus != SourceFailed &&
		r.ContentStatus != SourceFailed
}

// PartiallySucceeded reports whether at least one source produced data but
// the venue did not fully succeed.
func (r Result) PartiallySucceeded() bool {
	if r.Succeeded() {
		return false
	}
	return r.RoomsStatus == SourceOK || r.GeoStatus == SourceOK || r.ContentStatus == SourceOK
}
