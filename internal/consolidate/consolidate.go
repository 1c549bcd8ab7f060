// Package consolidate flattens per-venue results into the final tabular
// output: exactly one row per meeting room, with venue-level data repeated
// on each row, and exactly one row for a venue that yielded no rooms so no
// venue ever disappears from the output.
package consolidate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/venueminer/venueminer/internal/venue"
)

// Row is one output line: a (venue, room) pair with enrichment columns.
// All values are already rendered to strings so serialization is a straight
// dump with no formatting decisions left.
type Row struct {
	VenueID      string
	VenueName    string
	VenueAddress string
	PageURL      string
	Variant      string

	RoomName      string
	FloorArea     string
	CeilingHeight string
	Dimensions    string
	Theatre       string
	Classroom     string
	Banquet       string
	Cocktail      string
	UShape        string
	Amphitheater  string
	PartialRoom   string

	Rating           string
	ReviewCount      string
	Latitude         string
	Longitude        string
	Website          string
	Phone            string
	MapsURL          string
	FormattedAddress string
	Closed           string

	PublishedRoomCount string
	Parking            string
	Restaurant         string
	Spa                string
	WiFi               string
	Email              string
	Images             string

	RoomsStatus   string
	GeoStatus     string
	ContentStatus string
	FailureReason string
	ExtractedAt   string
}

// header lists the output columns in their fixed serialization order.
var header = []string{
	"venue_id", "venue_name", "venue_address", "page_url", "variant",
	"room_name", "floor_area", "ceiling_height", "dimensions",
	"theatre", "classroom", "banquet", "cocktail", "u_shape", "amphitheater",
	"partial_room",
	"rating", "review_count", "latitude", "longitude",
	"website", "phone", "maps_url", "formatted_address", "closed",
	"published_room_count", "parking", "restaurant", "spa", "wifi", "email",
	"images",
	"rooms_status", "geo_status", "content_status", "failure_reason",
	"extracted_at",
}

// Header returns the output columns in serialization order.
func Header() []string {
	return append([]string(nil), header...)
}

// Values renders the row in Header order.
func (r Row) Values() []string {
	return []string{
		r.VenueID, r.VenueName, r.VenueAddress, r.PageURL, r.Variant,
		r.RoomName, r.FloorArea, r.CeilingHeight, r.Dimensions,
		r.Theatre, r.Classroom, r.Banquet, r.Cocktail, r.UShape, r.Amphitheater,
		r.PartialRoom,
		r.Rating, r.ReviewCount, r.Latitude, r.Longitude,
		r.Website, r.Phone, r.MapsURL, r.FormattedAddress, r.Closed,
		r.PublishedRoomCount, r.Parking, r.Restaurant, r.Spa, r.WiFi, r.Email,
		r.Images,
		r.RoomsStatus, r.GeoStatus, r.ContentStatus, r.FailureReason,
		r.ExtractedAt,
	}
}

// Flatten turns results into output rows. Row order follows the results
// slice, then each result's extraction order, so repeated runs over the same
// results are byte-identical. Duplicate room names within one result are
// dropped after the first occurrence.
func Flatten(results []venue.Result) []Row {
	var rows []Row
	for _, res := range results {
		base := baseRow(res)
		if len(res.Rooms) == 0 {
			rows = append(rows, base)
			continue
		}
		seen := make(map[string]bool, len(res.Rooms))
		for _, room := range res.Rooms {
			key := strings.Join(strings.Fields(strings.ToLower(room.Name)), " ")
			if key != "" && seen[key] {
				continue
			}
			seen[key] = true
			r := base
			r.RoomName = room.Name
			r.FloorArea = room.FloorArea
			r.CeilingHeight = room.CeilingHeight
			r.Dimensions = room.Dimensions
			r.Theatre = fmtInt(room.Theatre)
			r.Classroom = fmtInt(room.Classroom)
			r.Banquet = fmtInt(room.Banquet)
			r.Cocktail = fmtInt(room.Cocktail)
			r.UShape = fmtInt(room.UShape)
			r.Amphitheater = fmtInt(room.Amphitheater)
			if room.Partial {
				r.PartialRoom = "true"
			}
			rows = append(rows, r)
		}
	}
	return rows
}

func baseRow(res venue.Result) Row {
	r := Row{
		VenueID:       res.Venue.ID,
		VenueName:     res.Venue.Name,
		VenueAddress:  res.Venue.Address,
		PageURL:       res.Venue.PageURL,
		Variant:       string(res.Variant),
		RoomsStatus:   string(res.RoomsStatus),
		GeoStatus:     string(res.GeoStatus),
		ContentStatus: string(res.ContentStatus),
		FailureReason: res.FailureReason,
	}
	if !res.ExtractedAt.IsZero() {
		r.ExtractedAt = res.ExtractedAt.UTC().Format(time.RFC3339)
	}
	if g := res.Geo; g != nil {
		r.Rating = fmtFloat(g.Rating)
		r.ReviewCount = fmtInt(g.ReviewCount)
		r.Latitude = fmtFloat(g.Latitude)
		r.Longitude = fmtFloat(g.Longitude)
		r.Website = fmtString(g.Website)
		r.Phone = fmtString(g.Phone)
		r.MapsURL = fmtString(g.MapsURL)
		r.FormattedAddress = fmtString(g.FormattedAddress)
		r.Closed = fmtBool(g.Closed)
	}
	if c := res.Content; c != nil {
		r.PublishedRoomCount = fmtInt(c.RoomCount)
		r.Parking = fmtBool(c.Parking)
		r.Restaurant = fmtBool(c.Restaurant)
		r.Spa = fmtBool(c.Spa)
		r.WiFi = fmtBool(c.WiFi)
		r.Email = fmtString(c.Email)
		r.Images = strings.Join(c.Images, ";")
		if r.Phone == "" {
			r.Phone = fmtString(c.Phone)
		}
	}
	return r
}

// WriteCSV serializes rows with the fixed header. Output is deterministic
// for a given rows slice. A zero comma means the default ','.
func WriteCSV(w io.Writer, rows []Row, comma rune) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(row.Values()); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func fmtString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
