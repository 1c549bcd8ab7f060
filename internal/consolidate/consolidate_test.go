package consolidate

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/venueminer/venueminer/internal/venue"
)

func sampleResults() []venue.Result {
	theatre := 100
	rating := 4.3
	reviews := 812
	parking := true

	return []venue.Result{
		{
			Venue:   venue.Venue{ID: "v1", Name: "Hôtel du Louvre", Address: "Paris", PageURL: "https://example.com/v1"},
			Variant: venue.VariantGrid,
			Rooms: []venue.RoomRecord{
				{VenueID: "v1", Name: "Salon Vendôme", FloorArea: "120 m²", Theatre: &theatre},
				{VenueID: "v1", Name: "Salon Rivoli"},
			},
			Geo:           &venue.GeoResult{Rating: &rating, ReviewCount: &reviews},
			Content:       &venue.ContentResult{Parking: &parking, Images: []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}},
			RoomsStatus:   venue.SourceOK,
			GeoStatus:     venue.SourceOK,
			ContentStatus: venue.SourceOK,
			ExtractedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			Venue:         venue.Venue{ID: "v2", Name: "Domaine Sans Salles", PageURL: "https://example.com/v2"},
			Variant:       venue.VariantUnknown,
			RoomsStatus:   venue.SourceFailed,
			GeoStatus:     venue.SourceSkipped,
			ContentStatus: venue.SourceSkipped,
			FailureReason: "interface not recognized",
			ExtractedAt:   time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC),
		},
	}
}

func TestFlattenOneRowPerRoom(t *testing.T) {
	rows := Flatten(sampleResults())
	require.Len(t, rows, 3, "two rooms plus one zero-room placeholder")

	require.Equal(t, "Salon Vendôme", rows[0].RoomName)
	require.Equal(t, "100", rows[0].Theatre)
	require.Equal(t, "4.3", rows[0].Rating)
	require.Equal(t, "https://cdn/a.jpg;https://cdn/b.jpg", rows[0].Images)

	require.Equal(t, "Salon Rivoli", rows[1].RoomName)
	require.Equal(t, "", rows[1].Theatre, "unpublished capacity stays empty")
	require.Equal(t, "4.3", rows[1].Rating, "venue columns repeat on every room row")

	require.Equal(t, "v2", rows[2].VenueID)
	require.Equal(t, "", rows[2].RoomName, "zero-room venue keeps exactly one row")
	require.Equal(t, "interface not recognized", rows[2].FailureReason)
}

func TestFlattenDropsDuplicateRoomNames(t *testing.T) {
	res := sampleResults()[:1]
	res[0].Rooms = append(res[0].Rooms, venue.RoomRecord{VenueID: "v1", Name: "salon vendôme"})
	rows := Flatten(res)
	require.Len(t, rows, 2, "same room name must not appear twice for one venue")
}

func TestFlattenEmptyInput(t *testing.T) {
	require.Empty(t, Flatten(nil))
}

func TestWriteCSVDeterministic(t *testing.T) {
	rows := Flatten(sampleResults())

	var first, second bytes.Buffer
	require.NoError(t, WriteCSV(&first, rows, 0))
	require.NoError(t, WriteCSV(&second, Flatten(sampleResults()), 0))
	require.Equal(t, first.Bytes(), second.Bytes(), "re-running over the same results must be byte-identical")

	lines := bytes.Split(bytes.TrimRight(first.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 4, "header plus three rows")
	require.Contains(t, string(lines[0]), "venue_id,venue_name")
}

func TestWriteCSVCustomDelimiter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Flatten(sampleResults()), ';'))

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Contains(t, string(lines[0]), "venue_id;venue_name")
	require.NotContains(t, string(lines[0]), "venue_id,venue_name")
}

func TestHeaderMatchesValues(t *testing.T) {
	require.Len(t, Row{}.Values(), len(Header()))
}
