package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/venue"
)

const legacyGridPage = `
<div id="meetingRoomsTableWrapper">
  <div role="columnheader">Salles de réunion</div>
  <div role="columnheader">Taille</div>
  <div role="columnheader">Théâtre</div>
  <div class="public_fixedDataTable_bodyRow">
    <div role="gridcell"><ul><li class="meetingRoomName_x1">Salon Vendôme</li></ul></div>
    <div role="gridcell">120 m²</div>
    <div role="gridcell">100</div>
  </div>
  <div class="public_fixedDataTable_bodyRow">
    <div role="gridcell"><ul><li class="meetingRoomName_x1">Salon Rivoli</li></ul></div>
    <div role="gridcell">80 m²</div>
    <div role="gridcell">–</div>
  </div>
</div>`

const modernTablePage = `
<table>
  <thead><tr><th>Nom</th><th>Taille</th><th>Capacité max</th><th>En banquet</th></tr></thead>
  <tbody>
    <tr><td><span class="font-medium">Atrium</span></td><td>200 m²</td><td>300</td><td>180</td></tr>
    <tr><td><span class="font-medium">Loggia</span></td><td>60 m²</td><td>50</td><td>–</td></tr>
  </tbody>
</table>`

func TestParseGridDocLegacy(t *testing.T) {
	rooms := parseGridDoc(mustDoc(t, legacyGridPage), "v1")
	require.Len(t, rooms, 2)

	require.Equal(t, "Salon Vendôme", rooms[0].Name)
	require.Equal(t, "v1", rooms[0].VenueID)
	require.Equal(t, "120 m²", rooms[0].FloorArea)
	require.NotNil(t, rooms[0].Theatre)
	require.Equal(t, 100, *rooms[0].Theatre)

	require.Equal(t, "Salon Rivoli", rooms[1].Name)
	require.Nil(t, rooms[1].Theatre, "dash placeholder must stay unset")
}

func TestParseGridDocModernTable(t *testing.T) {
	rooms := parseGridDoc(mustDoc(t, modernTablePage), "v2")
	require.Len(t, rooms, 2)

	require.Equal(t, "Atrium", rooms[0].Name)
	require.Equal(t, "200 m²", rooms[0].FloorArea)
	require.NotNil(t, rooms[0].Banquet)
	require.Equal(t, 180, *rooms[0].Banquet)

	require.Equal(t, "Loggia", rooms[1].Name)
	require.Nil(t, rooms[1].Banquet)
}

func TestParseGridDocIgnoresUnrelatedTables(t *testing.T) {
	page := `
<table><thead><tr><th>Tarif</th><th>Saison</th></tr></thead>
  <tbody><tr><td>250</td><td>Été</td></tr></tbody></table>` + modernTablePage
	rooms := parseGridDoc(mustDoc(t, page), "v3")
	require.Len(t, rooms, 2)
	require.Equal(t, "Atrium", rooms[0].Name)
}

const columnPageOne = `
<div role="columnheader">Salles de réunion</div>
<div role="columnheader">Taille</div>
<div class="public_fixedDataTable_bodyRow">
  <div role="gridcell"><ul><li class="meetingRoomName_x1">Salon Vendôme</li></ul></div>
  <div role="gridcell">120 m²</div>
</div>`

const columnPageTwo = `
<div role="columnheader">Salles de réunion</div>
<div role="columnheader">Théâtre</div>
<div class="public_fixedDataTable_bodyRow">
  <div role="gridcell"><ul><li class="meetingRoomName_x1">Salon Vendôme</li></ul></div>
  <div role="gridcell">100</div>
</div>`

func TestGridExtractMergesColumnPages(t *testing.T) {
	pages := []string{columnPageOne, columnPageTwo}
	idx := 0
	s := &fakeSession{
		htmlFn: func(context.Context) (string, error) { return pages[idx], nil },
		countFn: func(_ context.Context, selector string) (int, error) {
			require.Equal(t, nextColumnSelector, selector)
			if idx+1 < len(pages) {
				return 1, nil
			}
			return 0, nil
		},
		clickFn: func(_ context.Context, selector string) error {
			require.Equal(t, nextColumnSelector, selector)
			idx++
			return nil
		},
	}

	g := NewGrid(zap.NewNop())
	rooms, err := g.Extract(context.Background(), s, venue.Venue{ID: "v1"})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, "Salon Vendôme", rooms[0].Name)
	require.Equal(t, "120 m²", rooms[0].FloorArea)
	require.NotNil(t, rooms[0].Theatre)
	require.Equal(t, 100, *rooms[0].Theatre)
}

func TestGridExtractStopsWhenPaginationClickFails(t *testing.T) {
	s := &fakeSession{
		htmlFn:  func(context.Context) (string, error) { return columnPageOne, nil },
		countFn: func(context.Context, string) (int, error) { return 1, nil },
		clickFn: func(context.Context, string) error { return context.DeadlineExceeded },
	}

	g := NewGrid(zap.NewNop())
	rooms, err := g.Extract(context.Background(), s, venue.Venue{ID: "v1"})
	require.NoError(t, err, "a dead pagination control keeps the columns already seen")
	require.Len(t, rooms, 1)
	require.Equal(t, "120 m²", rooms[0].FloorArea)
}
