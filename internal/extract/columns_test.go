package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapHeader(t *testing.T) {
	tests := []struct {
		raw  string
		want Field
	}{
		{"Salles de réunion", FieldRoomName},
		{"  Taille de la salle  ", FieldFloorArea},
		{"Hauteur du plafond", FieldCeilingHeight},
		{"Dimensions de la salle", FieldDimensions},
		{"Théâtre", FieldTheatre},
		{"Salle de classe", FieldClassroom},
		{"En banquet", FieldBanquet},
		{"En cocktail", FieldCocktail},
		{"En U", FieldUShape},
		{"Amphithéâtre", FieldAmphitheater},
		{"Capacité max", FieldMaxCapacity},
		{"Capacité maximale", FieldMaxCapacity},
		{"Room size", FieldFloorArea},
		{"U-Shape", FieldUShape},
		{"Disposition en banquet", FieldBanquet},
		{"Tarif journalier", FieldUnknown},
		{"", FieldUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			require.Equal(t, tt.want, MapHeader(tt.raw))
		})
	}
}

func TestParseCapacity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{"plain number", "120", intp(120)},
		{"surrounding space", "  45 ", intp(45)},
		{"thousands separator", "1 200", intp(1200)},
		{"ascii dash", "-", nil},
		{"en dash", "–", nil},
		{"em dash", "—", nil},
		{"empty", "", nil},
		{"words", "sur demande", nil},
		{"negative", "-5", nil},
		{"zero is published", "0", intp(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCapacity(tt.raw)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, *tt.want, *got)
		})
	}
}

func intp(n int) *int { return &n }
