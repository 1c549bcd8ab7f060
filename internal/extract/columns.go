package extract

import (
	"strconv"
	"strings"

	"github.com/venueminer/venueminer/internal/venue"
)

// Field is the semantic meaning of a source column.
type Field int

// Semantic fields recognized in room tables. FieldMaxCapacity is recognized
// so it can be dropped explicitly: every known layout derives it from the
// configuration columns rather than publishing an independent figure.
const (
	FieldUnknown Field = iota
	FieldRoomName
	FieldFloorArea
	FieldCeilingHeight
	FieldDimensions
	FieldTheatre
	FieldClassroom
	FieldBanquet
	FieldCocktail
	FieldUShape
	FieldAmphitheater
	FieldMaxCapacity
)

// headerSynonyms maps normalized source headers to semantic fields. The
// mapping is fixed and total: anything not listed falls through to the
// keyword rules in MapHeader, then to FieldUnknown (dropped).
var headerSynonyms = map[string]Field{
	"salles de réunion":     FieldRoomName,
	"salle de réunion":      FieldRoomName,
	"nom":                   FieldRoomName,
	"name":                  FieldRoomName,
	"meeting rooms":         FieldRoomName,
	"taille":                FieldFloorArea,
	"taille de la salle":    FieldFloorArea,
	"size":                  FieldFloorArea,
	"room size":             FieldFloorArea,
	"hauteur du plafond":    FieldCeilingHeight,
	"ceiling height":        FieldCeilingHeight,
	"dimensions":            FieldDimensions,
	"dimensions de la salle": FieldDimensions,
	"room dimensions":       FieldDimensions,
	"théâtre":               FieldTheatre,
	"theatre":               FieldTheatre,
	"theater":               FieldTheatre,
	"salle de classe":       FieldClassroom,
	"classroom":             FieldClassroom,
	"en banquet":            FieldBanquet,
	"banquet":               FieldBanquet,
	"en cocktail":           FieldCocktail,
	"cocktail":              FieldCocktail,
	"en u":                  FieldUShape,
	"u-shape":               FieldUShape,
	"u shape":               FieldUShape,
	"amphithéâtre":          FieldAmphitheater,
	"amphitheater":          FieldAmphitheater,
	"capacité max":          FieldMaxCapacity,
	"capacité maximum":      FieldMaxCapacity,
	"capacité maximale":     FieldMaxCapacity,
	"maximum capacity":      FieldMaxCapacity,
	"max capacity":          FieldMaxCapacity,
}

// MapHeader resolves a raw source header to its semantic field. Matching is
// case-insensitive and tolerant of surrounding whitespace.
func MapHeader(raw string) Field {
	h := normalizeHeader(raw)
	if h == "" {
		return FieldUnknown
	}
	if f, ok := headerSynonyms[h]; ok {
		return f
	}
	switch {
	case strings.Contains(h, "réunion") || (strings.Contains(h, "salle") && strings.Contains(h, "nom")):
		return FieldRoomName
	case strings.Contains(h, "taille"):
		return FieldFloorArea
	case strings.Contains(h, "hauteur") || strings.Contains(h, "plafond"):
		return FieldCeilingHeight
	case strings.Contains(h, "dimension"):
		return FieldDimensions
	case strings.Contains(h, "max"):
		return FieldMaxCapacity
	case strings.Contains(h, "banquet"):
		return FieldBanquet
	case strings.Contains(h, "cocktail"):
		return FieldCocktail
	case strings.Contains(h, "théâtre") || strings.Contains(h, "theatre") || strings.Contains(h, "theater"):
		return FieldTheatre
	case strings.Contains(h, "classe") || strings.Contains(h, "classroom"):
		return FieldClassroom
	case strings.Contains(h, "amphi"):
		return FieldAmphitheater
	}
	return FieldUnknown
}

func normalizeHeader(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), " ")
}

// ParseCapacity converts a capacity cell to an optional integer. Dash-like
// placeholders and non-numeric text yield nil, never zero: absent means
// "not published".
func ParseCapacity(raw string) *int {
	s := strings.TrimSpace(raw)
	if s == "" || isDashLike(s) {
		return nil
	}
	// Tolerate thousands separators and stray whitespace inside the cell.
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', ' ', ',', '.':
			return -1
		}
		return r
	}, s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func isDashLike(s string) bool {
	for _, r := range s {
		switch r {
		case '-', '–', '—', '−':
		default:
			return false
		}
	}
	return true
}

// applyField writes a raw cell value onto the record slot selected by the
// field. Unknown and max-capacity columns are dropped silently.
func applyField(r *venue.RoomRecord, f Field, raw string) {
	val := strings.TrimSpace(raw)
	switch f {
	case FieldRoomName:
		if r.Name == "" {
			r.Name = firstLine(val)
		}
	case FieldFloorArea:
		if r.FloorArea == "" && !isDashLike(val) {
			r.FloorArea = val
		}
	case FieldCeilingHeight:
		if r.CeilingHeight == "" && !isDashLike(val) {
			r.CeilingHeight = val
		}
	case FieldDimensions:
		if r.Dimensions == "" && !isDashLike(val) {
			r.Dimensions = val
		}
	case FieldTheatre:
		if r.Theatre == nil {
			r.Theatre = ParseCapacity(val)
		}
	case FieldClassroom:
		if r.Classroom == nil {
			r.Classroom = ParseCapacity(val)
		}
	case FieldBanquet:
		if r.Banquet == nil {
			r.Banquet = ParseCapacity(val)
		}
	case FieldCocktail:
		if r.Cocktail == nil {
			r.Cocktail = ParseCapacity(val)
		}
	case FieldUShape:
		if r.UShape == nil {
			r.UShape = ParseCapacity(val)
		}
	case FieldAmphitheater:
		if r.Amphitheater == nil {
			r.Amphitheater = ParseCapacity(val)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
