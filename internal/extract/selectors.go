package extract

// CSS selectors and control labels used across the extractors.
// Centralising them makes source-side markup drift easier to absorb.
const (
	// Legacy grid layout (fixed data table rendered from divs with ARIA roles).
	legacyGridRowSelector    = ".public_fixedDataTable_bodyRow"
	legacyGridCellSelector   = `[role="gridcell"]`
	legacyGridHeaderSelector = `[role="columnheader"]`
	legacyGridNameSelector   = `li[class*="meetingRoomName"]`
	gridWrapperSelector      = "#meetingRoomsTableWrapper"

	// Modern grid layout (plain HTML table).
	tableSelector       = "table"
	tableHeaderSelector = "thead th, table th"
	tableRowSelector    = "tbody tr"
	tableCellSelector   = "td"
	tableNameSelector   = `.font-medium, [class*="font-medium"]`

	// Popup layout: one trigger per room opens a detail disclosure.
	popupTriggerSelector = `a[href*="meetingRoom"], button[data-room-name]`
	dialogSelector       = `[role="dialog"], .modal`
	dialogTitleSelector  = "h1, h2, h3"
	dialogCloseSelector  = `[role="dialog"] button[aria-label="Fermer"], [role="dialog"] button[aria-label="Close"], .modal button.close`
	dialogFieldRow       = "dl > div, tr"

	// Column pagination control on legacy grids.
	nextColumnSelector = `span[role="button"]:has(span[aria-label="Suivant"]), button[aria-label="Suivant"]`
)

// Control labels that reveal the full room list before extraction.
var showAllLabels = []string{
	"afficher toutes les salles",
	"tout afficher",
	"show all meeting rooms",
	"show all",
}

// Labels carried only by the popup variant's room-list trigger.
var popupTriggerLabels = []string{
	"afficher toutes les salles",
	"show all meeting rooms",
}

// Tab labels that open the meeting-space section of a venue page.
var meetingSpaceLabels = []string{
	"espace de réunion",
	"meeting space",
}

// Keywords that identify a room-inventory table by its headers.
var roomHeaderKeywords = []string{
	"nom", "salle", "taille", "capacit", "hauteur",
	"room", "size", "capacity", "height",
}
