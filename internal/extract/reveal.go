package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/venue"
)

// RevealRooms activates the page controls that disclose the room inventory:
// the meeting-space tab on venue pages that bury rooms in a section, and the
// "show all" control on grids that render a truncated list. Everything here
// is best effort; a page without these controls is the common case.
func RevealRooms(ctx context.Context, s venue.Session, log *zap.Logger) {
	for _, label := range meetingSpaceLabels {
		ok, err := s.ClickText(ctx, label)
		if err != nil {
			log.Debug("meeting-space tab click failed", zap.String("label", label), zap.Error(err))
			return
		}
		if ok {
			break
		}
	}
	for _, label := range showAllLabels {
		ok, err := s.ClickText(ctx, label)
		if err != nil {
			log.Debug("show-all click failed", zap.String("label", label), zap.Error(err))
			return
		}
		if ok {
			return
		}
	}
}
