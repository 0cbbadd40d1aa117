package port

import (
	"context"

	"github.com/bnema/captioner/internal/domain"
)

// Update is published whenever a session or one of its segments changes.
// Segment is nil for session-level changes. An update whose session is
// terminal is the completion notice: OutputRef or FailureReason is set.
type Update struct {
	Session *domain.Session
	Segment *domain.Segment
}

type Notifier interface {
	Notify(ctx context.Context, u Update)
}

type StyleCatalog interface {
	Style(id string) (domain.Style, bool)
	Styles() []domain.Style
}
