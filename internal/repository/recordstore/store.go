// Package recordstore persists share records and computes listing views.
package recordstore

import (
	"context"
	"math"
	"time"

	"github.com/datatecnica/sampleshare/internal/domain"
)

// Store is the share record persistence contract.
//
// Mutating calls perform a whole-document read-modify-write; there is no
// partial update. The store assumes single-writer access: concurrent writers
// are last-writer-wins, and callers needing concurrent safety must serialize
// access externally.
type Store interface {
	Append(ctx context.Context, record domain.ShareRecord) error
	Get(ctx context.Context, id string) (domain.ShareRecord, error)
	UpdateStatus(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	// ListAll returns records in insertion order.
	ListAll(ctx context.Context) ([]domain.ShareRecord, error)
}

// RecordView is a record with derived listing fields.
type RecordView struct {
	domain.ShareRecord
	DaysRemaining int
}

// DeriveView computes days-remaining and the expiry-corrected active flag
// for display. The correction is view-time only: the stored active value is
// never overwritten here, only by an explicit UpdateStatus call.
func DeriveView(records []domain.ShareRecord, now time.Time) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, record := range records {
		view := RecordView{ShareRecord: record}
		days := int(math.Ceil(record.ExpiresAt.Sub(now).Hours() / 24))
		if days < 0 {
			days = 0
		}
		view.DaysRemaining = days
		if record.Expired(now) {
			view.Active = false
		}
		views = append(views, view)
	}
	return views
}
