package mailer

import (
	"context"
	"fmt"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

var _ persistence.DispatchQueue = (*MirroredQueue)(nil)

// MirroredQueue writes every dispatch to the journey store's mailer_queue
// before pushing it to an outbound queue. campaign_opened conditions join
// opens against the store, so the record has to exist wherever mail goes.
type MirroredQueue struct {
	record   persistence.DispatchQueue
	outbound persistence.DispatchQueue
}

func NewMirroredQueue(record, outbound persistence.DispatchQueue) *MirroredQueue {
	return &MirroredQueue{record: record, outbound: outbound}
}

// Enqueue fails without touching the outbound queue when the record cannot be
// written. An outbound failure after a written record is returned as is; the
// retry records the dispatch a second time.
func (q *MirroredQueue) Enqueue(ctx context.Context, dispatch *models.CampaignDispatch) error {
	err := q.record.Enqueue(ctx, dispatch)
	if err != nil {
		return fmt.Errorf("failed to record dispatch: %w", err)
	}

	err = q.outbound.Enqueue(ctx, dispatch)
	if err != nil {
		return fmt.Errorf("failed to forward dispatch: %w", err)
	}

	return nil
}
