package engine

import (
	"context"
	"fmt"

	"github.com/dukex/journeys/pkg/auditlog"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// ActionStep queues the configured campaign for the contact, then moves on
// immediately. Steps without a campaign_id only move on.
type ActionStep struct {
	dispatches persistence.DispatchQueue
	audit      *auditlog.Recorder
}

func NewActionStep(dispatches persistence.DispatchQueue, audit *auditlog.Recorder) *ActionStep {
	return &ActionStep{dispatches: dispatches, audit: audit}
}

func (a *ActionStep) Execute(ctx context.Context, exec *Execution) (Continuation, error) {
	campaignID, ok := exec.Step.CampaignID()
	if ok {
		err := a.dispatches.Enqueue(ctx, models.NewCampaignDispatch(campaignID, exec.Journey.ContactID, exec.Now))
		if err != nil {
			return Continuation{}, fmt.Errorf("failed to queue campaign %d: %w", campaignID, err)
		}

		a.audit.Info(ctx, models.CategoryEngine,
			fmt.Sprintf("Campaign %d queued for contact %d by automation %d.", campaignID, exec.Journey.ContactID, exec.Journey.AutomationID),
			"queue_id", exec.Journey.QueueID,
			"step_id", exec.Step.ID,
		)
	}

	return continueFrom(exec.Tree, exec.Step, exec.Now), nil
}
