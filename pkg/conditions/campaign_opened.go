package conditions

import (
	"context"
	"fmt"

	"github.com/dukex/journeys/pkg/models"
)

// KindCampaignOpened is true when the contact opened a campaign sent to them.
const KindCampaignOpened = "campaign_opened"

// OpenHistory answers whether an open event was recorded for a dispatch of
// campaignID to contactID.
type OpenHistory interface {
	HasOpened(ctx context.Context, contactID, campaignID int64) (bool, error)
}

// CampaignOpened builds the campaign_opened predicate. Settings without a
// positive campaign_id evaluate to false.
func CampaignOpened(history OpenHistory) Predicate {
	return func(ctx context.Context, contactID int64, settings models.Settings) (bool, error) {
		campaignID, ok := settings.Int(models.SettingCampaignID)
		if !ok || campaignID <= 0 {
			return false, nil
		}

		opened, err := history.HasOpened(ctx, contactID, campaignID)
		if err != nil {
			return false, fmt.Errorf("failed to read open history of contact %d for campaign %d: %w", contactID, campaignID, err)
		}

		return opened, nil
	}
}
