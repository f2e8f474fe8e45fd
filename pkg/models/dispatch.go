package models

import "time"

// DispatchStatusPending is the only status the engine ever writes to the mailer queue.
const DispatchStatusPending = "pending"

// CampaignDispatch asks the mailer to send a campaign to a contact.
// The engine inserts these and never reads them back.
type CampaignDispatch struct {
	CampaignID int64     `json:"campaign_id"`
	ContactID  int64     `json:"contact_id"`
	Status     string    `json:"status"`
	AddedAt    time.Time `json:"added_at"`
}

// NewCampaignDispatch builds a pending dispatch request.
func NewCampaignDispatch(campaignID, contactID int64, now time.Time) *CampaignDispatch {
	return &CampaignDispatch{
		CampaignID: campaignID,
		ContactID:  contactID,
		Status:     DispatchStatusPending,
		AddedAt:    now,
	}
}
