package file

import (
	"context"
	"time"

	"github.com/dukex/journeys/pkg/models"
)

// EmailOpen records that a contact opened a dispatched campaign.
type EmailOpen struct {
	CampaignID int64     `json:"campaign_id"`
	ContactID  int64     `json:"contact_id"`
	OpenedAt   time.Time `json:"opened_at"`
}

// MailerRepository is the mailer_queue sink and the email_opens history.
type MailerRepository struct {
	store *Persistence
}

func (r *MailerRepository) Enqueue(_ context.Context, dispatch *models.CampaignDispatch) error {
	return update(r.store, mailerFile, func(all *[]*models.CampaignDispatch) error {
		*all = append(*all, dispatch)

		return nil
	})
}

// Dispatches returns everything queued so far, oldest first.
func (r *MailerRepository) Dispatches(_ context.Context) ([]*models.CampaignDispatch, error) {
	return read[[]*models.CampaignDispatch](r.store, mailerFile)
}

// RecordOpen appends an open event to email_opens.json. The engine never calls
// it; it is the entry point for the open tracker of a file-backed install and
// writes the shape HasOpened reads.
func (r *MailerRepository) RecordOpen(_ context.Context, contactID, campaignID int64, openedAt time.Time) error {
	return update(r.store, opensFile, func(all *[]*EmailOpen) error {
		*all = append(*all, &EmailOpen{CampaignID: campaignID, ContactID: contactID, OpenedAt: openedAt})

		return nil
	})
}

// HasOpened is true when an open exists for a dispatch of the campaign to the contact.
func (r *MailerRepository) HasOpened(_ context.Context, contactID, campaignID int64) (bool, error) {
	dispatches, err := read[[]*models.CampaignDispatch](r.store, mailerFile)
	if err != nil {
		return false, err
	}

	dispatched := false

	for _, dispatch := range dispatches {
		if dispatch.ContactID == contactID && dispatch.CampaignID == campaignID {
			dispatched = true

			break
		}
	}

	if !dispatched {
		return false, nil
	}

	opens, err := read[[]*EmailOpen](r.store, opensFile)
	if err != nil {
		return false, err
	}

	for _, open := range opens {
		if open.ContactID == contactID && open.CampaignID == campaignID {
			return true, nil
		}
	}

	return false, nil
}
