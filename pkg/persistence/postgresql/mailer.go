package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukex/journeys/pkg/models"
)

// MailerRepository writes the mailer_queue table and reads email_opens.
type MailerRepository struct {
	db *sql.DB
}

// NewMailerRepository creates a new mailer repository.
func NewMailerRepository(db *sql.DB) *MailerRepository {
	return &MailerRepository{db: db}
}

func (r *MailerRepository) Enqueue(ctx context.Context, dispatch *models.CampaignDispatch) error {
	query := `
		INSERT INTO mailer_queue (campaign_id, contact_id, status, added_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		dispatch.CampaignID,
		dispatch.ContactID,
		dispatch.Status,
		dispatch.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue campaign %d for contact %d: %w", dispatch.CampaignID, dispatch.ContactID, err)
	}

	return nil
}

// HasOpened counts opens joined to the contact's dispatches of the campaign.
func (r *MailerRepository) HasOpened(ctx context.Context, contactID, campaignID int64) (bool, error) {
	query := `
		SELECT COUNT(o.id)
		FROM email_opens o
		JOIN mailer_queue q ON o.queue_id = q.id
		WHERE q.contact_id = $1 AND q.campaign_id = $2
	`

	var opens int64

	err := r.db.QueryRowContext(ctx, query, contactID, campaignID).Scan(&opens)
	if err != nil {
		return false, fmt.Errorf("failed to count opens of campaign %d for contact %d: %w", campaignID, contactID, err)
	}

	return opens > 0, nil
}

// RecordOpen stores an open against the latest dispatch of the campaign to the
// contact. Without a dispatch there is nothing to attach the open to.
//
// The engine never calls it. It is the write side of email_opens for the
// open tracker that shares this database, and the shape HasOpened reads.
func (r *MailerRepository) RecordOpen(ctx context.Context, contactID, campaignID int64, openedAt time.Time) error {
	query := `
		INSERT INTO email_opens (queue_id, opened_at)
		SELECT id, $3
		FROM mailer_queue
		WHERE contact_id = $1 AND campaign_id = $2
		ORDER BY id DESC
		LIMIT 1
	`

	result, err := r.db.ExecContext(ctx, query, contactID, campaignID, openedAt)
	if err != nil {
		return fmt.Errorf("failed to record open of campaign %d for contact %d: %w", campaignID, contactID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record open of campaign %d for contact %d: %w", campaignID, contactID, err)
	}

	if affected == 0 {
		return fmt.Errorf("no dispatch of campaign %d to contact %d", campaignID, contactID)
	}

	return nil
}
