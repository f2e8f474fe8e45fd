package file

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

var errNotWon = errors.New("journey already claimed")

// JourneyRepository stores journeys in automation_queue.json.
type JourneyRepository struct {
	store *Persistence
}

func (r *JourneyRepository) Create(_ context.Context, journey *models.Journey) error {
	return update(r.store, journeysFile, func(all *[]*models.Journey) error {
		var last int64
		for _, existing := range *all {
			last = max(last, existing.QueueID)
		}

		now := time.Now().UTC()
		if journey.CreatedAt.IsZero() {
			journey.CreatedAt = now
		}

		if journey.Status == "" {
			journey.Status = models.JourneyStatusWaiting
		}

		journey.QueueID = last + 1
		journey.UpdatedAt = now

		stored := *journey
		*all = append(*all, &stored)

		return nil
	})
}

func (r *JourneyRepository) Due(_ context.Context, query persistence.DueQuery) ([]*models.Journey, error) {
	all, err := read[[]*models.Journey](r.store, journeysFile)
	if err != nil {
		return nil, err
	}

	var active map[int64]bool

	if query.ActiveOnly {
		automations, err := read[[]*models.Automation](r.store, automationsFile)
		if err != nil {
			return nil, err
		}

		active = make(map[int64]bool, len(automations))
		for _, automation := range automations {
			active[automation.ID] = automation.IsActive()
		}
	}

	due := make([]*models.Journey, 0)

	for _, journey := range all {
		if !journey.IsDue(query.Now) && !journey.IsStale(query.StaleBefore) {
			continue
		}

		if query.ActiveOnly && !active[journey.AutomationID] {
			continue
		}

		due = append(due, journey)
	}

	slices.SortStableFunc(due, func(a, b *models.Journey) int {
		return cmp.Or(a.ProcessAt.Compare(b.ProcessAt), cmp.Compare(a.QueueID, b.QueueID))
	})

	if query.Limit > 0 && len(due) > query.Limit {
		due = due[:query.Limit]
	}

	return due, nil
}

// Claim is a compare-and-set to processing under the store mutex.
func (r *JourneyRepository) Claim(_ context.Context, queueID int64, query persistence.ClaimQuery) (*models.Journey, bool, error) {
	var claimed *models.Journey

	now := query.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	err := update(r.store, journeysFile, func(all *[]*models.Journey) error {
		journey := find(*all, queueID)
		if journey == nil {
			return persistence.NewJourneyError("Claim", queueID, persistence.ErrJourneyNotFound)
		}

		if journey.Status != models.JourneyStatusWaiting && !journey.IsStale(query.StaleBefore) {
			return errNotWon
		}

		journey.Status = models.JourneyStatusProcessing
		journey.Attempts++
		journey.UpdatedAt = now

		copied := *journey
		claimed = &copied

		return nil
	})
	if errors.Is(err, errNotWon) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return claimed, true, nil
}

func (r *JourneyRepository) Advance(_ context.Context, queueID, nextStepID int64, status models.JourneyStatus, processAt time.Time) error {
	return r.mutate("Advance", queueID, func(journey *models.Journey) {
		journey.CurrentStepID = nextStepID
		journey.Status = status
		journey.ProcessAt = processAt
		journey.Attempts = 0
	})
}

func (r *JourneyRepository) Complete(_ context.Context, queueID int64) error {
	return r.mutate("Complete", queueID, func(journey *models.Journey) {
		journey.Status = models.JourneyStatusCompleted
	})
}

func (r *JourneyRepository) Release(_ context.Context, queueID int64) error {
	return r.mutate("Release", queueID, func(journey *models.Journey) {
		journey.Status = models.JourneyStatusWaiting
	})
}

func (r *JourneyRepository) ByID(_ context.Context, queueID int64) (*models.Journey, error) {
	all, err := read[[]*models.Journey](r.store, journeysFile)
	if err != nil {
		return nil, err
	}

	journey := find(all, queueID)
	if journey == nil {
		return nil, persistence.NewJourneyError("ByID", queueID, persistence.ErrJourneyNotFound)
	}

	return journey, nil
}

func (r *JourneyRepository) List(_ context.Context, filter persistence.JourneyFilter) ([]*models.Journey, error) {
	all, err := read[[]*models.Journey](r.store, journeysFile)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Journey, 0)

	for _, journey := range all {
		if filter.AutomationID != 0 && journey.AutomationID != filter.AutomationID {
			continue
		}

		if filter.ContactID != 0 && journey.ContactID != filter.ContactID {
			continue
		}

		if filter.Status != "" && journey.Status != filter.Status {
			continue
		}

		matches = append(matches, journey)

		if filter.Limit > 0 && len(matches) == filter.Limit {
			break
		}
	}

	return matches, nil
}

func (r *JourneyRepository) mutate(op string, queueID int64, fn func(journey *models.Journey)) error {
	return update(r.store, journeysFile, func(all *[]*models.Journey) error {
		journey := find(*all, queueID)
		if journey == nil {
			return persistence.NewJourneyError(op, queueID, persistence.ErrJourneyNotFound)
		}

		if journey.Status != models.JourneyStatusProcessing {
			return persistence.NewJourneyError(op, queueID, persistence.ErrJourneyNotClaimed)
		}

		fn(journey)
		journey.UpdatedAt = time.Now().UTC()

		return nil
	})
}

func find(all []*models.Journey, queueID int64) *models.Journey {
	for _, journey := range all {
		if journey.QueueID == queueID {
			return journey
		}
	}

	return nil
}
