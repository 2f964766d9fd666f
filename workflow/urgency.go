package workflow

import (
	"time"

	"github.com/mmdatafocus/mfg_backend/models"
)

// DaysUntilDue counts whole days from now to the due date, truncating both to
// midnight UTC so a due date later today still counts as zero days away.
func DaysUntilDue(dueDate time.Time, now time.Time) int {
	due := dueDate.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	return int(due.Sub(today).Hours() / 24)
}

// ClassifyUrgency buckets a shortage by how soon the demand is due. First
// matching tier wins, a missing due date is Low.
func ClassifyUrgency(dueDate *time.Time, now time.Time) models.Urgency {
	if dueDate == nil {
		return models.UrgencyLow
	}
	days := DaysUntilDue(*dueDate, now)
	switch {
	case days <= 0:
		return models.UrgencyCritical
	case days <= 7:
		return models.UrgencyHigh
	case days <= 14:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

// SuggestOrderDate backdates the due date by the part's lead time. The result
// may be in the past, which the urgency tier already surfaces.
func SuggestOrderDate(dueDate *time.Time, leadTimeDays int) *time.Time {
	if dueDate == nil {
		return nil
	}
	suggested := dueDate.AddDate(0, 0, -leadTimeDays)
	return &suggested
}
