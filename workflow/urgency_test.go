package workflow

import (
	"testing"
	"time"

	"github.com/mmdatafocus/mfg_backend/models"
)

func TestClassifyUrgencyBoundaries(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name    string
		daysOut int
		want    models.Urgency
	}{
		{"overdue", -3, models.UrgencyCritical},
		{"due today", 0, models.UrgencyCritical},
		{"due tomorrow", 1, models.UrgencyHigh},
		{"week boundary", 7, models.UrgencyHigh},
		{"just past week", 8, models.UrgencyMedium},
		{"fortnight boundary", 14, models.UrgencyMedium},
		{"just past fortnight", 15, models.UrgencyLow},
		{"far out", 60, models.UrgencyLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			due := now.AddDate(0, 0, tc.daysOut)
			if got := ClassifyUrgency(&due, now); got != tc.want {
				t.Fatalf("ClassifyUrgency(%+d days) = %s, want %s", tc.daysOut, got, tc.want)
			}
		})
	}
}

func TestClassifyUrgencyNilDueDateIsLow(t *testing.T) {
	if got := ClassifyUrgency(nil, time.Now()); got != models.UrgencyLow {
		t.Fatalf("nil due date = %s, want Low", got)
	}
}

func TestClassifyUrgencyLaterToday(t *testing.T) {
	// due later today, clock already past due's wall time: still today, so Critical
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	if got := ClassifyUrgency(&due, now); got != models.UrgencyCritical {
		t.Fatalf("same-day due = %s, want Critical", got)
	}
}

func TestSuggestOrderDate(t *testing.T) {
	due := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	got := SuggestOrderDate(&due, 14)
	want := time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Fatalf("SuggestOrderDate = %v, want %v", got, want)
	}
}

func TestSuggestOrderDateNilDueDate(t *testing.T) {
	if got := SuggestOrderDate(nil, 7); got != nil {
		t.Fatalf("SuggestOrderDate(nil) = %v, want nil", got)
	}
}

func TestSuggestOrderDateCanBeInPast(t *testing.T) {
	due := time.Now().UTC().AddDate(0, 0, 2)
	got := SuggestOrderDate(&due, 30)
	if got == nil || !got.Before(time.Now()) {
		t.Fatalf("long lead time should push the order date into the past, got %v", got)
	}
}
