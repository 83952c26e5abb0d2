package recurrence

import (
	"testing"
	"time"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func template(freq domain.Frequency, start time.Time) *domain.RecurringTemplate {
	return &domain.RecurringTemplate{
		ID:             1,
		OwnerID:        1,
		Kind:           domain.KindBill,
		Name:           "Rent",
		ExpectedAmount: decimal.NewFromInt(100),
		Frequency:      freq,
		StartDate:      start,
	}
}

func TestComputeOccurrences_MonthlyExample(t *testing.T) {
	tmpl := template(domain.FrequencyMonthly, date(2024, 1, 15))

	got := ComputeOccurrences(tmpl, date(2024, 4, 1), date(2024, 1, 15))

	assert.Equal(t, []time.Time{date(2024, 2, 15), date(2024, 3, 15)}, got)
}

func TestComputeOccurrences_MonthEndClamp(t *testing.T) {
	t.Run("leap year", func(t *testing.T) {
		tmpl := template(domain.FrequencyMonthly, date(2024, 1, 31))
		got := ComputeOccurrences(tmpl, date(2024, 5, 1), date(2024, 1, 31))
		assert.Equal(t, []time.Time{date(2024, 2, 29), date(2024, 3, 31), date(2024, 4, 30)}, got)
	})

	t.Run("common year", func(t *testing.T) {
		tmpl := template(domain.FrequencyMonthly, date(2023, 1, 31))
		got := ComputeOccurrences(tmpl, date(2023, 3, 1), date(2023, 1, 31))
		assert.Equal(t, []time.Time{date(2023, 2, 28)}, got)
	})
}

func TestComputeOccurrences_Weekly(t *testing.T) {
	tmpl := template(domain.FrequencyWeekly, date(2024, 1, 1))

	got := ComputeOccurrences(tmpl, date(2024, 1, 29), date(2024, 1, 1))

	// 2024-01-29 equals the horizon and is excluded
	assert.Equal(t, []time.Time{date(2024, 1, 8), date(2024, 1, 15), date(2024, 1, 22)}, got)
}

func TestComputeOccurrences_IntervalProperty(t *testing.T) {
	horizon := date(2027, 1, 1)
	anchor := date(2024, 1, 31)

	for _, freq := range domain.Frequencies {
		if freq == domain.FrequencyOneTime {
			continue
		}
		t.Run(string(freq), func(t *testing.T) {
			tmpl := template(freq, anchor)
			iv, ok := IntervalFor(freq)
			require.True(t, ok)

			got := ComputeOccurrences(tmpl, horizon, anchor)
			require.NotEmpty(t, got)

			prev := anchor
			for _, d := range got {
				assert.True(t, d.After(prev), "%s not after %s", d, prev)
				assert.Equal(t, Advance(iv, prev, anchor.Day()), d)
				prev = d
			}
			assert.True(t, got[len(got)-1].Before(horizon))
			assert.False(t, Advance(iv, got[len(got)-1], anchor.Day()).Before(horizon))
		})
	}
}

func TestComputeOccurrences_OneTimeIsEmpty(t *testing.T) {
	tmpl := template(domain.FrequencyOneTime, date(2024, 1, 1))

	assert.Empty(t, ComputeOccurrences(tmpl, date(2030, 1, 1), date(2024, 1, 1)))
}

func TestComputeOccurrences_NeverBeforeAnchor(t *testing.T) {
	tmpl := template(domain.FrequencyMonthly, date(2024, 6, 10))

	got := ComputeOccurrences(tmpl, date(2024, 9, 1), date(2020, 1, 1))

	assert.Equal(t, []time.Time{date(2024, 7, 10), date(2024, 8, 10)}, got)
}

func TestComputeOccurrences_UnknownFrequency(t *testing.T) {
	tmpl := template(domain.Frequency("DAILY"), date(2024, 1, 1))

	assert.Nil(t, ComputeOccurrences(tmpl, date(2025, 1, 1), date(2024, 1, 1)))
}

func TestComputeOccurrences_IterationCap(t *testing.T) {
	tmpl := template(domain.FrequencyWeekly, date(1900, 1, 1))

	got := ComputeOccurrences(tmpl, date(2500, 1, 1), date(1900, 1, 1))

	assert.Len(t, got, MaxIterations)
}

func TestPlan_FirstBatchIncludesAnchor(t *testing.T) {
	tmpl := template(domain.FrequencyQuarterly, date(2024, 1, 15))

	got := Plan(tmpl, date(2024, 12, 31))(nil)

	assert.Equal(t, []time.Time{date(2024, 1, 15), date(2024, 4, 15), date(2024, 7, 15), date(2024, 10, 15)}, got)
}

func TestPlan_ResumesAfterMaxDueDate(t *testing.T) {
	tmpl := template(domain.FrequencyMonthly, date(2024, 1, 15))
	planner := Plan(tmpl, date(2024, 4, 1))

	first := planner(nil)
	require.Equal(t, []time.Time{date(2024, 1, 15), date(2024, 2, 15), date(2024, 3, 15)}, first)

	last := first[len(first)-1]
	assert.Empty(t, planner(&last))
}

func TestPlan_OneTime(t *testing.T) {
	tmpl := template(domain.FrequencyOneTime, date(2024, 5, 5))
	planner := Plan(tmpl, date(2024, 1, 1))

	assert.Equal(t, []time.Time{date(2024, 5, 5)}, planner(nil))

	existing := date(2024, 5, 5)
	assert.Empty(t, planner(&existing))
}

func TestPlan_AnchorBeyondHorizon(t *testing.T) {
	tmpl := template(domain.FrequencyMonthly, date(2030, 1, 1))

	assert.Empty(t, Plan(tmpl, date(2025, 1, 1))(nil))
}

func TestHorizonEnd(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, date(2025, 3, 11), HorizonEnd(now, 12))
	assert.Equal(t, date(2025, 3, 11), HorizonEnd(now, 0))
}
