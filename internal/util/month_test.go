package util

import (
	"testing"
	"time"
)

func TestCalculateActualDate(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     time.Month
		targetDay int
		want      time.Time
	}{
		{"day exists", 2024, time.March, 15, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"31st in leap February", 2024, time.February, 31, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"31st in February", 2025, time.February, 31, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"31st in April", 2025, time.April, 31, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateActualDate(tt.year, tt.month, tt.targetDay)
			if !got.Equal(tt.want) {
				t.Errorf("CalculateActualDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddMonthsClamped(t *testing.T) {
	jan31 := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		from   time.Time
		months int
		day    int
		want   time.Time
	}{
		{"jan 31 to leap feb", jan31, 1, 31, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"clamped feb back to 31st", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 1, 31, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"quarter across year", time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC), 3, 30, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"twelve months", jan31, 12, 31, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonthsClamped(tt.from, tt.months, tt.day)
			if !got.Equal(tt.want) {
				t.Errorf("AddMonthsClamped() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStartOfWeek(t *testing.T) {
	// 2024-03-13 is a Wednesday
	got := StartOfWeek(time.Date(2024, 3, 13, 17, 45, 0, 0, time.UTC))
	want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOfWeek() = %v, want %v", got, want)
	}

	sunday := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	if got := StartOfWeek(sunday); !got.Equal(want) {
		t.Errorf("StartOfWeek(sunday) = %v, want %v", got, want)
	}
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	got := DateOnly(time.Date(2024, 6, 1, 23, 30, 0, 0, loc))
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOnly() = %v, want %v", got, want)
	}
}
