package util

import (
	"testing"
	"time"
)

func TestFirstOfNextMonth(t *testing.T) {
	d := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	got := FirstOfNextMonth(d)
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("FirstOfNextMonth = %v, want %v", got, want)
	}
}

func TestFirstOfNextMonth_YearRollover(t *testing.T) {
	d := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	got := FirstOfNextMonth(d)
	want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("FirstOfNextMonth = %v, want %v", got, want)
	}
}

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		start  time.Time
		months int
		want   time.Time
	}{
		{time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), 3, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC), 3, time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), 0, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := AddMonthsClamped(tc.start, tc.months)
		if !got.Equal(tc.want) {
			t.Errorf("AddMonthsClamped(%v, %d) = %v, want %v", tc.start, tc.months, got, tc.want)
		}
	}
}

func TestBeforeCalendarMonth(t *testing.T) {
	jan := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	decPrev := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	if !BeforeCalendarMonth(jan, feb) {
		t.Errorf("January should be before February")
	}
	if BeforeCalendarMonth(feb, jan) {
		t.Errorf("February should not be before January")
	}
	if BeforeCalendarMonth(jan, jan) {
		t.Errorf("a month is not before itself")
	}
	if !BeforeCalendarMonth(decPrev, jan) {
		t.Errorf("December 2025 should be before January 2026")
	}
}

func TestMonthKey_Ordering(t *testing.T) {
	dec := time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if MonthKey(dec) >= MonthKey(jan) {
		t.Errorf("MonthKey must order across year boundaries")
	}
}
