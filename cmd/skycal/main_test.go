package main

import (
	"testing"
	"time"
)

func TestDayBeforeUsesConfiguredZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}

	// 23:30 UTC on the 15th is already 08:30 on the 16th in Tokyo, so
	// yesterday there is the 15th, not the 14th.
	now := time.Date(2026, 3, 15, 23, 30, 0, 0, time.UTC)

	got := dayBefore(now, tokyo)
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, tokyo)
	if !got.Equal(want) {
		t.Errorf("dayBefore() = %v, want %v", got, want)
	}

	gotUTC := dayBefore(now, time.UTC)
	wantUTC := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !gotUTC.Equal(wantUTC) {
		t.Errorf("dayBefore() in UTC = %v, want %v", gotUTC, wantUTC)
	}
}
