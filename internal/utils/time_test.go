package utils

import (
	"testing"
	"time"
)

func TestLoadLocation(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{name: "empty string returns local", timezone: ""},
		{name: "Local returns local", timezone: "Local"},
		{name: "valid timezone UTC", timezone: "UTC"},
		{name: "valid timezone Asia/Tokyo", timezone: "Asia/Tokyo"},
		{name: "invalid timezone", timezone: "Invalid/Timezone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadLocation(tt.timezone)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadLocation() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && loc == nil {
				t.Errorf("LoadLocation() returned nil location without error")
			}
		})
	}
}

func TestToday(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2024-04-30 20:00 UTC is already May 1st in Tokyo.
	instant := time.Date(2024, 4, 30, 20, 0, 0, 0, time.UTC)
	if got := Today(instant, tokyo); got != "2024-05-01" {
		t.Errorf("Today(Tokyo) = %q, want 2024-05-01", got)
	}
	if got := Today(instant, time.UTC); got != "2024-04-30" {
		t.Errorf("Today(UTC) = %q, want 2024-04-30", got)
	}
}

func TestMonthOf(t *testing.T) {
	if got, err := MonthOf("2024-05-31"); err != nil || got != "2024-05" {
		t.Errorf("MonthOf() = %q, %v", got, err)
	}
	if _, err := MonthOf("2024-5-31"); err == nil {
		t.Error("MonthOf() accepted a malformed date")
	}
}

func TestParseDateInLocation(t *testing.T) {
	utc := time.UTC
	tests := []struct {
		name    string
		dateStr string
		want    time.Time
		wantErr bool
	}{
		{name: "valid date", dateStr: "2026-01-15", want: time.Date(2026, 1, 15, 0, 0, 0, 0, utc)},
		{name: "leap day", dateStr: "2024-02-29", want: time.Date(2024, 2, 29, 0, 0, 0, 0, utc)},
		{name: "invalid format", dateStr: "2026/01/15", wantErr: true},
		{name: "invalid date", dateStr: "2026-13-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateInLocation(tt.dateStr, utc)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDateInLocation() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDateInLocation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateTimezone(t *testing.T) {
	tests := map[string]bool{
		"":                 true,
		"Local":            true,
		"UTC":              true,
		"Asia/Tokyo":       true,
		"Invalid/Timezone": false,
		"not-a-timezone":   false,
	}
	for tz, want := range tests {
		if got := ValidateTimezone(tz); got != want {
			t.Errorf("ValidateTimezone(%q) = %v, want %v", tz, got, want)
		}
	}
}
