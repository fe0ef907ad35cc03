package models

import "testing"

func TestPointsForSeverity(t *testing.T) {
	cases := []struct {
		severity Severity
		want     int
	}{
		{SeverityHigh, 150},
		{SeverityMedium, 100},
		{SeverityLow, 50},
		{Severity(""), 50},
		{Severity("extreme"), 50},
	}
	for _, tc := range cases {
		if got := PointsForSeverity(tc.severity); got != tc.want {
			t.Errorf("PointsForSeverity(%q) = %d, want %d", tc.severity, got, tc.want)
		}
	}
}

func TestValidSeverity(t *testing.T) {
	for _, s := range []string{"high", "medium", "low"} {
		if !ValidSeverity(s) {
			t.Errorf("ValidSeverity(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "High", "severe", "critical"} {
		if ValidSeverity(s) {
			t.Errorf("ValidSeverity(%q) = true, want false", s)
		}
	}
}

func TestNewGeoPoint(t *testing.T) {
	p := NewGeoPoint(52.52, 13.405)
	if p.Type != "Point" {
		t.Errorf("expected Point type, got %q", p.Type)
	}
	// GeoJSON is longitude-first
	if p.Coordinates[0] != 13.405 || p.Coordinates[1] != 52.52 {
		t.Errorf("unexpected coordinates %v", p.Coordinates)
	}
}
