package workflow

import (
	"testing"

	"ecohunt-be/models"
)

func TestSettleSeverityValues(t *testing.T) {
	cases := []struct {
		severity models.Severity
		want     int
	}{
		{models.SeverityHigh, 150},
		{models.SeverityMedium, 100},
		{models.SeverityLow, 50},
		{models.Severity("toxic"), 50}, // unrecognized falls back to low
	}

	for _, tc := range cases {
		got := Settle(tc.severity, nil)
		if got.PerPersonPoints != tc.want {
			t.Errorf("Settle(%s, solo) = %d, want %d", tc.severity, got.PerPersonPoints, tc.want)
		}
		if got.TotalAwarded != tc.want {
			t.Errorf("Settle(%s, solo) total = %d, want %d", tc.severity, got.TotalAwarded, tc.want)
		}
	}
}

func TestSettleFloorSplit(t *testing.T) {
	collaborators := []string{}
	for k := 0; k <= 6; k++ {
		for _, severity := range []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh} {
			points := models.PointsForSeverity(severity)
			got := Settle(severity, collaborators)

			wantPer := points / (k + 1)
			if got.PerPersonPoints != wantPer {
				t.Errorf("Settle(%s, k=%d) per-person = %d, want %d", severity, k, got.PerPersonPoints, wantPer)
			}
			if got.TotalAwarded != wantPer*(k+1) {
				t.Errorf("Settle(%s, k=%d) total = %d, want %d", severity, k, got.TotalAwarded, wantPer*(k+1))
			}
			// Flooring may lose at most k points, never more
			if loss := points - got.TotalAwarded; loss < 0 || loss > k {
				t.Errorf("Settle(%s, k=%d) lost %d points to flooring", severity, k, loss)
			}
		}
		collaborators = append(collaborators, "user")
	}
}

func TestSettleTeamMedium(t *testing.T) {
	got := Settle(models.SeverityMedium, []string{"u1", "u2"})
	if got.PerPersonPoints != 33 {
		t.Fatalf("expected 33 points per person, got %d", got.PerPersonPoints)
	}
	// 1 point is lost to flooring, which is expected
	if got.TotalAwarded != 99 {
		t.Fatalf("expected 99 points total, got %d", got.TotalAwarded)
	}
}
