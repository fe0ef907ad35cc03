package workflow

import (
	"ecohunt-be/models"
)

// Settlement is the cached result of splitting an area's point value across
// the claimer and collaborators. It is computed exactly once per flow and
// never recalculated.
type Settlement struct {
	PerPersonPoints int `json:"perPersonPoints"`
	TotalAwarded    int `json:"totalAwarded"`
}

// Settle splits the severity-derived point value evenly across the claimer
// and k collaborators: floor(points / (k+1)) each. Up to k points may be
// lost to flooring; there is no remainder redistribution.
func Settle(severity models.Severity, collaboratorIDs []string) Settlement {
	share := len(collaboratorIDs) + 1
	perPerson := models.PointsForSeverity(severity) / share
	return Settlement{
		PerPersonPoints: perPerson,
		TotalAwarded:    perPerson * share,
	}
}
