package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimStatus enum
type ClaimStatus string

const (
	ClaimInProgress ClaimStatus = "in_progress"
	ClaimCompleted  ClaimStatus = "completed"
	ClaimVerified   ClaimStatus = "verified"
)

// CleanupClaim records one user's (possibly collaborative) completion of an
// area's cleanup. Collaborators never include the claimer and carry set
// semantics. QualityScore is only present once verification succeeded, and
// PointsEarned is the per-person award computed exactly once at settlement.
type CleanupClaim struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	AreaID        primitive.ObjectID   `bson:"areaId" json:"areaId"`
	ClaimedBy     primitive.ObjectID   `bson:"claimedBy" json:"claimedBy"`
	Collaborators []primitive.ObjectID `bson:"collaborators" json:"collaborators"`
	Status        ClaimStatus          `bson:"status" json:"status"`
	PhotosAfter   []string             `bson:"photosAfter" json:"photosAfter"`
	QualityScore  *int                 `bson:"qualityScore,omitempty" json:"qualityScore,omitempty"`
	PointsEarned  int                  `bson:"pointsEarned" json:"pointsEarned"`
	ClaimedAt     time.Time            `bson:"claimedAt" json:"claimedAt"`
	CompletedAt   *time.Time           `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	VerifiedAt    *time.Time           `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
}
