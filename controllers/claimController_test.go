package controllers

import (
	"context"
	"errors"
	"testing"

	"ecohunt-be/models"
	"ecohunt-be/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testCommitRequest() workflow.CommitRequest {
	return workflow.CommitRequest{
		AreaID:          primitive.NewObjectID().Hex(),
		ClaimerID:       primitive.NewObjectID().Hex(),
		CollaboratorIDs: []string{primitive.NewObjectID().Hex()},
		PhotosAfter:     []string{"after.jpg"},
		QualityScore:    90,
		PointsPerPerson: 75,
		TotalAwarded:    150,
	}
}

func TestClaimCommitterSequence(t *testing.T) {
	var calls []string
	cc := &claimCommitter{
		claimArea: func(primitive.ObjectID) error {
			calls = append(calls, "claim")
			return nil
		},
		insertClaim: func(_ context.Context, claim models.CleanupClaim) error {
			calls = append(calls, "insert")
			if claim.Status != models.ClaimCompleted {
				t.Errorf("expected completed claim, got %s", claim.Status)
			}
			if claim.PointsEarned != 75 {
				t.Errorf("expected 75 points per person, got %d", claim.PointsEarned)
			}
			if claim.QualityScore == nil || *claim.QualityScore != 90 {
				t.Errorf("expected quality score 90, got %v", claim.QualityScore)
			}
			if len(claim.Collaborators) != 1 {
				t.Errorf("expected 1 collaborator, got %d", len(claim.Collaborators))
			}
			return nil
		},
		completeArea: func(primitive.ObjectID) error {
			calls = append(calls, "complete")
			return nil
		},
		reopenArea: func(primitive.ObjectID) error {
			t.Error("reopenArea must not be called on the happy path")
			return nil
		},
	}

	claimID, err := cc.CommitClaim(context.Background(), testCommitRequest())
	if err != nil {
		t.Fatal(err)
	}
	if claimID == "" {
		t.Fatal("expected a claim ID")
	}
	want := []string{"claim", "insert", "complete"}
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, calls)
		}
	}
}

func TestClaimCommitterReopensAreaOnInsertFailure(t *testing.T) {
	insertErr := errors.New("claim write failed")
	reopened := false
	cc := &claimCommitter{
		claimArea: func(primitive.ObjectID) error { return nil },
		insertClaim: func(context.Context, models.CleanupClaim) error {
			return insertErr
		},
		completeArea: func(primitive.ObjectID) error {
			t.Error("completeArea must not be called after a failed insert")
			return nil
		},
		reopenArea: func(primitive.ObjectID) error {
			reopened = true
			return nil
		},
	}

	if _, err := cc.CommitClaim(context.Background(), testCommitRequest()); !errors.Is(err, insertErr) {
		t.Fatalf("expected the insert error, got %v", err)
	}
	if !reopened {
		t.Fatal("area must be reopened when the claim record cannot be written")
	}
}

func TestClaimCommitterStopsOnLostRace(t *testing.T) {
	cc := &claimCommitter{
		claimArea: func(primitive.ObjectID) error { return models.ErrAreaNotAvailable },
		insertClaim: func(context.Context, models.CleanupClaim) error {
			t.Error("insertClaim must not be called after a lost race")
			return nil
		},
		completeArea: func(primitive.ObjectID) error {
			t.Error("completeArea must not be called after a lost race")
			return nil
		},
		reopenArea: func(primitive.ObjectID) error {
			t.Error("reopenArea must not be called after a lost race")
			return nil
		},
	}

	if _, err := cc.CommitClaim(context.Background(), testCommitRequest()); !errors.Is(err, models.ErrAreaNotAvailable) {
		t.Fatalf("expected ErrAreaNotAvailable, got %v", err)
	}
}

func TestClaimCommitterRejectsMalformedIDs(t *testing.T) {
	cc := &claimCommitter{
		claimArea: func(primitive.ObjectID) error {
			t.Error("claimArea must not be called with malformed IDs")
			return nil
		},
	}

	req := testCommitRequest()
	req.AreaID = "not-an-object-id"
	if _, err := cc.CommitClaim(context.Background(), req); err == nil {
		t.Fatal("expected an error for a malformed area ID")
	}
}
