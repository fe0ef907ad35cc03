package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"ecohunt-be/config"
	"ecohunt-be/models"
	"ecohunt-be/workflow"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var claimSessions = workflow.NewManager(workflow.DefaultSessionTTL)

const claimHoldPrefix = "ecohunt:claim-hold:"

// claimCommitter persists a finished claim: CAS the area out of available,
// insert the claim record, then mark the area completed. The persistence
// steps are injectable so the sequencing is testable without a database.
type claimCommitter struct {
	claimArea    func(areaID primitive.ObjectID) error
	insertClaim  func(ctx context.Context, claim models.CleanupClaim) error
	completeArea func(areaID primitive.ObjectID) error
	reopenArea   func(areaID primitive.ObjectID) error
}

func newClaimCommitter() *claimCommitter {
	return &claimCommitter{
		claimArea: func(areaID primitive.ObjectID) error {
			return models.ClaimAreaForCompletion(config.GetCollection("areas"), areaID)
		},
		insertClaim: func(ctx context.Context, claim models.CleanupClaim) error {
			dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			_, err := config.GetCollection("claims").InsertOne(dbCtx, claim)
			return err
		},
		completeArea: func(areaID primitive.ObjectID) error {
			return models.CompleteArea(config.GetCollection("areas"), areaID)
		},
		reopenArea: func(areaID primitive.ObjectID) error {
			return models.ReopenArea(config.GetCollection("areas"), areaID)
		},
	}
}

func (cc *claimCommitter) CommitClaim(ctx context.Context, req workflow.CommitRequest) (string, error) {
	areaID, err := primitive.ObjectIDFromHex(req.AreaID)
	if err != nil {
		return "", err
	}
	claimerID, err := primitive.ObjectIDFromHex(req.ClaimerID)
	if err != nil {
		return "", err
	}

	collaborators := make([]primitive.ObjectID, 0, len(req.CollaboratorIDs))
	for _, id := range req.CollaboratorIDs {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return "", err
		}
		collaborators = append(collaborators, objID)
	}

	// The compare-and-set is the authoritative guard against two claims
	// racing on one area.
	if err := cc.claimArea(areaID); err != nil {
		return "", err
	}

	now := time.Now()
	score := req.QualityScore
	claim := models.CleanupClaim{
		ID:            primitive.NewObjectID(),
		AreaID:        areaID,
		ClaimedBy:     claimerID,
		Collaborators: collaborators,
		Status:        models.ClaimCompleted,
		PhotosAfter:   req.PhotosAfter,
		QualityScore:  &score,
		PointsEarned:  req.PointsPerPerson,
		ClaimedAt:     now,
		CompletedAt:   &now,
		VerifiedAt:    &now,
	}

	if err := cc.insertClaim(ctx, claim); err != nil {
		// Put the area back so it is not stranded in claimed with no
		// claim record behind it.
		if reopenErr := cc.reopenArea(areaID); reopenErr != nil {
			log.Println("Error reopening area after failed claim insert:", reopenErr)
		}
		return "", err
	}

	if err := cc.completeArea(areaID); err != nil {
		log.Println("Error marking area completed:", err)
	}

	return claim.ID.Hex(), nil
}

// mongoLedger credits points against user profiles.
type mongoLedger struct{}

func (mongoLedger) IncrementPoints(ctx context.Context, userID string, points int) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return err
	}
	return models.IncrementUserPoints(config.GetCollection("users"), objID, points)
}

// StartClaim opens a claiming flow against an available area. The acting
// user must belong to the given group; its roster (minus the acting user)
// becomes the eligible collaborator list. A Redis hold discourages two
// users from working the same area at once, while the commit-time CAS
// remains the hard guarantee.
func StartClaim(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	actingUserID := userID.(string)

	actingObjID, err := primitive.ObjectIDFromHex(actingUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input struct {
		AreaID  string `json:"areaId" binding:"required"`
		GroupID string `json:"groupId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	areaID, err := primitive.ObjectIDFromHex(input.AreaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area ID"})
		return
	}
	groupID, err := primitive.ObjectIDFromHex(input.GroupID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	areaCollection := config.GetCollection("areas")
	memberCollection := config.GetCollection("group_members")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var area models.CleanupArea
	err = areaCollection.FindOne(ctx, bson.M{"_id": areaID}).Decode(&area)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Area not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve area"})
		}
		return
	}
	if area.Status != models.AreaAvailable {
		c.JSON(http.StatusConflict, gin.H{"error": "Area is not available for claiming"})
		return
	}

	count, err := memberCollection.CountDocuments(ctx, bson.M{"group": groupID, "user": actingObjID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check group membership"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied - not a group member"})
		return
	}

	roster, err := groupRoster(ctx, groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load group members"})
		return
	}

	// Advisory hold: an expired hold is fine, the commit CAS still wins.
	holdKey := claimHoldPrefix + input.AreaID
	held, err := config.RedisClient.SetNX(config.Ctx, holdKey, actingUserID, workflow.DefaultSessionTTL).Result()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redis error acquiring claim hold"})
		return
	}
	if !held {
		holder, _ := config.RedisClient.Get(config.Ctx, holdKey).Result()
		if holder != actingUserID {
			c.JSON(http.StatusConflict, gin.H{"error": "Another user is already cleaning this area"})
			return
		}
	}

	before := ""
	if len(area.PhotosBefore) > 0 {
		before = area.PhotosBefore[0]
	}

	flow, err := workflow.New(workflow.Config{
		AreaID:       input.AreaID,
		AreaSeverity: area.Severity,
		AreaStatus:   area.Status,
		BeforePhoto:  before,
		ActingUserID: actingUserID,
		Roster:       roster,
		Verifier:     visionService,
		Committer:    newClaimCommitter(),
		Ledger:       mongoLedger{},
	})
	if err != nil {
		releaseClaimHold(input.AreaID, actingUserID)
		c.JSON(statusForFlowError(err), gin.H{"error": err.Error()})
		return
	}

	sessionID, err := claimSessions.Add(flow)
	if err != nil {
		releaseClaimHold(input.AreaID, actingUserID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start claiming session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"sessionId":             sessionID,
		"step":                  flow.Step(),
		"eligibleCollaborators": flow.EligibleCollaborators(),
		"points":                models.PointsForSeverity(area.Severity),
		"pointsPerPerson":       flow.ProjectedPerPersonPoints(),
	})
}

// GetClaimSession reports the current state of an open flow
func GetClaimSession(c *gin.Context) {
	flow, ok := sessionFlow(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"step":            flow.Step(),
		"collaborators":   flow.SelectedCollaborators(),
		"pointsPerPerson": flow.ProjectedPerPersonPoints(),
		"result":          flow.Result(),
		"canAdvance":      flow.CanAdvance(),
	})
}

// ToggleCollaborator adds or removes a collaborator during selection
func ToggleCollaborator(c *gin.Context) {
	flow, ok := sessionFlow(c)
	if !ok {
		return
	}

	var input struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := flow.ToggleCollaborator(input.UserID); err != nil {
		c.JSON(statusForFlowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"collaborators":   flow.SelectedCollaborators(),
		"pointsPerPerson": flow.ProjectedPerPersonPoints(),
	})
}

// SubmitAfterPhoto records the after-photo and runs verification. The
// request blocks on the verification call; the flow refuses navigation
// until the result is back.
func SubmitAfterPhoto(c *gin.Context) {
	flow, ok := sessionFlow(c)
	if !ok {
		return
	}

	var input struct {
		PhotoURL string `json:"photoUrl" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := flow.SubmitPhoto(c.Request.Context(), input.PhotoURL)
	if err != nil {
		c.JSON(statusForFlowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":     result,
		"canAdvance": flow.CanAdvance(),
	})
}

// DiscardAfterPhoto throws away the current photo so the user can retake
func DiscardAfterPhoto(c *gin.Context) {
	flow, ok := sessionFlow(c)
	if !ok {
		return
	}

	if err := flow.DiscardPhoto(); err != nil {
		c.JSON(statusForFlowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Photo discarded"})
}

// NextStep advances the flow one step
func NextStep(c *gin.Context) {
	flow, ok := sessionFlow(c)
	if !ok {
		return
	}

	if err := flow.Next(); err != nil {
		c.JSON(statusForFlowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"step": flow.Step()})
}

// BackStep returns the flow to the previous step
func BackStep(c *gin.Context) {
	flow, ok := sessionFlow(c)
	if !ok {
		return
	}

	if err := flow.Back(); err != nil {
		c.JSON(statusForFlowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"step": flow.Step()})
}

// CompleteClaim commits the claim from the terminal step: claim record,
// area completion, then best-effort point credits
func CompleteClaim(c *gin.Context) {
	sessionID := c.Param("id")
	flow, ok := sessionFlow(c)
	if !ok {
		return
	}

	outcome, err := flow.Finish(c.Request.Context())
	if err != nil {
		if errors.Is(err, models.ErrAreaNotAvailable) {
			claimSessions.Remove(sessionID)
			releaseClaimHold(flow.AreaID(), flow.ActingUserID())
			c.JSON(http.StatusConflict, gin.H{"error": "Area was already claimed by someone else"})
			return
		}
		c.JSON(statusForFlowError(err), gin.H{"error": err.Error()})
		return
	}

	claimSessions.Remove(sessionID)
	releaseClaimHold(flow.AreaID(), flow.ActingUserID())

	c.JSON(http.StatusOK, gin.H{
		"message": "Cleanup completed",
		"outcome": outcome,
	})
}

// CancelClaim abandons an open flow, discarding all transient progress.
// The area is untouched: nothing was persisted before the terminal commit.
func CancelClaim(c *gin.Context) {
	sessionID := c.Param("id")
	flow, ok := sessionFlow(c)
	if !ok {
		return
	}

	if err := flow.Cancel(); err != nil {
		c.JSON(statusForFlowError(err), gin.H{"error": err.Error()})
		return
	}

	claimSessions.Remove(sessionID)
	releaseClaimHold(flow.AreaID(), flow.ActingUserID())

	c.JSON(http.StatusOK, gin.H{"message": "Claim cancelled"})
}

// GetMyClaims lists claims the user completed or collaborated on
func GetMyClaims(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	claimCollection := config.GetCollection("claims")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{"$or": []bson.M{
		{"claimedBy": userObjID},
		{"collaborators": userObjID},
	}}

	findOptions := options.Find().SetSort(bson.D{{Key: "claimedAt", Value: -1}})
	cursor, err := claimCollection.Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve claims"})
		return
	}
	defer cursor.Close(ctx)

	var claims []models.CleanupClaim
	if err := cursor.All(ctx, &claims); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode claims"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": claims})
}

// sessionFlow resolves the session from the URL and enforces ownership
func sessionFlow(c *gin.Context) (*workflow.Flow, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	flow, err := claimSessions.Get(c.Param("id"), userID.(string))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return flow, true
}

// groupRoster loads a group's members with their profiles
func groupRoster(ctx context.Context, groupID primitive.ObjectID) ([]workflow.Collaborator, error) {
	memberCollection := config.GetCollection("group_members")
	userCollection := config.GetCollection("users")
	findOptions := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	cursor, err := memberCollection.Find(ctx, bson.M{"group": groupID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []models.GroupMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}

	roster := make([]workflow.Collaborator, 0, len(members))
	for _, member := range members {
		var profile models.User
		if err := userCollection.FindOne(ctx, bson.M{"_id": member.UserID}).Decode(&profile); err != nil {
			continue
		}
		roster = append(roster, workflow.Collaborator{
			UserID:      member.UserID.Hex(),
			Username:    profile.Username,
			TotalPoints: profile.TotalPoints,
		})
	}
	return roster, nil
}

// releaseClaimHold drops the advisory Redis hold if this user owns it
func releaseClaimHold(areaID, userID string) {
	holdKey := claimHoldPrefix + areaID
	holder, err := config.RedisClient.Get(config.Ctx, holdKey).Result()
	if err == nil && holder == userID {
		if err := config.RedisClient.Del(config.Ctx, holdKey).Err(); err != nil {
			log.Println("Error releasing claim hold:", err)
		}
	}
}

func statusForFlowError(err error) int {
	switch {
	case errors.Is(err, workflow.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrAreaUnavailable):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrInvalidStep),
		errors.Is(err, workflow.ErrVerificationNeeded),
		errors.Is(err, workflow.ErrNotInRoster),
		errors.Is(err, workflow.ErrAlreadySettled):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrVerificationPending):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrFlowFinished),
		errors.Is(err, workflow.ErrFlowCancelled):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
