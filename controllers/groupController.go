package controllers

import (
	"context"
	"crypto/rand"
	"net/http"
	"sort"
	"time"

	"ecohunt-be/config"
	"ecohunt-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newInviteCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return "ECO-" + string(buf), nil
}

// CreateGroup creates a group with the acting user as its first admin
func CreateGroup(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	createdByID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input struct {
		Name        string `json:"name" binding:"required,max=100"`
		Description string `json:"description" binding:"max=500"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inviteCode, err := newInviteCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate invite code"})
		return
	}

	group := models.Group{
		ID:          primitive.NewObjectID(),
		Name:        input.Name,
		Description: input.Description,
		InviteCode:  inviteCode,
		CreatedBy:   createdByID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	groupCollection := config.GetCollection("groups")
	memberCollection := config.GetCollection("group_members")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := groupCollection.InsertOne(ctx, group); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create group"})
		return
	}

	member := models.GroupMember{
		ID:       primitive.NewObjectID(),
		GroupID:  group.ID,
		UserID:   createdByID,
		Role:     models.RoleAdmin,
		JoinedAt: time.Now(),
	}
	if _, err := memberCollection.InsertOne(ctx, member); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add admin to group"})
		return
	}

	c.JSON(http.StatusCreated, group)
}

// GetMyGroups lists the groups the acting user belongs to
func GetMyGroups(c *gin.Context) {
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

	groupCollection := config.GetCollection("groups")
	memberCollection := config.GetCollection("group_members")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := memberCollection.Find(ctx, bson.M{"user": userObjID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch groups"})
		return
	}
	defer cursor.Close(ctx)

	var memberships []models.GroupMember
	if err := cursor.All(ctx, &memberships); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode memberships"})
		return
	}

	type GroupWithMeta struct {
		models.Group
		MemberCount int64             `json:"memberCount"`
		UserRole    models.MemberRole `json:"userRole"`
	}

	groups := make([]GroupWithMeta, 0, len(memberships))
	for _, membership := range memberships {
		var group models.Group
		if err := groupCollection.FindOne(ctx, bson.M{"_id": membership.GroupID}).Decode(&group); err != nil {
			continue
		}

		memberCount, err := memberCollection.CountDocuments(ctx, bson.M{"group": group.ID})
		if err != nil {
			memberCount = 0
		}

		groups = append(groups, GroupWithMeta{
			Group:       group,
			MemberCount: memberCount,
			UserRole:    membership.Role,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": groups})
}

// JoinGroup adds the acting user to a group by invite code
func JoinGroup(c *gin.Context) {
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

	var input struct {
		InviteCode string `json:"inviteCode" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupCollection := config.GetCollection("groups")
	memberCollection := config.GetCollection("group_members")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var group models.Group
	err = groupCollection.FindOne(ctx, bson.M{"inviteCode": input.InviteCode}).Decode(&group)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid invite code"})
		return
	}

	count, err := memberCollection.CountDocuments(ctx, bson.M{"group": group.ID, "user": userObjID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You are already a member of this group"})
		return
	}

	member := models.GroupMember{
		ID:       primitive.NewObjectID(),
		GroupID:  group.ID,
		UserID:   userObjID,
		Role:     models.RoleMember,
		JoinedAt: time.Now(),
	}

	if _, err := memberCollection.InsertOne(ctx, member); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group":      group,
		"membership": member,
		"message":    "Successfully joined " + group.Name,
	})
}

// GetGroup returns a group's details with its members embedded
func GetGroup(c *gin.Context) {
	groupID, _, ok := requireMembership(c)
	if !ok {
		return
	}

	groupCollection := config.GetCollection("groups")
	memberCollection := config.GetCollection("group_members")
	userCollection := config.GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var group models.Group
	if err := groupCollection.FindOne(ctx, bson.M{"_id": groupID}).Decode(&group); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	cursor, err := memberCollection.Find(ctx, bson.M{"group": groupID}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	defer cursor.Close(ctx)

	var members []models.GroupMember
	if err := cursor.All(ctx, &members); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode members"})
		return
	}

	type MemberWithProfile struct {
		models.GroupMember
		Profile map[string]interface{} `json:"profile"`
	}

	embedded := make([]MemberWithProfile, 0, len(members))
	for _, m := range members {
		profileMap := map[string]interface{}{"id": m.UserID}
		var profile models.User
		if err := userCollection.FindOne(ctx, bson.M{"_id": m.UserID}).Decode(&profile); err == nil {
			profileMap["username"] = profile.Username
			profileMap["avatarUrl"] = profile.AvatarURL
			profileMap["totalPoints"] = profile.TotalPoints
		}
		embedded = append(embedded, MemberWithProfile{GroupMember: m, Profile: profileMap})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"group":   group,
			"members": embedded,
		},
	})
}

// UpdateGroup updates a group's name and description. Admin only.
func UpdateGroup(c *gin.Context) {
	groupID, acting, ok := requireMembership(c)
	if !ok {
		return
	}

	if acting.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var input struct {
		Name        *string `json:"name,omitempty" binding:"omitempty,max=100"`
		Description *string `json:"description,omitempty" binding:"omitempty,max=500"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := bson.M{"updatedAt": time.Now()}
	if input.Name != nil {
		update["name"] = *input.Name
	}
	if input.Description != nil {
		update["description"] = *input.Description
	}

	groupCollection := config.GetCollection("groups")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := groupCollection.UpdateOne(ctx, bson.M{"_id": groupID}, bson.M{"$set": update}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group updated successfully"})
}

// GetGroupAreas lists the cleanup areas reported by the group's members,
// newest first
func GetGroupAreas(c *gin.Context) {
	groupID, _, ok := requireMembership(c)
	if !ok {
		return
	}

	memberCollection := config.GetCollection("group_members")
	areaCollection := config.GetCollection("areas")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := memberCollection.Find(ctx, bson.M{"group": groupID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	defer cursor.Close(ctx)

	var members []models.GroupMember
	if err := cursor.All(ctx, &members); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode members"})
		return
	}

	memberIDs := make([]primitive.ObjectID, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.UserID)
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	areaCursor, err := areaCollection.Find(ctx, bson.M{"reportedBy": bson.M{"$in": memberIDs}}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch group areas"})
		return
	}
	defer areaCursor.Close(ctx)

	var areas []models.CleanupArea
	if err := areaCursor.All(ctx, &areas); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode group areas"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": areas})
}

// GetGroupMembers lists a group's members with profiles, ordered by join time
func GetGroupMembers(c *gin.Context) {
	groupID, _, ok := requireMembership(c)
	if !ok {
		return
	}

	memberCollection := config.GetCollection("group_members")
	userCollection := config.GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	cursor, err := memberCollection.Find(ctx, bson.M{"group": groupID}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	defer cursor.Close(ctx)

	var members []models.GroupMember
	if err := cursor.All(ctx, &members); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode members"})
		return
	}

	type MemberWithProfile struct {
		models.GroupMember
		Profile map[string]interface{} `json:"profile"`
	}

	result := make([]MemberWithProfile, 0, len(members))
	for _, m := range members {
		profileMap := map[string]interface{}{"id": m.UserID}
		var profile models.User
		if err := userCollection.FindOne(ctx, bson.M{"_id": m.UserID}).Decode(&profile); err == nil {
			profileMap["username"] = profile.Username
			profileMap["avatarUrl"] = profile.AvatarURL
			profileMap["totalPoints"] = profile.TotalPoints
		}
		result = append(result, MemberWithProfile{GroupMember: m, Profile: profileMap})
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GetGroupLeaderboard ranks group members by lifetime points
func GetGroupLeaderboard(c *gin.Context) {
	groupID, _, ok := requireMembership(c)
	if !ok {
		return
	}

	memberCollection := config.GetCollection("group_members")
	userCollection := config.GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := memberCollection.Find(ctx, bson.M{"group": groupID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leaderboard"})
		return
	}
	defer cursor.Close(ctx)

	var members []models.GroupMember
	if err := cursor.All(ctx, &members); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode members"})
		return
	}

	type LeaderboardEntry struct {
		UserID      primitive.ObjectID `json:"userId"`
		Username    string             `json:"username"`
		AvatarURL   *string            `json:"avatarUrl,omitempty"`
		TotalPoints int                `json:"totalPoints"`
		Rank        int                `json:"rank"`
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for _, m := range members {
		var profile models.User
		if err := userCollection.FindOne(ctx, bson.M{"_id": m.UserID}).Decode(&profile); err != nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			UserID:      m.UserID,
			Username:    profile.Username,
			AvatarURL:   profile.AvatarURL,
			TotalPoints: profile.TotalPoints,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// RemoveMember removes a member from a group. Admin only; removing the
// last admin is rejected so the group is never left without one.
func RemoveMember(c *gin.Context) {
	groupID, acting, ok := requireMembership(c)
	if !ok {
		return
	}

	if acting.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var input struct {
		UserID string `json:"userId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	removeObjID, err := primitive.ObjectIDFromHex(input.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	memberCollection := config.GetCollection("group_members")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var target models.GroupMember
	err = memberCollection.FindOne(ctx, bson.M{"group": groupID, "user": removeObjID}).Decode(&target)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	if target.Role == models.RoleAdmin {
		adminCount, err := memberCollection.CountDocuments(ctx, bson.M{"group": groupID, "role": models.RoleAdmin})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count admins"})
			return
		}
		if adminCount <= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove the last admin"})
			return
		}
	}

	if _, err := memberCollection.DeleteOne(ctx, bson.M{"group": groupID, "user": removeObjID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// requireMembership resolves the group from the URL and verifies the acting
// user belongs to it
func requireMembership(c *gin.Context) (primitive.ObjectID, models.GroupMember, bool) {
	var zero models.GroupMember

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return primitive.NilObjectID, zero, false
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return primitive.NilObjectID, zero, false
	}

	groupID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return primitive.NilObjectID, zero, false
	}

	memberCollection := config.GetCollection("group_members")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var membership models.GroupMember
	err = memberCollection.FindOne(ctx, bson.M{"group": groupID, "user": userObjID}).Decode(&membership)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied - not a group member"})
		return primitive.NilObjectID, zero, false
	}

	return groupID, membership, true
}
