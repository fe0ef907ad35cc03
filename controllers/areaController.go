package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"ecohunt-be/config"
	"ecohunt-be/models"
	"ecohunt-be/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var visionService = services.NewVisionVerifier()

// reportAreaInput is the POST /api/areas payload. Latitude and longitude
// are pointers: zero is a valid coordinate on both axes, and gin's
// validator would treat a plain float64 zero as missing.
type reportAreaInput struct {
	Latitude            *float64 `json:"latitude" binding:"required"`
	Longitude           *float64 `json:"longitude" binding:"required"`
	Description         string   `json:"description" binding:"required,max=1000"`
	Severity            *string  `json:"severity,omitempty"`
	CleanupInstructions *string  `json:"cleanupInstructions,omitempty"`
	PhotosBefore        []string `json:"photosBefore" binding:"required,min=1"`
}

// ReportArea handles the creation of a new cleanup area. Severity can be
// set manually; when omitted, the before-photo is sent to the analysis
// service, falling back to low severity if the AI is unavailable.
func ReportArea(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	reportedByID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input reportAreaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	severity := models.SeverityLow
	instructions := ""
	if input.Severity != nil {
		if !models.ValidSeverity(*input.Severity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid severity"})
			return
		}
		severity = models.Severity(*input.Severity)
	} else {
		analyzed, suggested, err := visionService.AnalyzeReport(c.Request.Context(), input.PhotosBefore[0])
		if err != nil {
			// Reporting must not fail because the AI is down
			log.Println("Severity analysis unavailable, defaulting to low:", err)
		} else {
			severity = analyzed
			instructions = suggested
		}
	}
	if input.CleanupInstructions != nil {
		instructions = *input.CleanupInstructions
	}

	area := models.CleanupArea{
		ID:                  primitive.NewObjectID(),
		Location:            models.NewGeoPoint(*input.Latitude, *input.Longitude),
		Severity:            severity,
		Status:              models.AreaAvailable,
		Description:         input.Description,
		CleanupInstructions: instructions,
		PhotosBefore:        input.PhotosBefore,
		ReportedBy:          reportedByID,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}

	areaCollection := config.GetCollection("areas")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = areaCollection.InsertOne(ctx, area)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to report area"})
		return
	}

	c.JSON(http.StatusCreated, area)
}

// GetAllAreas handles retrieving areas with filtering and pagination
func GetAllAreas(c *gin.Context) {
	areaCollection := config.GetCollection("areas")
	userCollection := config.GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	severity := c.Query("severity")
	status := c.Query("status")
	sort := c.DefaultQuery("sort", "newest")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := bson.M{}

	if severity != "" && severity != "all" {
		filter["severity"] = severity
	}

	if status != "" && status != "all" {
		filter["status"] = status
	}

	skip := (page - 1) * limit

	var sortOptions bson.D
	switch sort {
	case "oldest":
		sortOptions = bson.D{{Key: "createdAt", Value: 1}}
	case "newest":
		fallthrough
	default:
		sortOptions = bson.D{{Key: "createdAt", Value: -1}}
	}

	totalCount, err := areaCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count areas"})
		return
	}

	findOptions := options.Find().
		SetSort(sortOptions).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := areaCollection.Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve areas"})
		return
	}
	defer cursor.Close(ctx)

	var areas []models.CleanupArea
	if err := cursor.All(ctx, &areas); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode areas"})
		return
	}

	type AreaWithPoints struct {
		models.CleanupArea
		Points   int                    `json:"points"`
		Reporter map[string]interface{} `json:"reporter"`
	}

	areasWithPoints := make([]AreaWithPoints, 0, len(areas))
	for _, area := range areas {
		reporterMap := map[string]interface{}{"id": area.ReportedBy}
		var reporter models.User
		if err := userCollection.FindOne(ctx, bson.M{"_id": area.ReportedBy}).Decode(&reporter); err == nil {
			reporterMap["username"] = reporter.Username
		}

		areasWithPoints = append(areasWithPoints, AreaWithPoints{
			CleanupArea: area,
			Points:      models.PointsForSeverity(area.Severity),
			Reporter:    reporterMap,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    areasWithPoints,
		"count":   totalCount,
		"page":    page,
		"limit":   limit,
		"hasMore": int64(page*limit) < totalCount,
	})
}

// GetArea retrieves a single area by ID
func GetArea(c *gin.Context) {
	idParam := c.Param("id")
	areaID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area ID"})
		return
	}

	areaCollection := config.GetCollection("areas")
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

	c.JSON(http.StatusOK, gin.H{
		"data":   area,
		"points": models.PointsForSeverity(area.Severity),
	})
}

// UpdateArea allows the reporter of an area to update its details. Status
// is deliberately not editable here: it only moves through the claiming
// flow's compare-and-set helpers.
func UpdateArea(c *gin.Context) {
	idParam := c.Param("id")
	areaID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area ID"})
		return
	}

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
		Description         *string `json:"description,omitempty"`
		CleanupInstructions *string `json:"cleanupInstructions,omitempty"`
		Severity            *string `json:"severity,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	areaCollection := config.GetCollection("areas")
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

	if area.ReportedBy != userObjID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to update this area"})
		return
	}

	update := bson.M{"updatedAt": time.Now()}
	if input.Description != nil {
		update["description"] = *input.Description
	}
	if input.CleanupInstructions != nil {
		update["cleanupInstructions"] = *input.CleanupInstructions
	}
	if input.Severity != nil {
		if !models.ValidSeverity(*input.Severity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid severity"})
			return
		}
		if area.Status != models.AreaAvailable {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Severity is fixed once a claim is underway"})
			return
		}
		update["severity"] = *input.Severity
	}

	_, err = areaCollection.UpdateOne(ctx, bson.M{"_id": areaID}, bson.M{"$set": update})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update area"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Area updated successfully"})
}
