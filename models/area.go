package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Severity enum
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// AreaStatus enum. Status only ever moves forward:
// available -> claimed -> completed.
type AreaStatus string

const (
	AreaAvailable AreaStatus = "available"
	AreaClaimed   AreaStatus = "claimed"
	AreaCompleted AreaStatus = "completed"
)

// ErrAreaNotAvailable is returned when a status transition loses the race
// against another claim on the same area.
var ErrAreaNotAvailable = errors.New("area is not available for claiming")

// PointsForSeverity is the sole scoring rule. Unrecognized severities fall
// back to the low-severity value.
func PointsForSeverity(severity Severity) int {
	switch severity {
	case SeverityHigh:
		return 150
	case SeverityMedium:
		return 100
	case SeverityLow:
		return 50
	default:
		return 50
	}
}

// ValidSeverity reports whether s is one of the known severity levels.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// GeoPoint is a GeoJSON point, longitude first per the spec Mongo follows.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// CleanupArea represents a reported location requiring cleanup
type CleanupArea struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Location            GeoPoint           `bson:"location" json:"location"`
	Severity            Severity           `bson:"severity" json:"severity"`
	Status              AreaStatus         `bson:"status" json:"status"`
	Description         string             `bson:"description" json:"description"`
	CleanupInstructions string             `bson:"cleanupInstructions,omitempty" json:"cleanupInstructions,omitempty"`
	PhotosBefore        []string           `bson:"photosBefore" json:"photosBefore"`
	ReportedBy          primitive.ObjectID `bson:"reportedBy" json:"reportedBy"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ClaimAreaForCompletion transitions an area available -> claimed with a
// compare-and-set on the current status, so at most one claim ever wins.
// Returns ErrAreaNotAvailable when another claim got there first.
func ClaimAreaForCompletion(collection *mongo.Collection, areaID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := collection.FindOneAndUpdate(ctx,
		bson.M{"_id": areaID, "status": AreaAvailable},
		bson.M{"$set": bson.M{"status": AreaClaimed, "updatedAt": time.Now()}},
	)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrAreaNotAvailable
		}
		return err
	}
	return nil
}

// ReopenArea reverts a claimed area back to available. Used when the claim
// record could not be written after the status was taken, so the area is
// not stranded in claimed with nothing behind it.
func ReopenArea(collection *mongo.Collection, areaID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.UpdateOne(ctx,
		bson.M{"_id": areaID, "status": AreaClaimed},
		bson.M{"$set": bson.M{"status": AreaAvailable, "updatedAt": time.Now()}},
	)
	return err
}

// CompleteArea transitions an area claimed -> completed.
func CompleteArea(collection *mongo.Collection, areaID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.UpdateOne(ctx,
		bson.M{"_id": areaID, "status": AreaClaimed},
		bson.M{"$set": bson.M{"status": AreaCompleted, "updatedAt": time.Now()}},
	)
	return err
}

// EnsureAreaIndexes creates the geospatial and status indexes for areas
func EnsureAreaIndexes(collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes, options.CreateIndexes())
	return err
}
