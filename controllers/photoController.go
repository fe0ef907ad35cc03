package controllers

import (
	"fmt"
	"net/http"
	"path"
	"time"

	"ecohunt-be/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxPhotoSize = 10 << 20 // 10 MiB

const photoURLExpiry = 7 * 24 * time.Hour

// UploadPhoto stores a before/after photo in the photo bucket and returns
// a presigned URL clients pass back as a photo reference.
func UploadPhoto(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	if fileHeader.Size > maxPhotoSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo exceeds the 10MB limit"})
		return
	}

	ext := path.Ext(fileHeader.Filename)
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported photo format"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read photo"})
		return
	}
	defer file.Close()

	objectName := fmt.Sprintf("photos/%s/%s%s", userID.(string), primitive.NewObjectID().Hex(), ext)

	url, err := services.UploadPhotoAndPresign(objectName, file, photoURLExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"object": objectName,
		"url":    url,
	})
}
