package routes

import (
	"ecohunt-be/controllers"
	"ecohunt-be/middlewares"

	"github.com/gin-gonic/gin"
)

// UserRoutes sets up the user profile routes
func UserRoutes(r *gin.Engine) {
	user := r.Group("/api/users", middlewares.AuthMiddleware())
	{
		user.GET("/me/areas", controllers.GetMyAreas)
		user.PUT("/me", controllers.UpdateProfile)
	}

	photo := r.Group("/api/photos", middlewares.AuthMiddleware())
	{
		photo.POST("", controllers.UploadPhoto)
	}
}
