package routes

import (
	"ecohunt-be/controllers"
	"ecohunt-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AreaRoutes sets up the cleanup area routes
func AreaRoutes(r *gin.Engine) {
	area := r.Group("/api/areas")
	{
		area.POST("", middlewares.AuthMiddleware(), middlewares.ReportRateLimiter(10), controllers.ReportArea)
		area.GET("", controllers.GetAllAreas)
		area.GET("/:id", controllers.GetArea)
		area.PUT("/:id", middlewares.AuthMiddleware(), controllers.UpdateArea)
	}
}
