package routes

import (
	"ecohunt-be/controllers"
	"ecohunt-be/middlewares"

	"github.com/gin-gonic/gin"
)

// GroupRoutes sets up the social group routes
func GroupRoutes(r *gin.Engine) {
	group := r.Group("/api/groups", middlewares.AuthMiddleware())
	{
		group.POST("", controllers.CreateGroup)
		group.GET("", controllers.GetMyGroups)
		group.POST("/join", controllers.JoinGroup)
		group.GET("/:id", controllers.GetGroup)
		group.PUT("/:id", controllers.UpdateGroup)
		group.GET("/:id/areas", controllers.GetGroupAreas)
		group.GET("/:id/members", controllers.GetGroupMembers)
		group.GET("/:id/leaderboard", controllers.GetGroupLeaderboard)
		group.DELETE("/:id/members", controllers.RemoveMember)
	}
}
