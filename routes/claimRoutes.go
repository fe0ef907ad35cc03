package routes

import (
	"ecohunt-be/controllers"
	"ecohunt-be/middlewares"

	"github.com/gin-gonic/gin"
)

// ClaimRoutes sets up the claiming flow routes
func ClaimRoutes(r *gin.Engine) {
	claim := r.Group("/api/claims", middlewares.AuthMiddleware())
	{
		claim.POST("/start", controllers.StartClaim)
		claim.GET("/mine", controllers.GetMyClaims)
		claim.GET("/:id", controllers.GetClaimSession)
		claim.POST("/:id/collaborators", controllers.ToggleCollaborator)
		claim.POST("/:id/photo", controllers.SubmitAfterPhoto)
		claim.DELETE("/:id/photo", controllers.DiscardAfterPhoto)
		claim.POST("/:id/next", controllers.NextStep)
		claim.POST("/:id/back", controllers.BackStep)
		claim.POST("/:id/complete", controllers.CompleteClaim)
		claim.DELETE("/:id", controllers.CancelClaim)
	}
}
