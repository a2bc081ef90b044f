package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pos-service/controllers"
	"pos-service/middleware"
)

// RegisterPOSRoutes wires the checkout engine's HTTP surface.
func RegisterPOSRoutes(r *gin.Engine, controller *controllers.POSController) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/pos")
	api.Use(middleware.RateLimit())
	api.Use(middleware.OrgContext())
	{
		api.GET("/cart", controller.GetCart)
		api.POST("/cart/lines", controller.AddLine)
		api.PATCH("/cart/lines/:id", controller.UpdateLine)
		api.DELETE("/cart/lines/:id", controller.RemoveLine)
		api.DELETE("/cart", controller.ClearCart)

		api.GET("/search", controller.Search)
		api.GET("/products/:id/batches", controller.ListBatches)

		api.POST("/prescriptions/import", controller.ImportPrescription)
		api.POST("/checkout", controller.Checkout)
	}
}
