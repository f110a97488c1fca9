package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/palantir/product-attribute-enrichment/internal/config"
	"go.uber.org/zap"
)

// SetupRouter creates the gin engine serving the product API.
func SetupRouter(cfg config.ServerConfig, handler *Handler, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/", handler.Root)
	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	{
		products := api.Group("/products", OwnerMiddleware())
		{
			products.POST("/", handler.CreateProduct)
			products.GET("/", handler.ListProducts)
			products.DELETE("/bulk-delete", handler.DeleteProducts)
			products.PUT("/enrich", handler.EnrichProducts)
		}
	}

	return router
}
