package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/shotlens/internal/api/handler"
	"github.com/timmy/shotlens/internal/api/middleware"
	"github.com/timmy/shotlens/internal/logger"
)

// Handlers groups the endpoint handlers mounted by SetupRouter.
type Handlers struct {
	Health     *handler.HealthHandler
	Screenshot *handler.ScreenshotHandler
	Search     *handler.SearchHandler
	Place      *handler.PlaceHandler
}

// RouterConfig holds router-level settings.
type RouterConfig struct {
	Mode string
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h *Handlers, cfg RouterConfig, log *logger.Logger) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/health", h.Health.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Health.Health)

		screenshots := v1.Group("/screenshots")
		screenshots.POST("/process", h.Screenshot.Process)
		screenshots.GET("", h.Screenshot.List)
		screenshots.GET("/:id", h.Screenshot.Get)
		screenshots.GET("/:id/image", h.Screenshot.Image)
		screenshots.GET("/:id/thumbnail", h.Screenshot.Thumbnail)
		screenshots.GET("/:id/places", h.Screenshot.Places)
		screenshots.POST("/:id/geocode", h.Screenshot.Geocode)
		screenshots.POST("/:id/enrich", h.Screenshot.Enrich)

		v1.GET("/search", h.Search.Search)

		places := v1.Group("/places")
		places.GET("", h.Place.List)
		places.GET("/clusters", h.Place.Clusters)
		places.GET("/clusters/:id", h.Place.Cluster)
		places.GET("/region", h.Place.Region)
	}

	return r
}
