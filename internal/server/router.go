package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/medscribe-backend/internal/handlers"
)

type RouterConfig struct {
	GenerateHandler *handlers.GenerateHandler
	SearchHandler   *handlers.SearchHandler
	OTelEnabled     bool
	ServiceName     string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-Requested-With"},
	}))

	if cfg.OTelEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "medscribe"
		}
		router.Use(otelgin.Middleware(name))
	}

	router.GET("/", handlers.Root)
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/generate", cfg.GenerateHandler.Generate)
	router.GET("/search", cfg.SearchHandler.Search)

	return router
}
