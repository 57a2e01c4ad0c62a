package web

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "newsrank/docs" // registers the API description
)

const swaggerIndex = "/swagger/index.html"

// SwaggerServer serves the interactive API documentation.
type SwaggerServer struct {
	enabled bool
	logger  *slog.Logger
}

func NewSwaggerServer(enabled bool, logger *slog.Logger) *SwaggerServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SwaggerServer{enabled: enabled, logger: logger}
}

func (s *SwaggerServer) RegisterRoutes(router *gin.Engine) {
	if !s.enabled {
		s.logger.Debug("swagger UI disabled")
		return
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.DocExpansion("list"),
		ginSwagger.DefaultModelsExpandDepth(-1)))
	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, swaggerIndex)
	})
	s.logger.Debug("swagger UI registered", "path", swaggerIndex)
}
