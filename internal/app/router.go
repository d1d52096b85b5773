package app

import (
	"github.com/gin-gonic/gin"
	"github.com/like-Ocean/AI-Classes/docs"
	"github.com/like-Ocean/AI-Classes/internal/config"
	"github.com/like-Ocean/AI-Classes/internal/middleware"
	"github.com/like-Ocean/AI-Classes/pkg/monitoring"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. public
	router.GET("/api/health", c.health.HealthCheck)

	// 2. authenticated
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(r *gin.RouterGroup, c *controllers) {
	test := r.Group("/courses/:courseId/modules/:moduleId/materials/:materialId/tests/:testId")
	{
		test.GET("", c.testAttempt.GetTest)
		test.POST("/attempts", c.testAttempt.Start)
		test.GET("/attempts", c.testAttempt.ListMine)
		test.POST("/attempts/:attemptId/answers", c.testAttempt.SubmitAnswer)
		test.POST("/attempts/:attemptId/finish", c.testAttempt.Finish)
	}

	r.GET("/attempts/:attemptId/result", c.testAttempt.GetResult)
}
