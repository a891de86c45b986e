package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(
	logger *zap.Logger,
	learnerH *LearnerHandler,
	knowledgeH *KnowledgeHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	learners := r.Group("/learners")
	learners.POST("", learnerH.CreateLearner)
	learners.POST("/:id/submissions", learnerH.SubmitQuiz)
	learners.GET("/:id/profile", learnerH.GetProfile)
	learners.GET("/:id/misconceptions", learnerH.ListMisconceptions)
	learners.GET("/:id/progress", learnerH.GetProgress)

	misconceptions := r.Group("/misconceptions")
	misconceptions.GET("/search", knowledgeH.SearchMisconceptions)
	misconceptions.POST("/synthesize", knowledgeH.SynthesizeMisconceptions)

	r.POST("/assessments/score", knowledgeH.ScoreAssessment)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
