package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutor-llm/internal/service"
)

// KnowledgeHandler expone la base compartida y la via legada de evaluacion.
type KnowledgeHandler struct {
	logger      *zap.Logger
	knowledge   *service.KnowledgeService
	assessments *service.AssessmentService
}

func NewKnowledgeHandler(logger *zap.Logger, knowledge *service.KnowledgeService, assessments *service.AssessmentService) *KnowledgeHandler {
	return &KnowledgeHandler{
		logger:      logger,
		knowledge:   knowledge,
		assessments: assessments,
	}
}

// SearchMisconceptions maneja GET /misconceptions/search?topic=...&subject=...&k=...
func (h *KnowledgeHandler) SearchMisconceptions(c *gin.Context) {
	topic := c.Query("topic")
	if topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
		return
	}
	k, _ := strconv.Atoi(c.DefaultQuery("k", "3"))

	results, err := h.knowledge.SearchForTopic(c.Request.Context(), topic, c.Query("subject"), k)
	if err != nil {
		h.logger.Error("knowledge search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not search misconceptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SynthesizeMisconceptions maneja POST /misconceptions/synthesize.
func (h *KnowledgeHandler) SynthesizeMisconceptions(c *gin.Context) {
	var req struct {
		Topic   string `json:"topic" binding:"required"`
		Subject string `json:"subject" binding:"required"`
		Count   int    `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	inserted, err := h.knowledge.SynthesizeForTopic(c.Request.Context(), req.Topic, req.Subject, req.Count)
	if err != nil {
		h.logger.Error("misconception synthesis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not synthesize misconceptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": inserted})
}

// ScoreAssessment maneja POST /assessments/score: la via legada que puntua las
// 8 dimensiones de una vez. Siempre responde un vector, neutral ante fallas.
func (h *KnowledgeHandler) ScoreAssessment(c *gin.Context) {
	var req struct {
		Responses []service.AssessmentResponse `json:"responses" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	traits := h.assessments.ScoreResponses(c.Request.Context(), req.Responses)
	c.JSON(http.StatusOK, gin.H{"traits": traits})
}
