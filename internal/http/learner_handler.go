package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/repository"
	"tutor-llm/internal/service"
)

// LearnerHandler mantiene dependencias para los endpoints de aprendices.
type LearnerHandler struct {
	logger         *zap.Logger
	learners       repository.LearnerRepository
	vectors        repository.TraitVectorRepository
	submissions    *service.SubmissionService
	misconceptions *service.MisconceptionService
}

func NewLearnerHandler(
	logger *zap.Logger,
	learners repository.LearnerRepository,
	vectors repository.TraitVectorRepository,
	submissions *service.SubmissionService,
	misconceptions *service.MisconceptionService,
) *LearnerHandler {
	return &LearnerHandler{
		logger:         logger,
		learners:       learners,
		vectors:        vectors,
		submissions:    submissions,
		misconceptions: misconceptions,
	}
}

// CreateLearner maneja POST /learners.
func (h *LearnerHandler) CreateLearner(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	learner := domain.Learner{
		ID:          uuid.NewString(),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.learners.Create(c.Request.Context(), learner); err != nil {
		h.logger.Error("create learner failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create learner"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"learner": learner})
}

// SubmitQuiz maneja POST /learners/:id/submissions: corre el pipeline completo
// de deteccion, actualizacion de rasgos y promocion.
func (h *LearnerHandler) SubmitQuiz(c *gin.Context) {
	learnerID := c.Param("id")

	var req struct {
		Topic     string                     `json:"topic"`
		Subject   string                     `json:"subject"`
		Responses []domain.QuizResponseEvent `json:"responses" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid quiz submission", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.submissions.ProcessSubmission(c.Request.Context(), learnerID, req.Topic, req.Subject, req.Responses)
	if err != nil {
		if errors.Is(err, domain.ErrLearnerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "learner not found"})
			return
		}
		h.logger.Error("quiz submission failed", zap.Error(err), zap.String("learner_id", learnerID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process submission"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProfile maneja GET /learners/:id/profile. Query param opcional: topic.
func (h *LearnerHandler) GetProfile(c *gin.Context) {
	learnerID := c.Param("id")

	if _, err := h.learners.GetByID(c.Request.Context(), learnerID); err != nil {
		if errors.Is(err, domain.ErrLearnerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "learner not found"})
			return
		}
		h.logger.Error("get learner failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load learner"})
		return
	}

	stored, err := h.vectors.Get(c.Request.Context(), learnerID, c.Query("topic"))
	if err != nil {
		h.logger.Error("get trait vector failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": stored})
}

// ListMisconceptions maneja GET /learners/:id/misconceptions.
// Query params: topic (opcional), include_resolved (opcional).
func (h *LearnerHandler) ListMisconceptions(c *gin.Context) {
	learnerID := c.Param("id")
	onlyUnresolved := c.Query("include_resolved") != "true"

	list, err := h.misconceptions.ListForLearner(c.Request.Context(), learnerID, c.Query("topic"), onlyUnresolved)
	if err != nil {
		h.logger.Error("list misconceptions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list misconceptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"misconceptions": list})
}

// GetProgress maneja GET /learners/:id/progress.
func (h *LearnerHandler) GetProgress(c *gin.Context) {
	progress, err := h.misconceptions.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("progress query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load progress"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}
