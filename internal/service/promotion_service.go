package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/llm"
	"tutor-llm/internal/repository"
)

// PromotionService decide si una concepcion erronea personal entra a la base
// de conocimiento compartida. Dos compuertas: novedad (no demasiado similar a
// lo ya conocido) y frecuencia entre aprendices distintos (no idiosincratica).
type PromotionService struct {
	llmClient           llm.Client
	kbRepo              repository.KnowledgeBaseRepository
	personalRepo        repository.PersonalMisconceptionRepository
	freqIndex           FrequencyIndex
	logger              *zap.Logger
	similarityThreshold float64
	frequencyThreshold  int
}

func NewPromotionService(
	llmClient llm.Client,
	kbRepo repository.KnowledgeBaseRepository,
	personalRepo repository.PersonalMisconceptionRepository,
	freqIndex FrequencyIndex,
	logger *zap.Logger,
	similarityThreshold float64,
	frequencyThreshold int,
) *PromotionService {
	if similarityThreshold <= 0 {
		similarityThreshold = 0.85
	}
	if frequencyThreshold <= 0 {
		frequencyThreshold = 3
	}
	return &PromotionService{
		llmClient:           llmClient,
		kbRepo:              kbRepo,
		personalRepo:        personalRepo,
		freqIndex:           freqIndex,
		logger:              logger,
		similarityThreshold: similarityThreshold,
		frequencyThreshold:  frequencyThreshold,
	}
}

// CheckAndPromote evalua las dos compuertas y, si ambas pasan, agrega el
// registro inmutable a la base compartida. Nunca propaga fallas de
// infraestructura: las reporta como decision con razon "error" (el sistema es
// consultivo, no critico de seguridad).
func (s *PromotionService) CheckAndPromote(ctx context.Context, misconceptionText, topic, subject string) domain.PromotionDecision {
	if s.llmClient == nil {
		return domain.PromotionDecision{Promoted: false, Reason: domain.PromotionReasonError}
	}

	embedded, err := s.llmClient.CreateEmbedding(ctx, misconceptionText)
	if err != nil {
		s.logger.Warn("embedding for promotion failed", zap.Error(err))
		return domain.PromotionDecision{Promoted: false, Reason: domain.PromotionReasonError}
	}
	embedding := pgvector.NewVector(embedded)

	// Compuerta 1: novedad contra la base compartida del mismo dominio.
	similarity, similarTo, err := s.maxSimilarity(ctx, subject, embedding)
	if err != nil {
		s.logger.Warn("novelty query failed", zap.Error(err))
		return domain.PromotionDecision{Promoted: false, Reason: domain.PromotionReasonError}
	}
	if similarity >= s.similarityThreshold {
		s.logger.Info("promotion rejected: duplicate",
			zap.Float64("similarity", similarity),
			zap.String("similar_to", similarTo),
		)
		return domain.PromotionDecision{
			Promoted:   false,
			Reason:     domain.PromotionReasonDuplicate,
			Similarity: similarity,
			SimilarTo:  similarTo,
		}
	}

	// Compuerta 2: quorum de aprendices distintos.
	learnerCount, err := s.countDistinctLearners(ctx, misconceptionText)
	if err != nil {
		s.logger.Warn("frequency check failed", zap.Error(err))
		return domain.PromotionDecision{Promoted: false, Reason: domain.PromotionReasonError}
	}
	if learnerCount < s.frequencyThreshold {
		return domain.PromotionDecision{
			Promoted:     false,
			Reason:       domain.PromotionReasonInsufficientFrequency,
			Similarity:   similarity,
			LearnerCount: learnerCount,
			Threshold:    s.frequencyThreshold,
		}
	}

	// Re-chequeo de novedad inmediatamente antes de insertar: dos promociones
	// concurrentes casi-duplicadas son una carrera benigna, pero barata de
	// cerrar en el caso comun.
	similarity2, similarTo2, err := s.maxSimilarity(ctx, subject, embedding)
	if err == nil && similarity2 >= s.similarityThreshold {
		return domain.PromotionDecision{
			Promoted:   false,
			Reason:     domain.PromotionReasonDuplicate,
			Similarity: similarity2,
			SimilarTo:  similarTo2,
		}
	}

	record := domain.GlobalMisconceptionRecord{
		ID:                uuid.NewString(),
		MisconceptionText: misconceptionText,
		Subject:           subject,
		Topic:             topic,
		Embedding:         embedding,
		Frequency:         learnerCount,
		NoveltyScore:      1.0 - similarity,
		Source:            domain.KBSourceStudentDiscovered,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.kbRepo.Insert(ctx, record); err != nil {
		s.logger.Warn("knowledge base insert failed", zap.Error(err))
		return domain.PromotionDecision{Promoted: false, Reason: domain.PromotionReasonError}
	}

	s.logger.Info("misconception promoted to shared knowledge base",
		zap.String("misconception", misconceptionText),
		zap.Int("learner_count", learnerCount),
		zap.Float64("novelty_score", record.NoveltyScore),
	)
	return domain.PromotionDecision{
		Promoted:       true,
		Similarity:     similarity,
		LearnerCount:   learnerCount,
		NoveltyScore:   record.NoveltyScore,
		GlobalRecordID: record.ID,
	}
}

// maxSimilarity convierte la distancia coseno del vecino mas cercano en un
// score de similitud acotado.
func (s *PromotionService) maxSimilarity(ctx context.Context, subject string, embedding pgvector.Vector) (float64, string, error) {
	neighbors, err := s.kbRepo.Nearest(ctx, subject, embedding, 3)
	if err != nil {
		return 0, "", err
	}
	if len(neighbors) == 0 {
		return 0, "", nil
	}
	similarity := domain.ClampUnit(1.0 - neighbors[0].Distance)
	return similarity, neighbors[0].Record.MisconceptionText, nil
}

// countDistinctLearners prefiere el indice invertido incremental; si no hay o
// quedo por debajo del umbral (registros anteriores al indice) cae al scan
// case-insensitive por substring sobre toda la poblacion.
func (s *PromotionService) countDistinctLearners(ctx context.Context, misconceptionText string) (int, error) {
	if s.freqIndex != nil {
		count, err := s.freqIndex.DistinctLearners(ctx, misconceptionText)
		if err == nil && count >= s.frequencyThreshold {
			return count, nil
		}
		if err != nil {
			s.logger.Warn("frequency index unavailable, falling back to scan", zap.Error(err))
		}
	}
	return s.personalRepo.CountDistinctLearnersMatching(ctx, misconceptionText)
}
