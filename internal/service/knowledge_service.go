package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/llm"
	"tutor-llm/internal/repository"
)

const misconceptionSynthesisPrompt = `You are an expert STEM educator with deep knowledge of common student misconceptions.

Generate %d realistic misconceptions for this topic:
**Topic**: %s
**Subject**: %s

Each misconception should:
1. Reflect actual cognitive errors students make
2. Be specific and grounded in the topic
3. Include the correct concept for comparison

Return ONLY valid JSON (no markdown):
[
  {
    "pattern": "Students think X requires Y",
    "correct_concept": "The correct understanding",
    "difficulty": "medium"
  }
]

Focus on conceptual misunderstandings, not simple factual errors.`

// KnowledgeService cubre los usos de la base compartida que no son promocion:
// sintesis de concepciones semilla para topicos con poca cobertura y la
// busqueda semantica que consumen los generadores de preguntas.
type KnowledgeService struct {
	llmClient llm.Client
	kbRepo    repository.KnowledgeBaseRepository
	logger    *zap.Logger
}

func NewKnowledgeService(llmClient llm.Client, kbRepo repository.KnowledgeBaseRepository, logger *zap.Logger) *KnowledgeService {
	return &KnowledgeService{
		llmClient: llmClient,
		kbRepo:    kbRepo,
		logger:    logger,
	}
}

// RetrievedMisconception es un resultado de busqueda con su relevancia.
type RetrievedMisconception struct {
	Pattern   string  `json:"pattern"`
	Subject   string  `json:"subject"`
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance"`
}

// SearchForTopic devuelve las concepciones mas relevantes al topico,
// convirtiendo distancia en similitud (1 - distancia).
func (s *KnowledgeService) SearchForTopic(ctx context.Context, topic, subject string, k int) ([]RetrievedMisconception, error) {
	if s.llmClient == nil {
		return nil, fmt.Errorf("no embedding client configured")
	}
	embedded, err := s.llmClient.CreateEmbedding(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("embed topic query: %w", err)
	}

	neighbors, err := s.kbRepo.Nearest(ctx, subject, pgvector.NewVector(embedded), k)
	if err != nil {
		return nil, fmt.Errorf("knowledge base query: %w", err)
	}

	results := make([]RetrievedMisconception, 0, len(neighbors))
	for _, n := range neighbors {
		results = append(results, RetrievedMisconception{
			Pattern:   n.Record.MisconceptionText,
			Subject:   n.Record.Subject,
			Topic:     n.Record.Topic,
			Relevance: domain.ClampUnit(1.0 - n.Distance),
		})
	}
	return results, nil
}

// SynthesizeForTopic genera concepciones semilla con el LLM y las agrega a la
// base compartida, saltando las que ya tienen un vecino casi identico.
func (s *KnowledgeService) SynthesizeForTopic(ctx context.Context, topic, subject string, count int) (int, error) {
	if s.llmClient == nil {
		return 0, fmt.Errorf("no llm client configured")
	}
	if count <= 0 {
		count = 5
	}

	raw, err := s.llmClient.Generate(ctx, fmt.Sprintf(misconceptionSynthesisPrompt, count, topic, subject))
	if err != nil {
		return 0, fmt.Errorf("synthesis call: %w", err)
	}

	var parsed []struct {
		Pattern        string `json:"pattern"`
		CorrectConcept string `json:"correct_concept"`
		Difficulty     string `json:"difficulty"`
	}
	if err := json.Unmarshal([]byte(cleanLLMJSONResponse(raw)), &parsed); err != nil {
		return 0, fmt.Errorf("parse synthesis output: %w", err)
	}

	inserted := 0
	for _, m := range parsed {
		if m.Pattern == "" {
			continue
		}
		embedded, err := s.llmClient.CreateEmbedding(ctx, m.Pattern)
		if err != nil {
			s.logger.Warn("embedding for synthesized misconception failed", zap.Error(err))
			continue
		}
		embedding := pgvector.NewVector(embedded)

		neighbors, err := s.kbRepo.Nearest(ctx, subject, embedding, 1)
		if err == nil && len(neighbors) > 0 && 1.0-neighbors[0].Distance >= 0.95 {
			continue
		}

		record := domain.GlobalMisconceptionRecord{
			ID:                uuid.NewString(),
			MisconceptionText: m.Pattern,
			Subject:           subject,
			Topic:             topic,
			Embedding:         embedding,
			Frequency:         0,
			NoveltyScore:      1.0,
			Source:            domain.KBSourceSynthesis,
			CreatedAt:         time.Now().UTC(),
		}
		if err := s.kbRepo.Insert(ctx, record); err != nil {
			s.logger.Warn("synthesized misconception insert failed", zap.Error(err))
			continue
		}
		inserted++
	}

	s.logger.Info("synthesized misconceptions for topic",
		zap.String("topic", topic),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}
