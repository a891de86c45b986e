package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/llm"
)

// AssessmentResponse es una respuesta libre del cuestionario inicial.
type AssessmentResponse struct {
	QuestionID string  `json:"question_id"`
	AnswerText string  `json:"answer_text"`
	Confidence float64 `json:"confidence,omitempty"`
}

const assessmentScoringPrompt = `You are an expert psychometric analyst specializing in cognitive profiling.

You will be given a learner's free-form responses to an assessment. Analyze their reasoning
patterns, problem-solving approaches, metacognitive awareness, and overall cognitive signature
across these 8 dimensions (each scored 0.0-1.0, 0.5 is baseline/neutral):

precision, confidence, analytical_depth, curiosity, metacognition, cognitive_flexibility,
pattern_recognition, attention_consistency.

**Assessment Responses:**
%s

Be strict but fair: 0.7+ indicates strength, <0.4 indicates weakness.

Return ONLY valid JSON in this exact format, no markdown:
{
  "precision": 0.0,
  "confidence": 0.0,
  "analytical_depth": 0.0,
  "curiosity": 0.0,
  "metacognition": 0.0,
  "cognitive_flexibility": 0.0,
  "pattern_recognition": 0.0,
  "attention_consistency": 0.0
}`

// AssessmentService es la via legada de evaluacion inicial: una sola llamada
// LLM puntua las 8 dimensiones desde respuestas libres. Degrada a un vector
// neutral completo si el LLM no esta o devuelve basura.
type AssessmentService struct {
	llmClient llm.Client
	logger    *zap.Logger
}

func NewAssessmentService(llmClient llm.Client, logger *zap.Logger) *AssessmentService {
	return &AssessmentService{llmClient: llmClient, logger: logger}
}

// ScoreResponses devuelve un valor por rasgo en [0,1]; nunca falla.
func (s *AssessmentService) ScoreResponses(ctx context.Context, responses []AssessmentResponse) domain.TraitVector {
	neutral := domain.NewNeutralTraitVector()
	if s.llmClient == nil || len(responses) == 0 {
		return neutral
	}

	var contextParts []string
	for _, resp := range responses {
		if resp.QuestionID == "" {
			continue
		}
		answer := resp.AnswerText
		if answer == "" {
			answer = "No response"
		}
		contextParts = append(contextParts, fmt.Sprintf(
			"**Question ID:** %s\n**Answer/Reasoning:** %s\n**Confidence:** %.2f",
			resp.QuestionID, answer, resp.Confidence,
		))
	}
	if len(contextParts) == 0 {
		return neutral
	}

	raw, err := s.llmClient.Generate(ctx, fmt.Sprintf(assessmentScoringPrompt, strings.Join(contextParts, "\n---\n")))
	if err != nil {
		s.logger.Warn("assessment scoring unavailable, returning neutral traits", zap.Error(err))
		return neutral
	}

	candidate := extractFirstJSONObject(cleanLLMJSONResponse(raw))
	if candidate == "" {
		s.logger.Warn("assessment scoring returned no JSON, returning neutral traits")
		return neutral
	}

	var parsed map[string]float64
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		s.logger.Warn("assessment scoring returned malformed JSON, returning neutral traits", zap.Error(err))
		return neutral
	}

	scored := domain.NewNeutralTraitVector()
	for name, value := range parsed {
		if trait, ok := domain.ParseTraitName(name); ok {
			scored.Set(trait, value)
		}
	}
	return scored
}
