package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/llm"
	"tutor-llm/internal/repository"
)

const misconceptionExtractionPrompt = `You are an expert educational psychologist specializing in misconception analysis.

Analyze this student's incorrect response and identify the underlying misconception.

**QUESTION:** %s

**CORRECT ANSWER:** %s

**STUDENT'S ANSWER:** %s

**STUDENT'S REASONING:** %s

**TOPIC:** %s
%s
**TASK:**
Identify the core misconception that led the student to choose the wrong answer.

Return ONLY valid JSON, no markdown:
{
    "misconception_text": "Clear, concise description of the misconception",
    "confidence": 0.0-1.0,
    "evidence": "Specific evidence from the reasoning that reveals this misconception",
    "severity": "low" | "medium" | "high" | "critical",
    "related_trait": "cognitive trait this affects most (precision, analytical_depth, ...)",
    "suggested_remediation": "Brief suggestion for addressing this misconception"
}

If the student just guessed or no clear misconception is evident, return {"misconception_text": null}
`

// MisconceptionService mantiene el catalogo personal de concepciones erroneas
// y su ciclo de vida (activa, resuelta, recaida). Las llamadas al clasificador
// LLM son best-effort: una falla nunca tumba el request del quiz.
type MisconceptionService struct {
	llmClient       llm.Client
	personalRepo    repository.PersonalMisconceptionRepository
	freqIndex       FrequencyIndex
	logger          *zap.Logger
	confidenceFloor float64
	streakThreshold int
}

func NewMisconceptionService(
	llmClient llm.Client,
	personalRepo repository.PersonalMisconceptionRepository,
	freqIndex FrequencyIndex,
	logger *zap.Logger,
	confidenceFloor float64,
	streakThreshold int,
) *MisconceptionService {
	if confidenceFloor <= 0 {
		confidenceFloor = 0.6
	}
	if streakThreshold <= 0 {
		streakThreshold = 3
	}
	return &MisconceptionService{
		llmClient:       llmClient,
		personalRepo:    personalRepo,
		freqIndex:       freqIndex,
		logger:          logger,
		confidenceFloor: confidenceFloor,
		streakThreshold: streakThreshold,
	}
}

// ProcessResponse corre la logica por evento: respuestas incorrectas pasan por
// el clasificador y se registran; respuestas ligadas a una concepcion ya
// conocida mueven su racha. Devuelve la concepcion detectada (si hay) para que
// el agregador de evidencia aplique la penalidad en el mismo submit.
func (s *MisconceptionService) ProcessResponse(ctx context.Context, learnerID, topic string, event domain.QuizResponseEvent) *domain.DiscoveredMisconception {
	if event.MisconceptionTarget != "" {
		s.registerOutcomeOnTarget(ctx, learnerID, topic, event)
	}

	if event.IsCorrect {
		return nil
	}

	discovered := s.classify(ctx, topic, event)
	if discovered == nil {
		return nil
	}
	if discovered.Confidence < s.confidenceFloor {
		s.logger.Info("discarding low-confidence misconception",
			zap.Float64("confidence", discovered.Confidence),
			zap.String("topic", topic),
		)
		return nil
	}

	if err := s.track(ctx, learnerID, *discovered, event); err != nil {
		s.logger.Warn("could not persist personal misconception", zap.Error(err), zap.String("learner_id", learnerID))
	}
	return discovered
}

// classify consulta al clasificador LLM; nil significa "sin concepcion clara"
// (adivinanza aleatoria) o clasificador indisponible.
func (s *MisconceptionService) classify(ctx context.Context, topic string, event domain.QuizResponseEvent) *domain.DiscoveredMisconception {
	if s.llmClient == nil {
		return nil
	}

	reasoning := event.Reasoning
	if reasoning == "" {
		reasoning = "Not provided"
	}
	optionsBlock := ""
	if len(event.AllOptions) > 0 {
		optionsBlock = fmt.Sprintf("\n**ALL OPTIONS:** %s\n", strings.Join(event.AllOptions, " | "))
	}

	prompt := fmt.Sprintf(misconceptionExtractionPrompt,
		event.QuestionText,
		event.CorrectOption,
		event.SelectedOption,
		reasoning,
		topic,
		optionsBlock,
	)

	raw, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("misconception classifier unavailable", zap.Error(err))
		return nil
	}

	candidate := extractFirstJSONObject(cleanLLMJSONResponse(raw))
	if candidate == "" {
		s.logger.Warn("misconception classifier returned no JSON")
		return nil
	}

	var parsed struct {
		MisconceptionText    *string  `json:"misconception_text"`
		Confidence           *float64 `json:"confidence"`
		Evidence             string   `json:"evidence"`
		Severity             string   `json:"severity"`
		RelatedTrait         string   `json:"related_trait"`
		SuggestedRemediation string   `json:"suggested_remediation"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		s.logger.Warn("misconception classifier returned malformed JSON", zap.Error(err))
		return nil
	}
	if parsed.MisconceptionText == nil || strings.TrimSpace(*parsed.MisconceptionText) == "" {
		return nil
	}

	confidence := 0.8
	if parsed.Confidence != nil {
		confidence = domain.ClampUnit(*parsed.Confidence)
	}
	severity := strings.ToLower(strings.TrimSpace(parsed.Severity))
	switch severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
	default:
		severity = domain.SeverityMedium
	}

	discovered := &domain.DiscoveredMisconception{
		MisconceptionText:    strings.TrimSpace(*parsed.MisconceptionText),
		Topic:                topic,
		Confidence:           confidence,
		Evidence:             parsed.Evidence,
		Severity:             severity,
		SuggestedRemediation: parsed.SuggestedRemediation,
	}
	if trait, ok := domain.ParseTraitName(strings.ToLower(strings.TrimSpace(parsed.RelatedTrait))); ok {
		discovered.RelatedTrait = &trait
	}
	return discovered
}

// track crea el registro personal o marca la recaida si ya existia el mismo
// texto (match case-insensitive) para ese aprendiz y topico.
func (s *MisconceptionService) track(ctx context.Context, learnerID string, discovered domain.DiscoveredMisconception, event domain.QuizResponseEvent) error {
	now := time.Now().UTC()

	existing, err := s.personalRepo.FindByText(ctx, learnerID, discovered.Topic, discovered.MisconceptionText)
	if err != nil {
		return fmt.Errorf("find personal misconception: %w", err)
	}

	if existing != nil {
		// Recaida: frecuencia sube, racha a cero, vuelve a activa aunque
		// estuviera resuelta.
		if err := s.personalRepo.RecordRelapse(ctx, existing.ID, now); err != nil {
			return fmt.Errorf("record relapse: %w", err)
		}
		s.logger.Info("misconception relapse",
			zap.String("learner_id", learnerID),
			zap.String("misconception", discovered.MisconceptionText),
			zap.Int("frequency", existing.Frequency+1),
		)
	} else {
		mc := domain.PersonalMisconception{
			ID:                uuid.NewString(),
			LearnerID:         learnerID,
			Topic:             discovered.Topic,
			MisconceptionText: discovered.MisconceptionText,
			QuestionContext:   event.QuestionText,
			StudentReasoning:  event.Reasoning,
			Severity:          discovered.Severity,
			RelatedTrait:      discovered.RelatedTrait,
			FirstEncountered:  now,
			LastOccurrence:    now,
			Frequency:         1,
			CorrectStreak:     0,
			Resolved:          false,
		}
		if err := s.personalRepo.Create(ctx, mc); err != nil {
			return fmt.Errorf("create personal misconception: %w", err)
		}
		s.logger.Info("new personal misconception",
			zap.String("learner_id", learnerID),
			zap.String("misconception", discovered.MisconceptionText),
		)
	}

	if s.freqIndex != nil {
		if err := s.freqIndex.Record(ctx, discovered.MisconceptionText, learnerID); err != nil {
			s.logger.Warn("frequency index update failed", zap.Error(err))
		}
	}
	return nil
}

// registerOutcomeOnTarget mueve la racha de una concepcion ya registrada
// cuando la pregunta la apuntaba explicitamente: respuesta correcta suma
// (y resuelve al llegar al umbral), incorrecta resetea, aunque el texto del
// nuevo error no sea identico.
func (s *MisconceptionService) registerOutcomeOnTarget(ctx context.Context, learnerID, topic string, event domain.QuizResponseEvent) {
	existing, err := s.personalRepo.FindByText(ctx, learnerID, topic, event.MisconceptionTarget)
	if err != nil {
		s.logger.Warn("lookup of targeted misconception failed", zap.Error(err))
		return
	}
	if existing == nil {
		return
	}

	now := time.Now().UTC()
	if event.IsCorrect {
		resolved, err := s.personalRepo.RecordCorrect(ctx, existing.ID, s.streakThreshold, now)
		if err != nil {
			s.logger.Warn("streak update failed", zap.Error(err))
			return
		}
		if resolved {
			s.logger.Info("misconception resolved",
				zap.String("learner_id", learnerID),
				zap.String("misconception", existing.MisconceptionText),
			)
		}
		return
	}

	if err := s.personalRepo.ResetStreak(ctx, existing.ID); err != nil {
		s.logger.Warn("streak reset failed", zap.Error(err))
	}
}

// ListForLearner expone el catalogo personal (filtro opcional por topico).
func (s *MisconceptionService) ListForLearner(ctx context.Context, learnerID, topic string, onlyUnresolved bool) ([]domain.PersonalMisconception, error) {
	return s.personalRepo.ListByLearner(ctx, learnerID, topic, onlyUnresolved)
}

// Progress resume el avance de resolucion por topico.
func (s *MisconceptionService) Progress(ctx context.Context, learnerID string) ([]domain.MisconceptionProgress, error) {
	return s.personalRepo.ProgressByTopic(ctx, learnerID)
}
