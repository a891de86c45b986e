package service

import (
	"context"

	"go.uber.org/zap"

	"tutor-llm/internal/domain"
)

// SubmissionResult agrupa todo lo que produce un submit de quiz.
type SubmissionResult struct {
	TraitUpdate    domain.TraitUpdateResult         `json:"trait_update"`
	Misconceptions []domain.DiscoveredMisconception `json:"misconceptions,omitempty"`
	Promotions     []domain.PromotionDecision       `json:"promotions,omitempty"`
}

// SubmissionService orquesta el flujo de un submit: primero la deteccion de
// concepciones erroneas (el actualizador de rasgos consume sus flags), luego
// la actualizacion de rasgos y por ultimo el chequeo de promocion, que es
// post-hoc y no condiciona al resto.
type SubmissionService struct {
	misconceptions *MisconceptionService
	traits         *TraitUpdateService
	promotions     *PromotionService
	logger         *zap.Logger
}

func NewSubmissionService(
	misconceptions *MisconceptionService,
	traits *TraitUpdateService,
	promotions *PromotionService,
	logger *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		misconceptions: misconceptions,
		traits:         traits,
		promotions:     promotions,
		logger:         logger,
	}
}

// ProcessSubmission corre el pipeline completo para un aprendiz. El unico
// error que devuelve es aprendiz inexistente; toda falla de enriquecimiento
// degrada localmente y el caller siempre recibe un vector (posiblemente sin
// cambios).
func (s *SubmissionService) ProcessSubmission(
	ctx context.Context,
	learnerID, topic, subject string,
	events []domain.QuizResponseEvent,
) (SubmissionResult, error) {
	var result SubmissionResult

	detected := make(map[string]*domain.DiscoveredMisconception)
	for _, event := range events {
		if event.QuestionID == "" {
			continue
		}
		if discovered := s.misconceptions.ProcessResponse(ctx, learnerID, topic, event); discovered != nil {
			detected[event.QuestionID] = discovered
			result.Misconceptions = append(result.Misconceptions, *discovered)
		}
	}

	traitUpdate, err := s.traits.UpdateFromSubmission(ctx, learnerID, topic, events, detected)
	if err != nil {
		return SubmissionResult{}, err
	}
	result.TraitUpdate = traitUpdate

	if s.promotions != nil {
		for _, discovered := range result.Misconceptions {
			decision := s.promotions.CheckAndPromote(ctx, discovered.MisconceptionText, topic, subject)
			result.Promotions = append(result.Promotions, decision)
		}
	}

	return result, nil
}
