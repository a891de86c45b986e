package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/repository"
)

// TraitUpdateService pliega la evidencia de un quiz dentro del vector de
// rasgos persistido del aprendiz, con ganancia Kalman especifica por rasgo.
type TraitUpdateService struct {
	learnerRepo repository.LearnerRepository
	vectorRepo  repository.TraitVectorRepository
	aggregator  *EvidenceAggregator
	logger      *zap.Logger
}

func NewTraitUpdateService(
	learnerRepo repository.LearnerRepository,
	vectorRepo repository.TraitVectorRepository,
	aggregator *EvidenceAggregator,
	logger *zap.Logger,
) *TraitUpdateService {
	return &TraitUpdateService{
		learnerRepo: learnerRepo,
		vectorRepo:  vectorRepo,
		aggregator:  aggregator,
		logger:      logger,
	}
}

// UpdateFromSubmission actualiza el vector global del aprendiz y, si topic no
// es vacio, tambien el vector independiente (aprendiz, topico). misconceptions
// va indexado por question_id y puede ser nil.
//
// Unico error propagado: aprendiz inexistente. Las fallas de enriquecimiento
// ya fueron absorbidas rio arriba (el agregador trabaja con señales locales).
func (s *TraitUpdateService) UpdateFromSubmission(
	ctx context.Context,
	learnerID string,
	topic string,
	events []domain.QuizResponseEvent,
	misconceptions map[string]*domain.DiscoveredMisconception,
) (domain.TraitUpdateResult, error) {
	if _, err := s.learnerRepo.GetByID(ctx, learnerID); err != nil {
		if errors.Is(err, domain.ErrLearnerNotFound) {
			return domain.TraitUpdateResult{}, domain.ErrLearnerNotFound
		}
		return domain.TraitUpdateResult{}, fmt.Errorf("get learner %s: %w", learnerID, err)
	}

	result, err := s.updateScopedVector(ctx, learnerID, "", events, misconceptions)
	if err != nil {
		return domain.TraitUpdateResult{}, err
	}

	if topic != "" {
		if _, err := s.updateScopedVector(ctx, learnerID, topic, events, misconceptions); err != nil {
			// El vector por topico es un refinamiento: si pierde la carrera dos
			// veces no invalida la actualizacion global ya aplicada.
			s.logger.Warn("topic-scoped trait update failed",
				zap.Error(err),
				zap.String("learner_id", learnerID),
				zap.String("topic", topic),
			)
		}
	}

	return result, nil
}

// updateScopedVector hace el ciclo leer-calcular-escribir con chequeo
// optimista de version, reintentando una vez ante conflicto.
func (s *TraitUpdateService) updateScopedVector(
	ctx context.Context,
	learnerID, topic string,
	events []domain.QuizResponseEvent,
	misconceptions map[string]*domain.DiscoveredMisconception,
) (domain.TraitUpdateResult, error) {
	for attempt := 0; ; attempt++ {
		stored, err := s.vectorRepo.Get(ctx, learnerID, topic)
		if err != nil {
			return domain.TraitUpdateResult{}, fmt.Errorf("get trait vector: %w", err)
		}

		result := s.ApplyEvidence(ctx, stored.Traits, events, misconceptions)
		result.Topic = topic

		stored.Traits = result.Traits
		stored.UpdatedAt = time.Now().UTC()
		if err := s.vectorRepo.Save(ctx, stored, stored.Version); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) && attempt == 0 {
				continue
			}
			return domain.TraitUpdateResult{}, fmt.Errorf("save trait vector: %w", err)
		}
		return result, nil
	}
}

// ApplyEvidence es el nucleo puro del actualizador: junta las muestras por
// rasgo, promedia ponderado y aplica new = old + gain * (avg - old), acotado.
func (s *TraitUpdateService) ApplyEvidence(
	ctx context.Context,
	current domain.TraitVector,
	events []domain.QuizResponseEvent,
	misconceptions map[string]*domain.DiscoveredMisconception,
) domain.TraitUpdateResult {
	type accumulator struct {
		weightedSum float64
		totalWeight float64
		count       int
	}
	evidence := make(map[domain.TraitName]*accumulator, len(domain.AllTraits))
	for _, trait := range domain.AllTraits {
		evidence[trait] = &accumulator{}
	}

	var evidenceLog []domain.EvidenceLogEntry

	for _, event := range events {
		if event.QuestionID == "" {
			s.logger.Warn("skipping malformed response event without question reference")
			continue
		}

		var mc *domain.DiscoveredMisconception
		if misconceptions != nil {
			mc = misconceptions[event.QuestionID]
		}

		for _, trait := range event.TargetedTraits() {
			sample := s.aggregator.Gather(ctx, event, trait, mc)
			acc := evidence[trait]
			acc.weightedSum += sample.Score * sample.Weight
			acc.totalWeight += sample.Weight
			acc.count++
			evidenceLog = append(evidenceLog, domain.EvidenceLogEntry{
				QuestionID: event.QuestionID,
				Sample:     sample,
			})
		}
	}

	updated := current.Clone()
	diagnostics := make(map[domain.TraitName]domain.TraitDiagnostic, len(domain.AllTraits))

	for _, trait := range domain.AllTraits {
		oldValue := current.Get(trait)
		acc := evidence[trait]

		if acc.totalWeight == 0 {
			diagnostics[trait] = domain.TraitDiagnostic{
				Trait:         trait,
				OldValue:      oldValue,
				NewValue:      oldValue,
				Change:        0,
				EvidenceCount: 0,
				Method:        domain.UpdateMethodNoEvidence,
			}
			continue
		}

		avgPerformance := acc.weightedSum / acc.totalWeight
		gain := domain.KalmanGain(trait)
		newValue := domain.ClampUnit(oldValue + gain*(avgPerformance-oldValue))

		updated.Set(trait, newValue)
		diagnostics[trait] = domain.TraitDiagnostic{
			Trait:          trait,
			OldValue:       oldValue,
			NewValue:       newValue,
			Change:         newValue - oldValue,
			EvidenceCount:  acc.count,
			AvgPerformance: avgPerformance,
			Gain:           gain,
			Method:         domain.UpdateMethodKalman,
		}

		s.logger.Debug("trait updated",
			zap.String("trait", string(trait)),
			zap.Float64("old", oldValue),
			zap.Float64("new", newValue),
			zap.Int("observations", acc.count),
		)
	}

	return domain.TraitUpdateResult{
		Traits:      updated,
		Diagnostics: diagnostics,
		EvidenceLog: evidenceLog,
	}
}
