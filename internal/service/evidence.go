package service

import (
	"context"

	"tutor-llm/internal/domain"
)

// Pesos de las fuentes de evidencia. La calibracion y el razonamiento pesan
// distinto segun que tan ligado este el rasgo a esa señal.
const (
	correctnessWeight        = 1.0
	calibrationWeightHigh    = 1.2
	calibrationWeightLow     = 0.8
	reasoningWeightHigh      = 1.5
	reasoningWeightLow       = 0.5
	misconceptionPenaltyRate = 0.15
)

// EvidenceAggregator combina correccion, calibracion de confianza, calidad de
// razonamiento y penalidad por concepcion erronea en una muestra normalizada
// por (evento, rasgo).
type EvidenceAggregator struct {
	analyzer ReasoningAnalyzer
}

func NewEvidenceAggregator(analyzer ReasoningAnalyzer) *EvidenceAggregator {
	if analyzer == nil {
		analyzer = NewHeuristicReasoningAnalyzer()
	}
	return &EvidenceAggregator{analyzer: analyzer}
}

// Gather produce la muestra de evidencia para un rasgo que el evento apunta.
// misconception puede ser nil cuando el clasificador no detecto nada.
func (a *EvidenceAggregator) Gather(ctx context.Context, event domain.QuizResponseEvent, trait domain.TraitName, misconception *domain.DiscoveredMisconception) domain.EvidenceSample {
	var (
		numerator   float64
		totalWeight float64
		components  domain.EvidenceComponents
	)

	// 1. Correccion: señal binaria, siempre presente.
	accuracy := 0.0
	if event.IsCorrect {
		accuracy = 1.0
	}
	components.Correctness = accuracy
	numerator += accuracy * correctnessWeight
	totalWeight += correctnessWeight

	// 2. Calibracion de confianza: 1 - |confianza - exactitud|.
	calibration := 1.0 - absFloat(event.Confidence-accuracy)
	components.Calibration = calibration
	calWeight := calibrationWeightLow
	switch trait {
	case domain.TraitConfidence, domain.TraitMetacognition, domain.TraitPrecision:
		calWeight = calibrationWeightHigh
	}
	numerator += calibration * calWeight
	totalWeight += calWeight

	// 3. Calidad de razonamiento: si no hay texto se omite la fuente completa
	// (cambia el peso total, no solo el score).
	if event.Reasoning != "" {
		analysis := a.analyzer.Analyze(ctx, event.Reasoning, trait)
		rScore := analysis.Score
		components.Reasoning = &rScore
		rWeight := reasoningWeightLow
		switch trait {
		case domain.TraitAnalyticalDepth, domain.TraitMetacognition, domain.TraitCuriosity:
			rWeight = reasoningWeightHigh
		}
		numerator += rScore * rWeight
		totalWeight += rWeight
	}

	// 4. Penalidad por concepcion erronea: ajuste punitivo escalado por la
	// confianza del clasificador, no una fuente ponderada aparte.
	if misconception != nil && !event.IsCorrect {
		for _, affected := range misconception.AffectedTraits() {
			if affected == trait {
				penalty := misconception.Confidence * misconceptionPenaltyRate * totalWeight
				components.MisconceptionPenalty = penalty
				numerator -= penalty
				break
			}
		}
	}

	if totalWeight <= 0 {
		// No deberia ocurrir: la correccion siempre aporta peso.
		return domain.EvidenceSample{Trait: trait, Score: domain.NeutralTraitValue, Weight: 0, Components: components}
	}

	return domain.EvidenceSample{
		Trait:      trait,
		Score:      domain.ClampUnit(numerator / totalWeight),
		Weight:     totalWeight,
		Components: components,
	}
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
