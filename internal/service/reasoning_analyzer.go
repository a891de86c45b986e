package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"tutor-llm/internal/domain"
)

// ReasoningAnalysis es la salida auditada del analizador: score acotado,
// marcadores legibles de la evidencia encontrada y conteos de sub-features.
type ReasoningAnalysis struct {
	Score    float64           `json:"score"`
	Markers  []string          `json:"markers,omitempty"`
	Features ReasoningFeatures `json:"features"`
}

// ReasoningFeatures expone los conteos crudos detrás del score.
type ReasoningFeatures struct {
	WordCount        int     `json:"word_count"`
	SentenceCount    int     `json:"sentence_count"`
	CausalMarkers    int     `json:"causal_markers"`
	StepMarkers      int     `json:"step_markers"`
	MetacogMarkers   int     `json:"metacognitive_markers"`
	QuestionMarkers  int     `json:"question_markers"`
	PrecisionMarkers int     `json:"precision_markers"`
	PatternMarkers   int     `json:"pattern_markers"`
	NumericTokens    int     `json:"numeric_tokens"`
	LexicalDiversity float64 `json:"lexical_diversity"`
}

// ReasoningAnalyzer puntua el razonamiento libre de un aprendiz contra un
// rasgo objetivo. Contrato: score siempre en [0,1], nunca falla ante input
// malformado; rasgos desconocidos caen a heuristicas linguisticas genericas.
type ReasoningAnalyzer interface {
	Analyze(ctx context.Context, text string, trait domain.TraitName) ReasoningAnalysis
}

// minReasoningWords: debajo de este largo no hay evidencia utilizable.
const minReasoningWords = 5

// insufficientEvidenceScore: texto corto no prueba ausencia de habilidad,
// por eso devuelve un score bajo fijo y no cero.
const insufficientEvidenceScore = 0.3

// HeuristicReasoningAnalyzer implementa el modo regex/heuristico. Es el
// fallback siempre disponible cuando el modo semantico profundo no esta.
type HeuristicReasoningAnalyzer struct{}

func NewHeuristicReasoningAnalyzer() *HeuristicReasoningAnalyzer {
	return &HeuristicReasoningAnalyzer{}
}

var (
	causalWords      = []string{"because", "therefore", "thus", "hence", "leads to", "causes", "results in", "so that", "due to"}
	stepWords        = []string{"first", "then", "next", "finally", "step"}
	uncertaintyWords = []string{"i think", "probably", "maybe", "not sure", "might be", "perhaps", "i guess"}
	monitoringWords  = []string{"i checked", "i realized", "i noticed", "i found", "i reviewed", "i double-checked"}
	strategyWords    = []string{"i used", "i applied", "my approach", "my method", "my strategy"}
	questionWords    = []string{"why", "how", "what if", "i wonder", "curious", "suppose"}
	explorationWords = []string{"explore", "investigate", "discover", "learn more"}
	precisionWords   = []string{"exactly", "precisely", "specific", "unit", "formula", "equation", "decimal"}
	patternWords     = []string{"pattern", "similar", "relationship", "trend", "sequence", "rule", "analogous", "generalize", "in general", "compare"}

	numericTokenRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:m/s2|m/s|kg|mol|km|cm|mm|ms|hz|n|j|w|v|a|s|m|g|%)?\b`)
	sentenceEndRe  = regexp.MustCompile(`[.!?]+`)
)

func (a *HeuristicReasoningAnalyzer) Analyze(_ context.Context, text string, trait domain.TraitName) ReasoningAnalysis {
	lower := strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(lower)

	features := ReasoningFeatures{
		WordCount:        len(words),
		SentenceCount:    countSentences(lower),
		CausalMarkers:    countContains(lower, causalWords),
		StepMarkers:      countContains(lower, stepWords),
		MetacogMarkers:   countContains(lower, uncertaintyWords) + countContains(lower, monitoringWords) + countContains(lower, strategyWords),
		QuestionMarkers:  countContains(lower, questionWords),
		PrecisionMarkers: countContains(lower, precisionWords),
		PatternMarkers:   countContains(lower, patternWords),
		NumericTokens:    len(numericTokenRe.FindAllString(lower, -1)),
		LexicalDiversity: lexicalDiversity(words),
	}

	if len(words) < minReasoningWords {
		return ReasoningAnalysis{
			Score:    insufficientEvidenceScore,
			Markers:  []string{"insufficient reasoning text"},
			Features: features,
		}
	}

	var (
		score   float64
		markers []string
	)

	switch trait {
	case domain.TraitAnalyticalDepth, domain.TraitCognitiveFlexibility:
		if features.CausalMarkers > 0 {
			score += capAt(float64(features.CausalMarkers)*0.1, 0.3)
			markers = append(markers, fmt.Sprintf("causal connectives (%d)", features.CausalMarkers))
		}
		if features.StepMarkers > 0 {
			score += 0.2
			markers = append(markers, "multi-step structure")
		}
		if elaboration := capAt(float64(features.WordCount)/100.0, 0.3); elaboration > 0 {
			score += elaboration
		}

	case domain.TraitMetacognition:
		if countContains(lower, uncertaintyWords) > 0 {
			score += 0.25
			markers = append(markers, "uncertainty hedging")
		}
		if countContains(lower, monitoringWords) > 0 {
			score += 0.35
			markers = append(markers, "self-monitoring verbs")
		}
		if countContains(lower, strategyWords) > 0 {
			score += 0.25
			markers = append(markers, "strategy awareness")
		}

	case domain.TraitCuriosity:
		if features.QuestionMarkers > 0 {
			score += capAt(float64(features.QuestionMarkers)*0.15, 0.4)
			markers = append(markers, fmt.Sprintf("question generation (%d)", features.QuestionMarkers))
		}
		if countContains(lower, explorationWords) > 0 {
			score += 0.3
			markers = append(markers, "exploration intent")
		}

	case domain.TraitPrecision:
		if features.PrecisionMarkers > 0 {
			score += capAt(float64(features.PrecisionMarkers)*0.15, 0.4)
			markers = append(markers, fmt.Sprintf("precision vocabulary (%d)", features.PrecisionMarkers))
		}
		if features.NumericTokens > 0 {
			score += capAt(float64(features.NumericTokens)*0.1, 0.3)
			markers = append(markers, fmt.Sprintf("numeric/unit specificity (%d)", features.NumericTokens))
		}

	case domain.TraitPatternRecognition:
		if features.PatternMarkers > 0 {
			score += capAt(float64(features.PatternMarkers)*0.15, 0.4)
			markers = append(markers, fmt.Sprintf("comparison/generalization vocabulary (%d)", features.PatternMarkers))
		}

	default:
		// Rasgo desconocido o sin detector dedicado: calidad linguistica generica.
		score, markers = genericQualityScore(features)
	}

	return ReasoningAnalysis{
		Score:    domain.ClampUnit(score),
		Markers:  markers,
		Features: features,
	}
}

// genericQualityScore mezcla complejidad de oraciones y diversidad lexica.
func genericQualityScore(f ReasoningFeatures) (float64, []string) {
	var (
		score   float64
		markers []string
	)
	if f.SentenceCount > 0 {
		avgLen := float64(f.WordCount) / float64(f.SentenceCount)
		score += capAt(avgLen/40.0, 0.4)
		if avgLen >= 12 {
			markers = append(markers, "complex sentence structure")
		}
	}
	score += capAt(f.LexicalDiversity*0.4, 0.4)
	if f.LexicalDiversity >= 0.7 {
		markers = append(markers, "rich vocabulary")
	}
	score += capAt(float64(f.WordCount)/150.0, 0.2)
	return score, markers
}

func countContains(text string, phrases []string) int {
	count := 0
	for _, p := range phrases {
		if strings.Contains(text, p) {
			count++
		}
	}
	return count
}

func countSentences(text string) int {
	n := len(sentenceEndRe.FindAllString(text, -1))
	if n == 0 && strings.TrimSpace(text) != "" {
		return 1
	}
	return n
}

func lexicalDiversity(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.Trim(w, ".,;:!?\"'()")] = struct{}{}
	}
	return float64(len(unique)) / float64(len(words))
}

func capAt(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	if v < 0 {
		return 0
	}
	return v
}
