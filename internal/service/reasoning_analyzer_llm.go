package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/llm"
)

const reasoningScorePrompt = `You are an expert at evaluating student reasoning quality.

Score the following free-text reasoning for evidence of the cognitive trait %q.

Reasoning:
%q

Consider causal structure, self-monitoring, specificity, and depth relative to the trait.
Return ONLY valid JSON, no markdown:
{"score": 0.0-1.0, "markers": ["short phrase describing each piece of evidence found"]}
`

// LLMReasoningAnalyzer es el modo semantico profundo: delega la puntuacion al
// LLM y ante cualquier falla (transporte, JSON invalido, score fuera de rango)
// degrada al analizador heuristico. Ambos modos honran el mismo contrato.
type LLMReasoningAnalyzer struct {
	client   llm.Client
	fallback ReasoningAnalyzer
	logger   *zap.Logger
}

func NewLLMReasoningAnalyzer(client llm.Client, fallback ReasoningAnalyzer, logger *zap.Logger) *LLMReasoningAnalyzer {
	if fallback == nil {
		fallback = NewHeuristicReasoningAnalyzer()
	}
	return &LLMReasoningAnalyzer{
		client:   client,
		fallback: fallback,
		logger:   logger,
	}
}

func (a *LLMReasoningAnalyzer) Analyze(ctx context.Context, text string, trait domain.TraitName) ReasoningAnalysis {
	heuristic := a.fallback.Analyze(ctx, text, trait)
	if a.client == nil || heuristic.Features.WordCount < minReasoningWords {
		return heuristic
	}

	raw, err := a.client.Generate(ctx, fmt.Sprintf(reasoningScorePrompt, string(trait), text))
	if err != nil {
		a.logger.Warn("llm reasoning scoring failed, using heuristic", zap.Error(err), zap.String("trait", string(trait)))
		return heuristic
	}

	var parsed struct {
		Score   float64  `json:"score"`
		Markers []string `json:"markers"`
	}
	candidate := extractFirstJSONObject(cleanLLMJSONResponse(raw))
	if candidate == "" || json.Unmarshal([]byte(candidate), &parsed) != nil {
		a.logger.Warn("llm reasoning scoring returned unparseable output, using heuristic", zap.String("trait", string(trait)))
		return heuristic
	}
	if parsed.Score < 0 || parsed.Score > 1 {
		parsed.Score = domain.ClampUnit(parsed.Score)
	}

	// Los conteos de features siguen siendo los heuristicos: el LLM aporta el
	// score semantico y sus marcadores, no los contadores auditables.
	return ReasoningAnalysis{
		Score:    parsed.Score,
		Markers:  parsed.Markers,
		Features: heuristic.Features,
	}
}
