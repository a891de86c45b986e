package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// Niveles de severidad de una concepcion erronea.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// DiscoveredMisconception es el resultado crudo del clasificador LLM antes de
// persistirse en el historial personal del aprendiz.
type DiscoveredMisconception struct {
	MisconceptionText    string     `json:"misconception_text"`
	Topic                string     `json:"topic"`
	Confidence           float64    `json:"confidence"`
	Evidence             string     `json:"evidence,omitempty"`
	Severity             string     `json:"severity"`
	RelatedTrait         *TraitName `json:"related_trait,omitempty"`
	SuggestedRemediation string     `json:"suggested_remediation,omitempty"`
}

// AffectedTraits devuelve los rasgos penalizados por esta concepcion erronea.
func (d DiscoveredMisconception) AffectedTraits() []TraitName {
	if d.RelatedTrait != nil && d.RelatedTrait.IsValid() {
		return []TraitName{*d.RelatedTrait}
	}
	return nil
}

// PersonalMisconception es el registro historico por (aprendiz, topico).
// Nunca se borra: la resolucion se marca, no se elimina.
type PersonalMisconception struct {
	ID                    string     `json:"id"`
	LearnerID             string     `json:"learner_id"`
	Topic                 string     `json:"topic"`
	MisconceptionText     string     `json:"misconception_text"`
	QuestionContext       string     `json:"question_context,omitempty"`
	StudentReasoning      string     `json:"student_reasoning,omitempty"`
	Severity              string     `json:"severity"`
	RelatedTrait          *TraitName `json:"related_trait,omitempty"`
	FirstEncountered      time.Time  `json:"first_encountered"`
	LastOccurrence        time.Time  `json:"last_occurrence"`
	Frequency             int        `json:"frequency"`
	CorrectStreak         int        `json:"correct_streak"`
	Resolved              bool       `json:"resolved"`
	ResolutionDate        *time.Time `json:"resolution_date,omitempty"`
	TargetedQuestionCount int        `json:"targeted_question_count"`
}

// GlobalMisconceptionRecord vive en la base de conocimiento compartida.
// Es append-only: una vez promovido no se muta.
type GlobalMisconceptionRecord struct {
	ID                string          `json:"id"`
	MisconceptionText string          `json:"misconception_text"`
	Subject           string          `json:"subject"`
	Topic             string          `json:"topic"`
	Embedding         pgvector.Vector `json:"embedding"`
	Frequency         int             `json:"frequency"`
	NoveltyScore      float64         `json:"novelty_score"`
	Source            string          `json:"source"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Origen de un registro global.
const (
	KBSourceStudentDiscovered = "student_discovered"
	KBSourceSynthesis         = "llm_synthesis"
)

// PromotionDecision resume el resultado del pipeline de promocion.
type PromotionDecision struct {
	Promoted       bool    `json:"promoted"`
	Reason         string  `json:"reason,omitempty"`
	Similarity     float64 `json:"similarity,omitempty"`
	SimilarTo      string  `json:"similar_to,omitempty"`
	LearnerCount   int     `json:"learner_count,omitempty"`
	Threshold      int     `json:"threshold,omitempty"`
	NoveltyScore   float64 `json:"novelty_score,omitempty"`
	GlobalRecordID string  `json:"global_record_id,omitempty"`
}

// Razones de rechazo de promocion.
const (
	PromotionReasonDuplicate             = "duplicate"
	PromotionReasonInsufficientFrequency = "insufficient_frequency"
	PromotionReasonError                 = "error"
)

// MisconceptionProgress resume el avance de resolucion en un topico.
type MisconceptionProgress struct {
	Topic                  string    `json:"topic"`
	TotalMisconceptions    int       `json:"total_misconceptions"`
	ActiveMisconceptions   int       `json:"active_misconceptions"`
	ResolvedMisconceptions int       `json:"resolved_misconceptions"`
	ResolutionRate         float64   `json:"resolution_rate"`
	LastUpdated            time.Time `json:"last_updated"`
}
