package domain

// EvidenceSample resume cuanto soporta (o contradice) un evento al estimado
// actual de un rasgo. Es efimero: se recalcula en cada ciclo, no se persiste.
type EvidenceSample struct {
	Trait      TraitName          `json:"trait"`
	Score      float64            `json:"score"`
	Weight     float64            `json:"weight"`
	Components EvidenceComponents `json:"components"`
}

// EvidenceComponents expone el desglose de señales para auditoria.
type EvidenceComponents struct {
	Correctness          float64  `json:"correctness"`
	Calibration          float64  `json:"calibration"`
	Reasoning            *float64 `json:"reasoning,omitempty"`
	MisconceptionPenalty float64  `json:"misconception_penalty,omitempty"`
}

// TraitDiagnostic documenta como cambio un rasgo en una actualizacion.
type TraitDiagnostic struct {
	Trait          TraitName `json:"trait"`
	OldValue       float64   `json:"old_value"`
	NewValue       float64   `json:"new_value"`
	Change         float64   `json:"change"`
	EvidenceCount  int       `json:"evidence_count"`
	AvgPerformance float64   `json:"avg_performance,omitempty"`
	Gain           float64   `json:"gain,omitempty"`
	Method         string    `json:"method"`
}

// Metodos posibles en TraitDiagnostic.
const (
	UpdateMethodKalman     = "evidence_kalman"
	UpdateMethodNoEvidence = "no_evidence"
)

// EvidenceLogEntry es una linea plana del log de evidencia (evento x rasgo).
type EvidenceLogEntry struct {
	QuestionID string         `json:"question_id"`
	Sample     EvidenceSample `json:"sample"`
}

// TraitUpdateResult agrupa el vector actualizado con sus diagnosticos.
type TraitUpdateResult struct {
	Traits      TraitVector                   `json:"traits"`
	Topic       string                        `json:"topic,omitempty"`
	Diagnostics map[TraitName]TraitDiagnostic `json:"diagnostics"`
	EvidenceLog []EvidenceLogEntry            `json:"evidence_log"`
}
