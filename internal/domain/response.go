package domain

// QuizResponseEvent es la respuesta de un aprendiz a una pregunta.
// Se crea al momento del submit y nunca se muta: el motor la consume una vez.
type QuizResponseEvent struct {
	QuestionID     string   `json:"question_id"`
	SelectedOption string   `json:"selected_option"`
	CorrectOption  string   `json:"correct_option,omitempty"`
	IsCorrect      bool     `json:"is_correct"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning,omitempty"`
	TraitsTargeted []string `json:"traits_targeted,omitempty"`

	// Metadata de la pregunta, usada para inferir la fila Q-matrix cuando
	// traits_targeted viene vacio.
	QuestionText        string   `json:"question_text,omitempty"`
	AllOptions          []string `json:"all_options,omitempty"`
	Difficulty          string   `json:"difficulty,omitempty"`
	RequiresCalculation bool     `json:"requires_calculation,omitempty"`
	MisconceptionTarget string   `json:"misconception_target,omitempty"`
}

// TargetedTraits resuelve la fila Q-matrix del evento: usa el tag explicito
// si existe y si no infiere desde la metadata de la pregunta.
func (e QuizResponseEvent) TargetedTraits() []TraitName {
	if len(e.TraitsTargeted) > 0 {
		var traits []TraitName
		for _, raw := range e.TraitsTargeted {
			if t, ok := ParseTraitName(raw); ok {
				traits = appendUniqueTrait(traits, t)
			}
		}
		if len(traits) > 0 {
			return traits
		}
	}
	return e.inferTraits()
}

func (e QuizResponseEvent) inferTraits() []TraitName {
	var traits []TraitName
	if e.RequiresCalculation {
		traits = appendUniqueTrait(traits, TraitPrecision)
		traits = appendUniqueTrait(traits, TraitAnalyticalDepth)
	}
	if e.Difficulty == "hard" {
		traits = appendUniqueTrait(traits, TraitCognitiveFlexibility)
		traits = appendUniqueTrait(traits, TraitAnalyticalDepth)
	}
	if e.MisconceptionTarget != "" {
		traits = appendUniqueTrait(traits, TraitPatternRecognition)
	}
	if len(traits) == 0 {
		traits = []TraitName{TraitAnalyticalDepth, TraitPrecision}
	}
	return traits
}

func appendUniqueTrait(traits []TraitName, t TraitName) []TraitName {
	for _, existing := range traits {
		if existing == t {
			return traits
		}
	}
	return append(traits, t)
}
