package domain

import (
	"errors"
	"time"
)

// ErrLearnerNotFound es el unico error de consistencia que el motor propaga:
// no se puede actualizar el vector de un aprendiz inexistente.
var ErrLearnerNotFound = errors.New("learner not found")

// ErrVersionConflict indica que otra escritura gano la carrera sobre el vector.
var ErrVersionConflict = errors.New("trait vector version conflict")

// Learner es el dueño de un TraitVector global y de vectores por topico.
type Learner struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoredTraitVector es el vector persistido con su version para el chequeo
// optimista de escritura (una sola submission humana a la vez por aprendiz).
type StoredTraitVector struct {
	LearnerID string      `json:"learner_id"`
	Topic     string      `json:"topic,omitempty"`
	Traits    TraitVector `json:"traits"`
	Version   int64       `json:"version"`
	UpdatedAt time.Time   `json:"updated_at"`
}
