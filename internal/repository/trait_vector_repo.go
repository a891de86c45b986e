package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutor-llm/internal/domain"
)

// TraitVectorRepository persiste el vector de rasgos por (aprendiz, topico).
// topic vacio identifica el vector global del aprendiz.
type TraitVectorRepository interface {
	Get(ctx context.Context, learnerID, topic string) (domain.StoredTraitVector, error)
	// Save escribe el vector solo si la version persistida coincide con
	// expectedVersion; devuelve domain.ErrVersionConflict si otra escritura gano.
	Save(ctx context.Context, stored domain.StoredTraitVector, expectedVersion int64) error
}

// PgTraitVectorRepository implementa TraitVectorRepository usando pgxpool.
type PgTraitVectorRepository struct {
	pool *pgxpool.Pool
}

func NewPgTraitVectorRepository(pool *pgxpool.Pool) *PgTraitVectorRepository {
	return &PgTraitVectorRepository{pool: pool}
}

func (r *PgTraitVectorRepository) Get(ctx context.Context, learnerID, topic string) (domain.StoredTraitVector, error) {
	const query = `
		SELECT learner_id, topic, traits, version, updated_at
		FROM trait_vectors
		WHERE learner_id = $1 AND topic = $2
	`
	var (
		stored    domain.StoredTraitVector
		traitsRaw []byte
	)
	err := r.pool.QueryRow(ctx, query, learnerID, topic).Scan(
		&stored.LearnerID,
		&stored.Topic,
		&traitsRaw,
		&stored.Version,
		&stored.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Sin fila todavia: el vector arranca neutral en version 0 y la primera
		// escritura lo materializa.
		return domain.StoredTraitVector{
			LearnerID: learnerID,
			Topic:     topic,
			Traits:    domain.NewNeutralTraitVector(),
			Version:   0,
		}, nil
	}
	if err != nil {
		return domain.StoredTraitVector{}, err
	}

	traits := make(domain.TraitVector)
	if err := json.Unmarshal(traitsRaw, &traits); err != nil {
		return domain.StoredTraitVector{}, fmt.Errorf("decode traits: %w", err)
	}
	stored.Traits = traits
	return stored, nil
}

func (r *PgTraitVectorRepository) Save(ctx context.Context, stored domain.StoredTraitVector, expectedVersion int64) error {
	traitsRaw, err := json.Marshal(stored.Traits)
	if err != nil {
		return fmt.Errorf("encode traits: %w", err)
	}

	if expectedVersion == 0 {
		const insert = `
			INSERT INTO trait_vectors (learner_id, topic, traits, version, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (learner_id, topic) DO NOTHING
		`
		tag, err := r.pool.Exec(ctx, insert, stored.LearnerID, stored.Topic, traitsRaw, stored.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrVersionConflict
		}
		return nil
	}

	const update = `
		UPDATE trait_vectors
		SET traits = $3, version = version + 1, updated_at = $4
		WHERE learner_id = $1 AND topic = $2 AND version = $5
	`
	tag, err := r.pool.Exec(ctx, update, stored.LearnerID, stored.Topic, traitsRaw, stored.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
