package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutor-llm/internal/domain"
)

// LearnerRepository define el contrato de persistencia para aprendices.
type LearnerRepository interface {
	Create(ctx context.Context, learner domain.Learner) error
	GetByID(ctx context.Context, id string) (domain.Learner, error)
}

// PgLearnerRepository implementa LearnerRepository usando pgxpool.
type PgLearnerRepository struct {
	pool *pgxpool.Pool
}

func NewPgLearnerRepository(pool *pgxpool.Pool) *PgLearnerRepository {
	return &PgLearnerRepository{pool: pool}
}

func (r *PgLearnerRepository) Create(ctx context.Context, learner domain.Learner) error {
	const query = `
		INSERT INTO learners (id, email, display_name, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		learner.ID,
		learner.Email,
		learner.DisplayName,
		learner.CreatedAt,
	)
	return err
}

func (r *PgLearnerRepository) GetByID(ctx context.Context, id string) (domain.Learner, error) {
	const query = `
		SELECT id, email, display_name, created_at
		FROM learners
		WHERE id = $1
	`
	var l domain.Learner
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&l.ID,
		&l.Email,
		&l.DisplayName,
		&l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Learner{}, domain.ErrLearnerNotFound
	}
	return l, err
}
