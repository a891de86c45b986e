package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"tutor-llm/internal/domain"
)

// KnowledgeBaseRepository gestiona la base compartida de concepciones erroneas.
// Es append-only: los registros promovidos no se mutan ni se borran.
type KnowledgeBaseRepository interface {
	Insert(ctx context.Context, record domain.GlobalMisconceptionRecord) error
	// Nearest devuelve los k vecinos mas cercanos al embedding dentro del
	// subject indicado (o de toda la base si subject es vacio), junto con la
	// distancia coseno de cada uno.
	Nearest(ctx context.Context, subject string, embedding pgvector.Vector, k int) ([]NeighborRecord, error)
}

// NeighborRecord es un registro global con su distancia a la query.
type NeighborRecord struct {
	Record   domain.GlobalMisconceptionRecord
	Distance float64
}

// PgKnowledgeBaseRepository implementa KnowledgeBaseRepository sobre pgvector.
type PgKnowledgeBaseRepository struct {
	pool *pgxpool.Pool
}

func NewPgKnowledgeBaseRepository(pool *pgxpool.Pool) *PgKnowledgeBaseRepository {
	return &PgKnowledgeBaseRepository{pool: pool}
}

func (r *PgKnowledgeBaseRepository) Insert(ctx context.Context, record domain.GlobalMisconceptionRecord) error {
	const query = `
		INSERT INTO global_misconceptions (
			id, misconception_text, subject, topic, embedding, frequency, novelty_score, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.MisconceptionText,
		record.Subject,
		record.Topic,
		record.Embedding,
		record.Frequency,
		record.NoveltyScore,
		record.Source,
		record.CreatedAt,
	)
	return err
}

func (r *PgKnowledgeBaseRepository) Nearest(ctx context.Context, subject string, embedding pgvector.Vector, k int) ([]NeighborRecord, error) {
	if k <= 0 {
		k = 3
	}

	const bySubject = `
		SELECT id, misconception_text, subject, topic, embedding, frequency, novelty_score, source, created_at,
		       embedding <=> $1 AS distance
		FROM global_misconceptions
		WHERE subject = $2
		ORDER BY distance
		LIMIT $3
	`
	const allSubjects = `
		SELECT id, misconception_text, subject, topic, embedding, frequency, novelty_score, source, created_at,
		       embedding <=> $1 AS distance
		FROM global_misconceptions
		ORDER BY distance
		LIMIT $2
	`

	var (
		rows pgx.Rows
		err  error
	)
	if subject != "" {
		rows, err = r.pool.Query(ctx, bySubject, embedding, subject, k)
	} else {
		rows, err = r.pool.Query(ctx, allSubjects, embedding, k)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var neighbors []NeighborRecord
	for rows.Next() {
		var n NeighborRecord
		if err := rows.Scan(
			&n.Record.ID,
			&n.Record.MisconceptionText,
			&n.Record.Subject,
			&n.Record.Topic,
			&n.Record.Embedding,
			&n.Record.Frequency,
			&n.Record.NoveltyScore,
			&n.Record.Source,
			&n.Record.CreatedAt,
			&n.Distance,
		); err != nil {
			return nil, err
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return neighbors, nil
}
