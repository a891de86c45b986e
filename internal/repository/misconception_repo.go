package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tutor-llm/internal/domain"
)

// PersonalMisconceptionRepository persiste el catalogo personal de
// concepciones erroneas. Los registros nunca se borran: el ciclo de vida
// (activa/resuelta/recaida) se refleja en columnas mutables.
type PersonalMisconceptionRepository interface {
	Create(ctx context.Context, mc domain.PersonalMisconception) error
	FindByText(ctx context.Context, learnerID, topic, text string) (*domain.PersonalMisconception, error)
	ListByLearner(ctx context.Context, learnerID, topic string, onlyUnresolved bool) ([]domain.PersonalMisconception, error)
	// RecordRelapse incrementa frecuencia, resetea la racha y fuerza el estado
	// activo (aunque estuviera resuelta).
	RecordRelapse(ctx context.Context, id string, occurredAt time.Time) error
	// RecordCorrect incrementa la racha; si alcanza threshold marca resuelta y
	// devuelve true.
	RecordCorrect(ctx context.Context, id string, threshold int, resolvedAt time.Time) (bool, error)
	// ResetStreak vuelve la racha a cero sin tocar la frecuencia (respuesta
	// incorrecta ligada a la concepcion, texto no necesariamente identico).
	ResetStreak(ctx context.Context, id string) error
	// CountDistinctLearnersMatching cuenta aprendices distintos con un registro
	// cuyo texto contiene al candidato (match por substring, case-insensitive).
	CountDistinctLearnersMatching(ctx context.Context, text string) (int, error)
	ProgressByTopic(ctx context.Context, learnerID string) ([]domain.MisconceptionProgress, error)
}

// PgPersonalMisconceptionRepository implementa el contrato sobre pgxpool.
type PgPersonalMisconceptionRepository struct {
	pool *pgxpool.Pool
}

func NewPgPersonalMisconceptionRepository(pool *pgxpool.Pool) *PgPersonalMisconceptionRepository {
	return &PgPersonalMisconceptionRepository{pool: pool}
}

const personalMisconceptionColumns = `
	id, learner_id, topic, misconception_text, question_context, student_reasoning,
	severity, related_trait, first_encountered, last_occurrence, frequency,
	correct_streak, resolved, resolution_date, targeted_question_count
`

func (r *PgPersonalMisconceptionRepository) Create(ctx context.Context, mc domain.PersonalMisconception) error {
	const query = `
		INSERT INTO personal_misconceptions (` + personalMisconceptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	var relatedTrait interface{}
	if mc.RelatedTrait != nil {
		relatedTrait = string(*mc.RelatedTrait)
	}
	var resolutionDate interface{}
	if mc.ResolutionDate != nil {
		resolutionDate = *mc.ResolutionDate
	}
	_, err := r.pool.Exec(ctx, query,
		mc.ID,
		mc.LearnerID,
		mc.Topic,
		mc.MisconceptionText,
		mc.QuestionContext,
		mc.StudentReasoning,
		mc.Severity,
		relatedTrait,
		mc.FirstEncountered,
		mc.LastOccurrence,
		mc.Frequency,
		mc.CorrectStreak,
		mc.Resolved,
		resolutionDate,
		mc.TargetedQuestionCount,
	)
	return err
}

func (r *PgPersonalMisconceptionRepository) FindByText(ctx context.Context, learnerID, topic, text string) (*domain.PersonalMisconception, error) {
	const query = `
		SELECT ` + personalMisconceptionColumns + `
		FROM personal_misconceptions
		WHERE learner_id = $1 AND topic = $2 AND lower(misconception_text) = lower($3)
		LIMIT 1
	`
	rows, err := r.pool.Query(ctx, query, learnerID, topic, strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := scanPersonalMisconceptions(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *PgPersonalMisconceptionRepository) ListByLearner(ctx context.Context, learnerID, topic string, onlyUnresolved bool) ([]domain.PersonalMisconception, error) {
	query := `
		SELECT ` + personalMisconceptionColumns + `
		FROM personal_misconceptions
		WHERE learner_id = $1
	`
	args := []interface{}{learnerID}
	if topic != "" {
		query += ` AND topic = $2`
		args = append(args, topic)
	}
	if onlyUnresolved {
		query += ` AND resolved = false`
	}
	query += ` ORDER BY last_occurrence DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPersonalMisconceptions(rows)
}

func (r *PgPersonalMisconceptionRepository) RecordRelapse(ctx context.Context, id string, occurredAt time.Time) error {
	const query = `
		UPDATE personal_misconceptions
		SET frequency = frequency + 1,
		    last_occurrence = $2,
		    correct_streak = 0,
		    resolved = false,
		    resolution_date = NULL
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, occurredAt)
	return err
}

func (r *PgPersonalMisconceptionRepository) RecordCorrect(ctx context.Context, id string, threshold int, resolvedAt time.Time) (bool, error) {
	const increment = `
		UPDATE personal_misconceptions
		SET correct_streak = correct_streak + 1
		WHERE id = $1
		RETURNING correct_streak
	`
	var streak int
	if err := r.pool.QueryRow(ctx, increment, id).Scan(&streak); err != nil {
		return false, err
	}
	if streak < threshold {
		return false, nil
	}

	const resolve = `
		UPDATE personal_misconceptions
		SET resolved = true, resolution_date = $2
		WHERE id = $1 AND resolved = false
	`
	if _, err := r.pool.Exec(ctx, resolve, id, resolvedAt); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PgPersonalMisconceptionRepository) ResetStreak(ctx context.Context, id string) error {
	const query = `
		UPDATE personal_misconceptions
		SET correct_streak = 0, resolved = false, resolution_date = NULL
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *PgPersonalMisconceptionRepository) CountDistinctLearnersMatching(ctx context.Context, text string) (int, error) {
	const query = `
		SELECT COUNT(DISTINCT learner_id)
		FROM personal_misconceptions
		WHERE misconception_text ILIKE '%' || $1 || '%'
	`
	var count int
	err := r.pool.QueryRow(ctx, query, strings.TrimSpace(text)).Scan(&count)
	return count, err
}

func (r *PgPersonalMisconceptionRepository) ProgressByTopic(ctx context.Context, learnerID string) ([]domain.MisconceptionProgress, error) {
	const query = `
		SELECT topic,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE resolved),
		       MAX(last_occurrence)
		FROM personal_misconceptions
		WHERE learner_id = $1
		GROUP BY topic
		ORDER BY topic
	`
	rows, err := r.pool.Query(ctx, query, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []domain.MisconceptionProgress
	for rows.Next() {
		var p domain.MisconceptionProgress
		if err := rows.Scan(&p.Topic, &p.TotalMisconceptions, &p.ResolvedMisconceptions, &p.LastUpdated); err != nil {
			return nil, err
		}
		p.ActiveMisconceptions = p.TotalMisconceptions - p.ResolvedMisconceptions
		if p.TotalMisconceptions > 0 {
			p.ResolutionRate = float64(p.ResolvedMisconceptions) / float64(p.TotalMisconceptions)
		}
		progress = append(progress, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return progress, nil
}

func scanPersonalMisconceptions(rows pgxRows) ([]domain.PersonalMisconception, error) {
	var out []domain.PersonalMisconception
	for rows.Next() {
		var (
			mc             domain.PersonalMisconception
			relatedTrait   sql.NullString
			resolutionDate sql.NullTime
		)
		if err := rows.Scan(
			&mc.ID,
			&mc.LearnerID,
			&mc.Topic,
			&mc.MisconceptionText,
			&mc.QuestionContext,
			&mc.StudentReasoning,
			&mc.Severity,
			&relatedTrait,
			&mc.FirstEncountered,
			&mc.LastOccurrence,
			&mc.Frequency,
			&mc.CorrectStreak,
			&mc.Resolved,
			&resolutionDate,
			&mc.TargetedQuestionCount,
		); err != nil {
			return nil, err
		}
		if relatedTrait.Valid {
			if t, ok := domain.ParseTraitName(relatedTrait.String); ok {
				mc.RelatedTrait = &t
			}
		}
		if resolutionDate.Valid {
			d := resolutionDate.Time
			mc.ResolutionDate = &d
		}
		out = append(out, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// pgxRows is a minimal interface to allow scanning from pgx rows and simplify testing.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}
