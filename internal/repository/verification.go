package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
)

// VerificationRepository persiste o resumo de cada veredito (sem imagens nem embeddings)
type VerificationRepository struct {
	pool PgxPool
}

func NewVerificationRepository(pool PgxPool) *VerificationRepository {
	return &VerificationRepository{pool: pool}
}

func (r *VerificationRepository) Create(ctx context.Context, v *domain.VerificationRecord) error {
	query := `
		INSERT INTO verifications (id, mode, ok, reason, similarity, threshold, is_match, match_percent, liveness_passed, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query,
		v.ID,
		string(v.Mode),
		v.OK,
		nullableString(v.Reason),
		v.Similarity,
		v.Threshold,
		v.IsMatch,
		v.MatchPercent,
		v.LivenessPassed,
		v.LatencyMs,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create verification: %w", err)
	}

	return nil
}

// ReasonCount is one row of CountByReason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// CountByReason aggregates verdicts recorded since the given time. Matches
// and non-matches that completed scoring are reported as "match" and
// "noMatch".
func (r *VerificationRepository) CountByReason(ctx context.Context, since time.Time) ([]ReasonCount, error) {
	query := `
		SELECT
			CASE
				WHEN reason IS NOT NULL THEN reason
				WHEN is_match THEN 'match'
				ELSE 'noMatch'
			END AS outcome,
			COUNT(*)
		FROM verifications
		WHERE created_at >= $1
		GROUP BY outcome
		ORDER BY COUNT(*) DESC, outcome
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("count verifications: %w", err)
	}
	defer rows.Close()

	counts := []ReasonCount{}
	for rows.Next() {
		var c ReasonCount
		if err := rows.Scan(&c.Reason, &c.Count); err != nil {
			return nil, fmt.Errorf("scan verification count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification counts: %w", err)
	}

	return counts, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
