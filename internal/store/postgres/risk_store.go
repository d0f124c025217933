package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dexsniper/sniperd/internal/domain"
)

// RiskStore implements domain.AssessmentJournal using PostgreSQL. The five
// factor scores are flattened into columns; warnings and recommendations are
// stored as JSONB arrays.
type RiskStore struct {
	pool *pgxpool.Pool
}

// NewRiskStore creates a RiskStore backed by the given connection pool.
func NewRiskStore(pool *pgxpool.Pool) *RiskStore {
	return &RiskStore{pool: pool}
}

const riskSelectCols = `token, network,
	liquidity_score, contract_score, market_score, social_score, technical_score,
	score, level, warnings, recommendations, confidence, assessed_at`

func scanAssessmentRows(rows pgx.Rows) ([]domain.RiskAssessment, error) {
	var assessments []domain.RiskAssessment
	for rows.Next() {
		var (
			a                  domain.RiskAssessment
			token              string
			warnJSON, recsJSON []byte
		)
		if err := rows.Scan(
			&token, &a.Network,
			&a.Factors.Liquidity, &a.Factors.Contract, &a.Factors.Market,
			&a.Factors.Social, &a.Factors.Technical,
			&a.Score, &a.Level, &warnJSON, &recsJSON, &a.Confidence, &a.AssessedAt,
		); err != nil {
			return nil, err
		}
		a.Token = common.HexToAddress(token)
		if warnJSON != nil {
			if err := json.Unmarshal(warnJSON, &a.Warnings); err != nil {
				return nil, fmt.Errorf("unmarshal warnings for %s: %w", token, err)
			}
		}
		if recsJSON != nil {
			if err := json.Unmarshal(recsJSON, &a.Recommendations); err != nil {
				return nil, fmt.Errorf("unmarshal recommendations for %s: %w", token, err)
			}
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

// Insert appends an assessment to the journal.
func (s *RiskStore) Insert(ctx context.Context, a domain.RiskAssessment) error {
	warnJSON, err := json.Marshal(a.Warnings)
	if err != nil {
		return fmt.Errorf("postgres: marshal warnings for %s: %w", a.Token.Hex(), err)
	}
	recsJSON, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("postgres: marshal recommendations for %s: %w", a.Token.Hex(), err)
	}

	const query = `
		INSERT INTO risk_history (
			token, network,
			liquidity_score, contract_score, market_score, social_score, technical_score,
			score, level, warnings, recommendations, confidence, assessed_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13
		)`

	_, err = s.pool.Exec(ctx, query,
		a.Token.Hex(), a.Network,
		a.Factors.Liquidity, a.Factors.Contract, a.Factors.Market,
		a.Factors.Social, a.Factors.Technical,
		a.Score, a.Level, warnJSON, recsJSON, a.Confidence, a.AssessedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert assessment for %s: %w", a.Token.Hex(), err)
	}
	return nil
}

// ListRecent returns the newest journaled assessments first.
func (s *RiskStore) ListRecent(ctx context.Context, limit int) ([]domain.RiskAssessment, error) {
	query := `SELECT ` + riskSelectCols + ` FROM risk_history ORDER BY assessed_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent assessments: %w", err)
	}
	defer rows.Close()

	assessments, err := scanAssessmentRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent assessments: %w", err)
	}
	return assessments, nil
}

// ListBefore returns assessments made strictly before the cutoff in
// assessment order, for archiving.
func (s *RiskStore) ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.RiskAssessment, error) {
	query := `SELECT ` + riskSelectCols + ` FROM risk_history WHERE assessed_at < $1`
	args := []any{cutoff}
	query, args = appendWindow(query, args, "assessed_at", "ASC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list assessments before: %w", err)
	}
	defer rows.Close()

	assessments, err := scanAssessmentRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan assessments before: %w", err)
	}
	return assessments, nil
}

// DeleteBefore removes assessments made strictly before the cutoff and
// returns the number removed.
func (s *RiskStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM risk_history WHERE assessed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete assessments before: %w", err)
	}
	return tag.RowsAffected(), nil
}
