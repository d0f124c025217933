package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dexsniper/sniperd/internal/domain"
)

// SnipeStore implements domain.SnipeJournal using PostgreSQL.
type SnipeStore struct {
	pool *pgxpool.Pool
}

// NewSnipeStore creates a SnipeStore backed by the given connection pool.
func NewSnipeStore(pool *pgxpool.Pool) *SnipeStore {
	return &SnipeStore{pool: pool}
}

const snipeSelectCols = `id, network, exchange, pair_address, target_token,
	status, reason, risk_score, risk_level, quote_id, plan_id, tx_ref, created_at`

func scanSnipeRows(rows pgx.Rows) ([]domain.SnipeRecord, error) {
	var records []domain.SnipeRecord
	for rows.Next() {
		var (
			rec          domain.SnipeRecord
			pair, target string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Network, &rec.Exchange, &pair, &target,
			&rec.Status, &rec.Reason, &rec.RiskScore, &rec.RiskLevel,
			&rec.QuoteID, &rec.PlanID, &rec.TxRef, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.PairAddress = common.HexToAddress(pair)
		rec.TargetToken = common.HexToAddress(target)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Insert appends a snipe outcome to the journal. Re-inserting an already
// journaled record ID is a no-op.
func (s *SnipeStore) Insert(ctx context.Context, rec domain.SnipeRecord) error {
	const query = `
		INSERT INTO snipe_history (
			id, network, exchange, pair_address, target_token,
			status, reason, risk_score, risk_level, quote_id, plan_id, tx_ref, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12, $13
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Network, rec.Exchange, rec.PairAddress.Hex(), rec.TargetToken.Hex(),
		rec.Status, rec.Reason, rec.RiskScore, rec.RiskLevel,
		rec.QuoteID, rec.PlanID, rec.TxRef, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert snipe %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the newest journaled snipe outcomes first.
func (s *SnipeStore) ListRecent(ctx context.Context, limit int) ([]domain.SnipeRecord, error) {
	query := `SELECT ` + snipeSelectCols + ` FROM snipe_history ORDER BY created_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent snipes: %w", err)
	}
	defer rows.Close()

	records, err := scanSnipeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent snipes: %w", err)
	}
	return records, nil
}

// ListBefore returns snipe outcomes recorded strictly before the cutoff in
// creation order, for archiving.
func (s *SnipeStore) ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.SnipeRecord, error) {
	query := `SELECT ` + snipeSelectCols + ` FROM snipe_history WHERE created_at < $1`
	args := []any{cutoff}
	query, args = appendWindow(query, args, "created_at", "ASC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snipes before: %w", err)
	}
	defer rows.Close()

	records, err := scanSnipeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snipes before: %w", err)
	}
	return records, nil
}

// DeleteBefore removes snipe outcomes recorded strictly before the cutoff and
// returns the number removed.
func (s *SnipeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snipe_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snipes before: %w", err)
	}
	return tag.RowsAffected(), nil
}
