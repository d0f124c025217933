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

// QuoteStore implements domain.QuoteJournal using PostgreSQL. Scalar quote
// fields are flattened into columns; the selected route is kept verbatim as
// JSONB.
type QuoteStore struct {
	pool *pgxpool.Pool
}

// NewQuoteStore creates a QuoteStore backed by the given connection pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

const quoteSelectCols = `id, input_token, input_symbol, input_decimals,
	output_token, output_symbol, output_decimals,
	input_amount, output_amount, minimum_output, exchange_rate,
	price_impact_pct, total_fee_pct, gas_cost_usd,
	deadline, max_slippage, confidence, freshness_score, route, created_at`

func scanQuoteRows(rows pgx.Rows) ([]domain.RouteQuote, error) {
	var quotes []domain.RouteQuote
	for rows.Next() {
		var (
			q             domain.RouteQuote
			inTok, outTok string
			inDec, outDec int16
			routeJSON     []byte
		)
		if err := rows.Scan(
			&q.ID, &inTok, &q.InputToken.Symbol, &inDec,
			&outTok, &q.OutputToken.Symbol, &outDec,
			&q.InputAmount, &q.OutputAmount, &q.MinimumOutput, &q.ExchangeRate,
			&q.PriceImpactPct, &q.TotalFeePct, &q.GasCostUSD,
			&q.Deadline, &q.MaxSlippage, &q.Confidence, &q.FreshnessScore,
			&routeJSON, &q.CreatedAt,
		); err != nil {
			return nil, err
		}
		q.InputToken.Address = common.HexToAddress(inTok)
		q.InputToken.Decimals = uint8(inDec)
		q.OutputToken.Address = common.HexToAddress(outTok)
		q.OutputToken.Decimals = uint8(outDec)
		if err := json.Unmarshal(routeJSON, &q.Route); err != nil {
			return nil, fmt.Errorf("unmarshal route for quote %s: %w", q.ID, err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// Insert appends a quote to the journal. Re-inserting an already journaled
// quote ID is a no-op.
func (s *QuoteStore) Insert(ctx context.Context, q domain.RouteQuote) error {
	routeJSON, err := json.Marshal(q.Route)
	if err != nil {
		return fmt.Errorf("postgres: marshal route for quote %s: %w", q.ID, err)
	}

	const query = `
		INSERT INTO quote_history (
			id, input_token, input_symbol, input_decimals,
			output_token, output_symbol, output_decimals,
			input_amount, output_amount, minimum_output, exchange_rate,
			price_impact_pct, total_fee_pct, gas_cost_usd,
			deadline, max_slippage, confidence, freshness_score, route, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18, $19, $20
		) ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		q.ID, q.InputToken.Address.Hex(), q.InputToken.Symbol, int16(q.InputToken.Decimals),
		q.OutputToken.Address.Hex(), q.OutputToken.Symbol, int16(q.OutputToken.Decimals),
		q.InputAmount, q.OutputAmount, q.MinimumOutput, q.ExchangeRate,
		q.PriceImpactPct, q.TotalFeePct, q.GasCostUSD,
		q.Deadline, q.MaxSlippage, q.Confidence, q.FreshnessScore,
		routeJSON, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert quote %s: %w", q.ID, err)
	}
	return nil
}

// ListRecent returns the newest journaled quotes first.
func (s *QuoteStore) ListRecent(ctx context.Context, limit int) ([]domain.RouteQuote, error) {
	query := `SELECT ` + quoteSelectCols + ` FROM quote_history ORDER BY created_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent quotes: %w", err)
	}
	defer rows.Close()

	quotes, err := scanQuoteRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent quotes: %w", err)
	}
	return quotes, nil
}

// ListBefore returns quotes created strictly before the cutoff in creation
// order, for archiving.
func (s *QuoteStore) ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.RouteQuote, error) {
	query := `SELECT ` + quoteSelectCols + ` FROM quote_history WHERE created_at < $1`
	args := []any{cutoff}
	query, args = appendWindow(query, args, "created_at", "ASC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list quotes before: %w", err)
	}
	defer rows.Close()

	quotes, err := scanQuoteRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan quotes before: %w", err)
	}
	return quotes, nil
}

// DeleteBefore removes quotes created strictly before the cutoff and returns
// the number removed.
func (s *QuoteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quote_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete quotes before: %w", err)
	}
	return tag.RowsAffected(), nil
}
