package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dexsniper/sniperd/internal/domain"
)

func poolsWithLiquidity(amounts ...float64) []domain.LiquidityPool {
	pools := make([]domain.LiquidityPool, 0, len(amounts))
	for _, usd := range amounts {
		pools = append(pools, domain.LiquidityPool{LiquidityUSD: usd})
	}
	return pools
}

func TestAnalyzeLiquidityTiers(t *testing.T) {
	testCases := []struct {
		name     string
		pools    []domain.LiquidityPool
		expected float64
	}{
		// two equal pools keep the concentration penalty out of the way
		{name: "Dust", pools: poolsWithLiquidity(250, 250), expected: 9},
		{name: "Thin", pools: poolsWithLiquidity(2_500, 2_500), expected: 7},
		{name: "Shallow", pools: poolsWithLiquidity(10_000, 10_000), expected: 5},
		{name: "Decent", pools: poolsWithLiquidity(30_000, 30_000), expected: 3},
		{name: "Deep", pools: poolsWithLiquidity(60_000, 60_000), expected: 1},
		{name: "No Pools", pools: nil, expected: 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, analyzeLiquidity(tc.pools), 1e-12)
		})
	}
}

func TestAnalyzeLiquidityConcentration(t *testing.T) {
	// $200k total, 95/5 split: tier 1.0 plus the heavy concentration penalty
	assert.InDelta(t, 3.0, analyzeLiquidity(poolsWithLiquidity(190_000, 10_000)), 1e-12)

	// 85/15 split only trips the lighter penalty
	assert.InDelta(t, 2.0, analyzeLiquidity(poolsWithLiquidity(170_000, 30_000)), 1e-12)

	// an even split adds nothing
	assert.InDelta(t, 1.0, analyzeLiquidity(poolsWithLiquidity(100_000, 100_000)), 1e-12)

	// a lone pool always holds everything
	assert.InDelta(t, 5.0, analyzeLiquidity(poolsWithLiquidity(60_000)), 1e-12)
}

func TestAnalyzeContract(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		sec      domain.SecurityInfo
		expected float64
	}{
		{
			name:     "Established Verified Contract",
			sec:      domain.SecurityInfo{IsSafe: true, IsVerified: true, CreatedAt: now.Add(-30 * 24 * time.Hour)},
			expected: 5.0,
		},
		{
			name:     "Unverified",
			sec:      domain.SecurityInfo{IsSafe: true, IsVerified: false, CreatedAt: now.Add(-30 * 24 * time.Hour)},
			expected: 7.0,
		},
		{
			name:     "Flagged Unsafe",
			sec:      domain.SecurityInfo{IsSafe: false, IsVerified: true, CreatedAt: now.Add(-30 * 24 * time.Hour)},
			expected: 8.0,
		},
		{
			name:     "Unverified And Unsafe Saturates",
			sec:      domain.SecurityInfo{IsSafe: false, IsVerified: false, CreatedAt: now.Add(-30 * 24 * time.Hour)},
			expected: 10.0,
		},
		{
			name:     "Deployed Minutes Ago",
			sec:      domain.SecurityInfo{IsSafe: true, IsVerified: true, CreatedAt: now.Add(-30 * time.Minute)},
			expected: 7.0,
		},
		{
			name:     "Deployed Today",
			sec:      domain.SecurityInfo{IsSafe: true, IsVerified: true, CreatedAt: now.Add(-12 * time.Hour)},
			expected: 6.0,
		},
		{
			name:     "Unknown Deploy Time",
			sec:      domain.SecurityInfo{IsSafe: true, IsVerified: true},
			expected: 5.0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, analyzeContract(tc.sec, now), 1e-12)
		})
	}
}

func metadataToken(symbol, name string, decimals uint8, supply float64) domain.TokenInfo {
	return domain.TokenInfo{
		Symbol:      symbol,
		Name:        name,
		Decimals:    decimals,
		TotalSupply: supply,
		HasSymbol:   true,
		HasName:     true,
		HasDecimals: true,
	}
}

func TestAnalyzeMarket(t *testing.T) {
	testCases := []struct {
		name     string
		info     domain.TokenInfo
		expected float64
	}{
		{name: "Clean", info: metadataToken("TKN", "Token", 18, 1_000_000), expected: 5.0},
		{name: "Big Supply", info: metadataToken("TKN", "Token", 18, 1e13), expected: 6.0},
		{name: "Huge Supply", info: metadataToken("TKN", "Token", 18, 1e16), expected: 7.0},
		{name: "Suspicious Naming", info: metadataToken("SAFEMOON", "SafeMoon", 18, 1_000_000), expected: 7.0},
		{name: "One Letter Symbol", info: metadataToken("X", "Token", 18, 1_000_000), expected: 6.0},
		{name: "Overlong Symbol", info: metadataToken("TOKENTOKENX", "Token", 18, 1_000_000), expected: 5.5},
		{name: "Tiny Name", info: metadataToken("TKN", "TK", 18, 1_000_000), expected: 6.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, analyzeMarket(tc.info), 1e-12)
		})
	}
}

func TestAnalyzeSocial(t *testing.T) {
	assert.InDelta(t, 5.0, analyzeSocial(metadataToken("TKN", "Token", 18, 0)), 1e-12)
	assert.InDelta(t, 6.0, analyzeSocial(metadataToken("DOGE", "DogeKing", 18, 0)), 1e-12)

	// several indicators still cost a single point
	assert.InDelta(t, 6.0, analyzeSocial(metadataToken("DOGEMOON", "DogeMoon Pepe", 18, 0)), 1e-12)
}

func TestAnalyzeTechnical(t *testing.T) {
	full := metadataToken("TKN", "Token", 18, 0)
	assert.InDelta(t, 2.0, analyzeTechnical(full), 1e-12)

	weird := metadataToken("TKN", "Token", 24, 0)
	assert.InDelta(t, 4.0, analyzeTechnical(weird), 1e-12)

	zero := metadataToken("TKN", "Token", 0, 0)
	assert.InDelta(t, 3.0, analyzeTechnical(zero), 1e-12)

	noName := metadataToken("TKN", "Token", 18, 0)
	noName.HasName = false
	assert.InDelta(t, 5.0, analyzeTechnical(noName), 1e-12)

	// missing decimals is charged once, not through the value checks
	noDecimals := metadataToken("TKN", "Token", 0, 0)
	noDecimals.HasDecimals = false
	assert.InDelta(t, 5.0, analyzeTechnical(noDecimals), 1e-12)
}
