package risk

import (
	"regexp"
	"strings"
	"time"

	"github.com/dexsniper/sniperd/internal/domain"
)

// Sub-score bases. Every sub-score saturates at scoreCap.
const (
	contractBase  = 5.0
	marketBase    = 5.0
	socialBase    = 5.0
	technicalBase = 2.0

	noLiquidityScore = 9.0
	scoreCap         = 10.0
)

// suspiciousPattern flags naming tropes common in throwaway and honeypot
// tokens. Each hit costs half a point.
var suspiciousPattern = regexp.MustCompile(`(?i)test|fake|scam|pump|moon|safe|baby|mini|doge.?coin|shib.?inu`)

// memeIndicators trigger a single social penalty when any appears in the
// token's name or symbol.
var memeIndicators = []string{"doge", "shib", "pepe", "wojak", "chad", "moon"}

// analyzeLiquidity scores total pool depth by tier and penalizes liquidity
// concentrated in one pool.
func analyzeLiquidity(pools []domain.LiquidityPool) float64 {
	if len(pools) == 0 {
		return noLiquidityScore
	}

	var total, top float64
	for _, pool := range pools {
		total += pool.LiquidityUSD
		if pool.LiquidityUSD > top {
			top = pool.LiquidityUSD
		}
	}

	score := liquidityTierScore(total)
	if total > 0 {
		switch share := top / total; {
		case share > 0.9:
			score += 2.0
		case share > 0.8:
			score += 1.0
		}
	}
	return capScore(score)
}

func liquidityTierScore(totalUSD float64) float64 {
	switch {
	case totalUSD < 1_000:
		return 9
	case totalUSD < 10_000:
		return 7
	case totalUSD < 50_000:
		return 5
	case totalUSD < 100_000:
		return 3
	default:
		return 1
	}
}

// analyzeContract scores verification status, the explorer's safety verdict,
// and contract age. An unknown deploy time adds nothing.
func analyzeContract(sec domain.SecurityInfo, now time.Time) float64 {
	score := contractBase
	if !sec.IsVerified {
		score += 2.0
	}
	if !sec.IsSafe {
		score += 3.0
	}
	if age, ok := sec.Age(now); ok {
		switch {
		case age < time.Hour:
			score += 2.0
		case age < 24*time.Hour:
			score += 1.0
		}
	}
	return capScore(score)
}

// analyzeMarket scores supply size and naming quality. Metadata that failed
// to resolve arrives as empty strings and lands in the length penalties.
func analyzeMarket(info domain.TokenInfo) float64 {
	score := marketBase

	switch {
	case info.TotalSupply > 1e15:
		score += 2.0
	case info.TotalSupply > 1e12:
		score += 1.0
	}

	matches := suspiciousPattern.FindAllString(info.Symbol+" "+info.Name, -1)
	score += 0.5 * float64(len(matches))

	switch n := len(info.Symbol); {
	case n < 2:
		score += 1.0
	case n > 10:
		score += 0.5
	}
	switch n := len(info.Name); {
	case n < 3:
		score += 1.0
	case n > 50:
		score += 0.5
	}
	return capScore(score)
}

// analyzeSocial adds one flat penalty for meme-coin naming.
func analyzeSocial(info domain.TokenInfo) float64 {
	score := socialBase
	haystack := strings.ToLower(info.Name + " " + info.Symbol)
	for _, indicator := range memeIndicators {
		if strings.Contains(haystack, indicator) {
			score += 1.0
			break
		}
	}
	return capScore(score)
}

// analyzeTechnical scores decimal sanity and metadata completeness. Decimal
// value checks only run when the decimals call actually succeeded; absence
// is charged once through the missing-metadata penalty.
func analyzeTechnical(info domain.TokenInfo) float64 {
	score := technicalBase
	if info.HasDecimals {
		switch {
		case info.Decimals > 18:
			score += 2.0
		case info.Decimals == 0:
			score += 1.0
		}
	}
	if !info.HasName || !info.HasSymbol || !info.HasDecimals {
		score += 3.0
	}
	return capScore(score)
}

func capScore(score float64) float64 {
	if score > scoreCap {
		return scoreCap
	}
	if score < 0 {
		return 0
	}
	return score
}
