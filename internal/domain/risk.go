package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RiskLevel is the discrete classification derived from a composite risk
// score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelFor maps a composite 0..10 score onto a level. Boundaries are
// inclusive on the lower end: 8.0 is CRITICAL, 6.0 is HIGH, 4.0 is MEDIUM.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 8.0:
		return RiskCritical
	case score >= 6.0:
		return RiskHigh
	case score >= 4.0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Rank orders levels for gate comparisons, LOW lowest. Unknown levels rank
// with CRITICAL.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 3
	}
}

// RiskFactors holds the per-dimension risk scores, each on a 0..10 scale
// where 10 is most dangerous.
type RiskFactors struct {
	Liquidity float64
	Contract  float64
	Market    float64
	Social    float64
	Technical float64
}

// RiskAssessment is the complete result of analysing one token on one
// network. Confidence reflects how much of the underlying data was actually
// available, not how risky the token is.
type RiskAssessment struct {
	Token           common.Address
	Network         string
	Factors         RiskFactors
	Score           float64
	Level           RiskLevel
	Warnings        []string
	Recommendations []string
	Confidence      float64
	AssessedAt      time.Time
}

// Tradeable reports whether the assessment clears the snipe pipeline's risk
// gate.
func (a RiskAssessment) Tradeable() bool {
	return a.Level != RiskCritical && a.Level != RiskHigh
}
