package contracts

import "context"

// RiskFactor identifies one side of a parameter lookup. The bucket is
// carried explicitly because risk weights, correlations and
// concentration thresholds for the bucketed risk classes depend on it.
// Synthetic factors (empty labels) are used for qualifier-level
// correlation lookups.
type RiskFactor struct {
	RiskType  RiskType
	Bucket    string
	Qualifier string
	Label1    string
	Label2    string
}

// Factor is a convenience constructor for parameter lookups.
func Factor(rt RiskType, bucket, qualifier, label1, label2 string) RiskFactor {
	return RiskFactor{RiskType: rt, Bucket: bucket, Qualifier: qualifier, Label1: label1, Label2: label2}
}

// FactorOf builds the lookup factor for a CRIF record.
func FactorOf(r CrifRecord) RiskFactor {
	return RiskFactor{
		RiskType:  r.RiskType,
		Bucket:    r.Bucket,
		Qualifier: r.Qualifier,
		Label1:    r.Label1,
		Label2:    r.Label2,
	}
}

// ParameterProvider is the read-only SIMM parameter surface for one model
// version: risk weights, correlations, concentration thresholds, curvature
// weights, volatility scalings. Lookups that the model does not cover
// return an error naming the risk type and qualifier; the engine treats
// those as fatal configuration errors.
// ⭐ SSOT: SIMM 파라미터 조회 인터페이스
type ParameterProvider interface {
	// Version returns the SIMM model version label, e.g. "2.6"
	Version() string

	// VersionNumber returns the version as a number for feature gates,
	// e.g. 2.6. Versions that do not parse return 0.
	VersionNumber() float64

	// Weight returns the delta/vega risk weight for a risk factor.
	// calcCcy only matters for risk types whose weight depends on the
	// calculation currency.
	Weight(f RiskFactor, calcCcy string) (float64, error)

	// Correlation returns the correlation between two risk factors of
	// the same risk class
	Correlation(a, b RiskFactor, calcCcy string) (float64, error)

	// ConcentrationThreshold returns the concentration threshold for a
	// factor's qualifier. Risk types without thresholds return +Inf,
	// never an error.
	ConcentrationThreshold(f RiskFactor) float64

	// CurvatureWeight returns the tenor-dependent scaling SF(t) for curvature
	CurvatureWeight(rt RiskType, label1 string) (float64, error)

	// Sigma returns the factor's volatility scaling (1.0 where not applicable)
	Sigma(f RiskFactor, calcCcy string) (float64, error)

	// HistoricalVolatilityRatio returns the HVR for a risk type
	// (1.0 where not applicable)
	HistoricalVolatilityRatio(rt RiskType) float64

	// RiskClassCorrelation returns the cross risk-class correlation used
	// when combining risk classes into a product-class total
	RiskClassCorrelation(a, b RiskClass) (float64, error)

	// CurvatureMarginScaling returns the multiplier applied to the
	// interest-rate curvature margin
	CurvatureMarginScaling() float64

	// IsValidRiskType reports whether the version prices this risk type
	IsValidRiskType(rt RiskType) bool
}

// FxProvider supplies USD spot quotes for result-currency conversion.
// Quote returns the amount of USD one unit of ccy buys; Quote("USD") is 1.
// ⭐ SSOT: 환율 조회 인터페이스
type FxProvider interface {
	Quote(ctx context.Context, ccy string) (float64, error)
}

// CrifSource loads net sensitivity records from a backing store
// (CSV file, Postgres, or an in-memory fixture)
type CrifSource interface {
	Load(ctx context.Context) ([]CrifRecord, error)
}
