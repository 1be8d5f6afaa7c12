// Package simmparams loads ISDA SIMM model parameters from YAML and
// exposes them through the contracts.ParameterProvider interface.
//
// One YAML file describes one model version: risk weights, correlations,
// concentration thresholds and volatility scalings for every risk class.
// The schema is strict; unknown fields fail the load.
package simmparams

// Parameters는 SIMM 모델 버전 하나의 전체 파라미터 셋
// ⭐ SSOT: 파라미터 스키마는 여기서만 정의
type Parameters struct {
	Version               string                `yaml:"version" json:"version"`
	RiskClassCorrelations RiskClassCorrelations `yaml:"risk_class_correlations" json:"risk_class_correlations"`
	InterestRate          InterestRateParams    `yaml:"interest_rate" json:"interest_rate"`
	FX                    FXParams              `yaml:"fx" json:"fx"`
	CreditQualifying      CreditParams          `yaml:"credit_qualifying" json:"credit_qualifying"`
	CreditNonQualifying   CreditParams          `yaml:"credit_non_qualifying" json:"credit_non_qualifying"`
	BaseCorrelation       BaseCorrelationParams `yaml:"base_correlation" json:"base_correlation"`
	Equity                EquityParams          `yaml:"equity" json:"equity"`
	Commodity             CommodityParams       `yaml:"commodity" json:"commodity"`
}

// RiskClassCorrelations is the symmetric correlation matrix applied when
// aggregating risk classes into a product class margin. Classes gives
// the row/column ordering.
type RiskClassCorrelations struct {
	Classes []string    `yaml:"classes" json:"classes"`
	Matrix  [][]float64 `yaml:"matrix" json:"matrix"`
}

// InterestRateParams covers Risk_IRCurve, Risk_XCcyBasis, Risk_Inflation
// and their volatility counterparts.
type InterestRateParams struct {
	// Tenors orders the risk weight vectors and the tenor correlation matrix
	Tenors []string `yaml:"tenors" json:"tenors"`

	// SubCurveCorrelation applies between different Label2 sub-curves
	SubCurveCorrelation float64 `yaml:"sub_curve_correlation" json:"sub_curve_correlation"`

	// CrossCurrencyCorrelation applies between different currencies
	CrossCurrencyCorrelation float64 `yaml:"cross_currency_correlation" json:"cross_currency_correlation"`

	// CurrencyGroups assigns currencies to volatility groups. Currencies
	// not listed anywhere fall into the "regular" group.
	CurrencyGroups map[string][]string `yaml:"currency_groups" json:"currency_groups"`

	// RiskWeights holds one per-tenor weight vector per currency group
	RiskWeights map[string][]float64 `yaml:"risk_weights" json:"risk_weights"`

	// TenorCorrelations is the symmetric per-tenor correlation matrix
	TenorCorrelations [][]float64 `yaml:"tenor_correlations" json:"tenor_correlations"`

	Inflation          FactorParams `yaml:"inflation" json:"inflation"`
	CrossCurrencyBasis FactorParams `yaml:"cross_currency_basis" json:"cross_currency_basis"`

	VegaRiskWeight float64 `yaml:"vega_risk_weight" json:"vega_risk_weight"`

	// HVR feeds the curvature margin scaling (hvr^-2)
	HVR float64 `yaml:"hvr" json:"hvr"`

	Concentration CurrencyConcentration `yaml:"concentration" json:"concentration"`
}

// FactorParams is a single-factor risk weight plus its correlation
// against the main factor family.
type FactorParams struct {
	RiskWeight  float64 `yaml:"risk_weight" json:"risk_weight"`
	Correlation float64 `yaml:"correlation" json:"correlation"`
}

// CurrencyConcentration holds delta and vega thresholds keyed by currency
type CurrencyConcentration struct {
	Delta CurrencyThresholds `yaml:"delta" json:"delta"`
	Vega  CurrencyThresholds `yaml:"vega" json:"vega"`
}

// CurrencyThresholds maps currency groups to concentration thresholds.
// The default applies to currencies not in any group. Thresholds are in
// USD, the same unit as the CRIF amountUsd column.
type CurrencyThresholds struct {
	Default float64                  `yaml:"default" json:"default"`
	Groups  []CurrencyGroupThreshold `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// CurrencyGroupThreshold is one named set of currencies sharing a threshold
type CurrencyGroupThreshold struct {
	Currencies []string `yaml:"currencies" json:"currencies"`
	Threshold  float64  `yaml:"threshold" json:"threshold"`
}

// FXParams covers Risk_FX and Risk_FXVol.
type FXParams struct {
	RiskWeight               float64  `yaml:"risk_weight" json:"risk_weight"`
	HighVolatilityCurrencies []string `yaml:"high_volatility_currencies,omitempty" json:"high_volatility_currencies,omitempty"`
	HighVolatilityRiskWeight float64  `yaml:"high_volatility_risk_weight,omitempty" json:"high_volatility_risk_weight,omitempty"`
	Correlation              float64  `yaml:"correlation" json:"correlation"`
	VegaRiskWeight           float64  `yaml:"vega_risk_weight" json:"vega_risk_weight"`
	HVR                      float64  `yaml:"hvr" json:"hvr"`

	Concentration CurrencyConcentration `yaml:"concentration" json:"concentration"`
}

// CreditParams covers one credit family (qualifying or non-qualifying).
// Buckets are strings; "Residual" is a valid bucket everywhere.
type CreditParams struct {
	RiskWeights                   map[string]float64  `yaml:"risk_weights" json:"risk_weights"`
	VegaRiskWeight                float64             `yaml:"vega_risk_weight" json:"vega_risk_weight"`
	SameQualifierCorrelation      float64             `yaml:"same_qualifier_correlation" json:"same_qualifier_correlation"`
	DifferentQualifierCorrelation float64             `yaml:"different_qualifier_correlation" json:"different_qualifier_correlation"`
	ResidualCorrelation           float64             `yaml:"residual_correlation" json:"residual_correlation"`
	CrossBucketCorrelation        float64             `yaml:"cross_bucket_correlation" json:"cross_bucket_correlation"`
	Concentration                 BucketConcentration `yaml:"concentration" json:"concentration"`
}

// BaseCorrelationParams covers Risk_BaseCorr.
type BaseCorrelationParams struct {
	RiskWeight  float64 `yaml:"risk_weight" json:"risk_weight"`
	Correlation float64 `yaml:"correlation" json:"correlation"`
}

// BucketConcentration holds delta and vega thresholds keyed by bucket
type BucketConcentration struct {
	Delta BucketThresholds `yaml:"delta" json:"delta"`
	Vega  BucketThresholds `yaml:"vega" json:"vega"`
}

// BucketThresholds maps buckets to concentration thresholds with a
// fallback default.
type BucketThresholds struct {
	Default float64            `yaml:"default" json:"default"`
	Buckets map[string]float64 `yaml:"buckets,omitempty" json:"buckets,omitempty"`
}

// BucketValues is a per-bucket value with a fallback default
type BucketValues struct {
	Default float64            `yaml:"default" json:"default"`
	Buckets map[string]float64 `yaml:"buckets,omitempty" json:"buckets,omitempty"`
}

// EquityParams covers Risk_Equity and Risk_EquityVol.
type EquityParams struct {
	// Buckets orders the cross-bucket correlation matrix (non-residual)
	Buckets                 []string            `yaml:"buckets" json:"buckets"`
	RiskWeights             map[string]float64  `yaml:"risk_weights" json:"risk_weights"`
	VegaRiskWeights         BucketValues        `yaml:"vega_risk_weights" json:"vega_risk_weights"`
	IntraBucketCorrelations map[string]float64  `yaml:"intra_bucket_correlations" json:"intra_bucket_correlations"`
	CrossBucketCorrelations [][]float64         `yaml:"cross_bucket_correlations" json:"cross_bucket_correlations"`
	HVR                     float64             `yaml:"hvr" json:"hvr"`
	Concentration           BucketConcentration `yaml:"concentration" json:"concentration"`
}

// CommodityParams covers Risk_Commodity and Risk_CommodityVol.
type CommodityParams struct {
	Buckets                 []string            `yaml:"buckets" json:"buckets"`
	RiskWeights             map[string]float64  `yaml:"risk_weights" json:"risk_weights"`
	VegaRiskWeight          float64             `yaml:"vega_risk_weight" json:"vega_risk_weight"`
	IntraBucketCorrelations map[string]float64  `yaml:"intra_bucket_correlations" json:"intra_bucket_correlations"`
	CrossBucketCorrelations [][]float64         `yaml:"cross_bucket_correlations" json:"cross_bucket_correlations"`
	HVR                     float64             `yaml:"hvr" json:"hvr"`
	Concentration           BucketConcentration `yaml:"concentration" json:"concentration"`
}
