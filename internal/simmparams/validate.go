package simmparams

import (
	"fmt"
	"math"
	"regexp"

	"github.com/wonny/atlas/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var versionRe = regexp.MustCompile(`^\d+\.\d+$`)

// symmetry tolerance for hand-maintained correlation matrices
const matrixEpsilon = 1e-9

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(p *Parameters) error {
	// === Version ===
	if p.Version == "" {
		return ValidationError{"version", "required"}
	}
	if !versionRe.MatchString(p.Version) {
		return ValidationError{"version", "must be MAJOR.MINOR format"}
	}

	// === RiskClassCorrelations ===
	rcc := p.RiskClassCorrelations
	if len(rcc.Classes) != len(contracts.RiskClasses()) {
		return ValidationError{"risk_class_correlations.classes", fmt.Sprintf("must list all %d risk classes", len(contracts.RiskClasses()))}
	}
	seen := make(map[contracts.RiskClass]bool)
	for i, c := range rcc.Classes {
		rc, err := contracts.ParseRiskClass(c)
		if err != nil || rc == contracts.RiskClassAll {
			return ValidationError{fmt.Sprintf("risk_class_correlations.classes[%d]", i), fmt.Sprintf("unknown risk class %q", c)}
		}
		if seen[rc] {
			return ValidationError{fmt.Sprintf("risk_class_correlations.classes[%d]", i), fmt.Sprintf("duplicate risk class %q", c)}
		}
		seen[rc] = true
	}
	if err := validateCorrMatrix(rcc.Matrix, len(rcc.Classes), true); err != nil {
		return ValidationError{"risk_class_correlations.matrix", err.Error()}
	}

	// === InterestRate ===
	ir := p.InterestRate
	if len(ir.Tenors) == 0 {
		return ValidationError{"interest_rate.tenors", "required"}
	}
	if err := validateCorr(ir.SubCurveCorrelation); err != nil {
		return ValidationError{"interest_rate.sub_curve_correlation", err.Error()}
	}
	if err := validateCorr(ir.CrossCurrencyCorrelation); err != nil {
		return ValidationError{"interest_rate.cross_currency_correlation", err.Error()}
	}
	if _, ok := ir.RiskWeights["regular"]; !ok {
		return ValidationError{"interest_rate.risk_weights", "must define the 'regular' fallback group"}
	}
	for group, weights := range ir.RiskWeights {
		if len(weights) != len(ir.Tenors) {
			return ValidationError{
				Field:   fmt.Sprintf("interest_rate.risk_weights.%s", group),
				Message: fmt.Sprintf("must have %d entries (one per tenor), got %d", len(ir.Tenors), len(weights)),
			}
		}
	}
	for group, ccys := range ir.CurrencyGroups {
		if _, ok := ir.RiskWeights[group]; !ok {
			return ValidationError{
				Field:   fmt.Sprintf("interest_rate.currency_groups.%s", group),
				Message: "has no matching risk_weights entry",
			}
		}
		if len(ccys) == 0 {
			return ValidationError{fmt.Sprintf("interest_rate.currency_groups.%s", group), "must not be empty"}
		}
	}
	if err := validateCorrMatrix(ir.TenorCorrelations, len(ir.Tenors), true); err != nil {
		return ValidationError{"interest_rate.tenor_correlations", err.Error()}
	}
	if err := validateCorr(ir.Inflation.Correlation); err != nil {
		return ValidationError{"interest_rate.inflation.correlation", err.Error()}
	}
	if err := validateCorr(ir.CrossCurrencyBasis.Correlation); err != nil {
		return ValidationError{"interest_rate.cross_currency_basis.correlation", err.Error()}
	}
	if ir.VegaRiskWeight <= 0 {
		return ValidationError{"interest_rate.vega_risk_weight", "must be > 0"}
	}
	if ir.HVR <= 0 {
		return ValidationError{"interest_rate.hvr", "must be > 0"}
	}
	if err := validateCurrencyConcentration(ir.Concentration, "interest_rate.concentration"); err != nil {
		return err
	}

	// === FX ===
	fx := p.FX
	if fx.RiskWeight <= 0 {
		return ValidationError{"fx.risk_weight", "must be > 0"}
	}
	if len(fx.HighVolatilityCurrencies) > 0 && fx.HighVolatilityRiskWeight <= 0 {
		return ValidationError{"fx.high_volatility_risk_weight", "must be > 0 when high volatility currencies are listed"}
	}
	if err := validateCorr(fx.Correlation); err != nil {
		return ValidationError{"fx.correlation", err.Error()}
	}
	if fx.VegaRiskWeight <= 0 {
		return ValidationError{"fx.vega_risk_weight", "must be > 0"}
	}
	if fx.HVR <= 0 {
		return ValidationError{"fx.hvr", "must be > 0"}
	}
	if err := validateCurrencyConcentration(fx.Concentration, "fx.concentration"); err != nil {
		return err
	}

	// === Credit ===
	if err := validateCreditParams(p.CreditQualifying, "credit_qualifying"); err != nil {
		return err
	}
	if err := validateCreditParams(p.CreditNonQualifying, "credit_non_qualifying"); err != nil {
		return err
	}
	if p.BaseCorrelation.RiskWeight < 0 {
		return ValidationError{"base_correlation.risk_weight", "must be >= 0"}
	}
	if err := validateCorr(p.BaseCorrelation.Correlation); err != nil {
		return ValidationError{"base_correlation.correlation", err.Error()}
	}

	// === Equity ===
	eq := p.Equity
	if len(eq.Buckets) == 0 {
		return ValidationError{"equity.buckets", "required"}
	}
	for i, b := range eq.Buckets {
		if b == contracts.BucketResidual {
			return ValidationError{fmt.Sprintf("equity.buckets[%d]", i), "Residual must not appear in the cross-bucket ordering"}
		}
		if _, ok := eq.RiskWeights[b]; !ok {
			return ValidationError{"equity.risk_weights", fmt.Sprintf("missing bucket %q", b)}
		}
		if _, ok := eq.IntraBucketCorrelations[b]; !ok {
			return ValidationError{"equity.intra_bucket_correlations", fmt.Sprintf("missing bucket %q", b)}
		}
	}
	if _, ok := eq.RiskWeights[contracts.BucketResidual]; !ok {
		return ValidationError{"equity.risk_weights", "missing bucket \"Residual\""}
	}
	for b, rw := range eq.RiskWeights {
		if rw <= 0 {
			return ValidationError{fmt.Sprintf("equity.risk_weights.%s", b), "must be > 0"}
		}
	}
	for b, c := range eq.IntraBucketCorrelations {
		if err := validateCorr(c); err != nil {
			return ValidationError{fmt.Sprintf("equity.intra_bucket_correlations.%s", b), err.Error()}
		}
	}
	if eq.VegaRiskWeights.Default <= 0 {
		return ValidationError{"equity.vega_risk_weights.default", "must be > 0"}
	}
	if err := validateCorrMatrix(eq.CrossBucketCorrelations, len(eq.Buckets), false); err != nil {
		return ValidationError{"equity.cross_bucket_correlations", err.Error()}
	}
	if eq.HVR <= 0 {
		return ValidationError{"equity.hvr", "must be > 0"}
	}
	if err := validateBucketConcentration(eq.Concentration, "equity.concentration"); err != nil {
		return err
	}

	// === Commodity ===
	co := p.Commodity
	if len(co.Buckets) == 0 {
		return ValidationError{"commodity.buckets", "required"}
	}
	for i, b := range co.Buckets {
		if b == contracts.BucketResidual {
			return ValidationError{fmt.Sprintf("commodity.buckets[%d]", i), "Residual must not appear in the cross-bucket ordering"}
		}
		if _, ok := co.RiskWeights[b]; !ok {
			return ValidationError{"commodity.risk_weights", fmt.Sprintf("missing bucket %q", b)}
		}
		if _, ok := co.IntraBucketCorrelations[b]; !ok {
			return ValidationError{"commodity.intra_bucket_correlations", fmt.Sprintf("missing bucket %q", b)}
		}
	}
	for b, rw := range co.RiskWeights {
		if rw <= 0 {
			return ValidationError{fmt.Sprintf("commodity.risk_weights.%s", b), "must be > 0"}
		}
	}
	for b, c := range co.IntraBucketCorrelations {
		if err := validateCorr(c); err != nil {
			return ValidationError{fmt.Sprintf("commodity.intra_bucket_correlations.%s", b), err.Error()}
		}
	}
	if co.VegaRiskWeight <= 0 {
		return ValidationError{"commodity.vega_risk_weight", "must be > 0"}
	}
	if err := validateCorrMatrix(co.CrossBucketCorrelations, len(co.Buckets), false); err != nil {
		return ValidationError{"commodity.cross_bucket_correlations", err.Error()}
	}
	if co.HVR <= 0 {
		return ValidationError{"commodity.hvr", "must be > 0"}
	}
	if err := validateBucketConcentration(co.Concentration, "commodity.concentration"); err != nil {
		return err
	}

	return nil
}

// === Helper Functions ===

func validateCorr(v float64) error {
	if v < -1 || v > 1 {
		return fmt.Errorf("must be in range [-1, 1], got %v", v)
	}
	return nil
}

// validateCorrMatrix checks an n×n symmetric correlation matrix.
// unitDiagonal은 대각선이 1.0이어야 하는 행렬에만 적용
func validateCorrMatrix(m [][]float64, n int, unitDiagonal bool) error {
	if len(m) != n {
		return fmt.Errorf("must have %d rows, got %d", n, len(m))
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("row %d must have %d entries, got %d", i, n, len(row))
		}
		for j, v := range row {
			if v < -1 || v > 1 {
				return fmt.Errorf("entry [%d][%d] must be in range [-1, 1], got %v", i, j, v)
			}
			if j < i && math.Abs(v-m[j][i]) > matrixEpsilon {
				return fmt.Errorf("must be symmetric, [%d][%d]=%v != [%d][%d]=%v", i, j, v, j, i, m[j][i])
			}
		}
		if unitDiagonal && math.Abs(row[i]-1.0) > matrixEpsilon {
			return fmt.Errorf("diagonal entry [%d][%d] must be 1.0, got %v", i, i, row[i])
		}
	}
	return nil
}

func validateCurrencyConcentration(c CurrencyConcentration, field string) error {
	if err := validateCurrencyThresholds(c.Delta); err != nil {
		return ValidationError{field + ".delta", err.Error()}
	}
	if err := validateCurrencyThresholds(c.Vega); err != nil {
		return ValidationError{field + ".vega", err.Error()}
	}
	return nil
}

func validateCurrencyThresholds(t CurrencyThresholds) error {
	if t.Default <= 0 {
		return fmt.Errorf("default must be > 0")
	}
	for i, g := range t.Groups {
		if len(g.Currencies) == 0 {
			return fmt.Errorf("groups[%d].currencies must not be empty", i)
		}
		if g.Threshold <= 0 {
			return fmt.Errorf("groups[%d].threshold must be > 0", i)
		}
	}
	return nil
}

func validateBucketConcentration(c BucketConcentration, field string) error {
	if err := validateBucketThresholds(c.Delta); err != nil {
		return ValidationError{field + ".delta", err.Error()}
	}
	if err := validateBucketThresholds(c.Vega); err != nil {
		return ValidationError{field + ".vega", err.Error()}
	}
	return nil
}

func validateBucketThresholds(t BucketThresholds) error {
	if t.Default <= 0 {
		return fmt.Errorf("default must be > 0")
	}
	for b, v := range t.Buckets {
		if v <= 0 {
			return fmt.Errorf("buckets.%s must be > 0", b)
		}
	}
	return nil
}

func validateCreditParams(c CreditParams, field string) error {
	if len(c.RiskWeights) == 0 {
		return ValidationError{field + ".risk_weights", "required"}
	}
	for b, rw := range c.RiskWeights {
		if rw <= 0 {
			return ValidationError{fmt.Sprintf("%s.risk_weights.%s", field, b), "must be > 0"}
		}
	}
	if c.VegaRiskWeight <= 0 {
		return ValidationError{field + ".vega_risk_weight", "must be > 0"}
	}
	if err := validateCorr(c.SameQualifierCorrelation); err != nil {
		return ValidationError{field + ".same_qualifier_correlation", err.Error()}
	}
	if err := validateCorr(c.DifferentQualifierCorrelation); err != nil {
		return ValidationError{field + ".different_qualifier_correlation", err.Error()}
	}
	if err := validateCorr(c.ResidualCorrelation); err != nil {
		return ValidationError{field + ".residual_correlation", err.Error()}
	}
	if err := validateCorr(c.CrossBucketCorrelation); err != nil {
		return ValidationError{field + ".cross_bucket_correlation", err.Error()}
	}
	return validateBucketConcentration(c.Concentration, field+".concentration")
}
