package simmparams

import (
	"math"
	"testing"

	"github.com/wonny/atlas/internal/contracts"
)

// 테스트용 최소 파라미터 문서 (3 tenors, 2 equity/commodity buckets)
const testDoc = `
version: "2.6"
risk_class_correlations:
  classes: [InterestRate, CreditQualifying, CreditNonQualifying, Equity, Commodity, FX]
  matrix:
    - [1.00, 0.04, 0.04, 0.07, 0.37, 0.14]
    - [0.04, 1.00, 0.54, 0.70, 0.27, 0.37]
    - [0.04, 0.54, 1.00, 0.46, 0.24, 0.15]
    - [0.07, 0.70, 0.46, 1.00, 0.35, 0.39]
    - [0.37, 0.27, 0.24, 0.35, 1.00, 0.35]
    - [0.14, 0.37, 0.15, 0.39, 0.35, 1.00]
interest_rate:
  tenors: [3m, 1y, 5y]
  sub_curve_correlation: 0.99
  cross_currency_correlation: 0.3
  currency_groups:
    low_volatility: [JPY]
  risk_weights:
    regular: [50, 60, 70]
    low_volatility: [10, 12, 14]
  tenor_correlations:
    - [1.00, 0.70, 0.40]
    - [0.70, 1.00, 0.80]
    - [0.40, 0.80, 1.00]
  inflation:
    risk_weight: 61
    correlation: 0.24
  cross_currency_basis:
    risk_weight: 21
    correlation: 0.04
  vega_risk_weight: 0.23
  hvr: 0.5
  concentration:
    delta:
      default: 10000000
      groups:
        - currencies: [USD]
          threshold: 300000000
    vega:
      default: 5000000
fx:
  risk_weight: 7.4
  high_volatility_currencies: [TRY]
  high_volatility_risk_weight: 14.7
  correlation: 0.5
  vega_risk_weight: 0.48
  hvr: 0.5
  concentration:
    delta:
      default: 1000000000
    vega:
      default: 100000000
      groups:
        - currencies: [USD, EUR]
          threshold: 2000000000
credit_qualifying:
  risk_weights:
    "1": 75
    Residual: 312
  vega_risk_weight: 0.27
  same_qualifier_correlation: 0.93
  different_qualifier_correlation: 0.46
  residual_correlation: 0.5
  cross_bucket_correlation: 0.42
  concentration:
    delta:
      default: 1000000
    vega:
      default: 100000000
credit_non_qualifying:
  risk_weights:
    "1": 280
    "2": 1300
    Residual: 1300
  vega_risk_weight: 0.27
  same_qualifier_correlation: 0.83
  different_qualifier_correlation: 0.32
  residual_correlation: 0.5
  cross_bucket_correlation: 0.43
  concentration:
    delta:
      default: 500000
    vega:
      default: 70000000
base_correlation:
  risk_weight: 0.019
  correlation: 0.10
equity:
  buckets: ["1", "2"]
  risk_weights:
    "1": 30
    "2": 33
    Residual: 50
  vega_risk_weights:
    default: 0.45
    buckets:
      "2": 0.96
  intra_bucket_correlations:
    "1": 0.18
    "2": 0.20
    Residual: 0.0
  cross_bucket_correlations:
    - [1.00, 0.25]
    - [0.25, 1.00]
  hvr: 0.6
  concentration:
    delta:
      default: 3000000
      buckets:
        "1": 9000000
    vega:
      default: 160000000
commodity:
  buckets: ["1", "2"]
  risk_weights:
    "1": 48
    "2": 29
    Residual: 68
  vega_risk_weight: 0.55
  intra_bucket_correlations:
    "1": 0.83
    "2": 0.97
    Residual: 0.0
  cross_bucket_correlations:
    - [1.00, 0.33]
    - [0.33, 1.00]
  hvr: 0.74
  concentration:
    delta:
      default: 1000000000
    vega:
      default: 160000000
`

func mustProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := Parse([]byte(testDoc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	pr, err := NewProvider(p)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	return pr
}

func TestWeightDispatch(t *testing.T) {
	pr := mustProvider(t)

	tests := []struct {
		name   string
		factor contracts.RiskFactor
		want   float64
	}{
		{"ir regular tenor", contracts.Factor(contracts.RiskTypeIRCurve, "", "USD", "1y", ""), 60},
		{"ir low vol ccy", contracts.Factor(contracts.RiskTypeIRCurve, "", "JPY", "1y", ""), 12},
		{"ir unknown ccy falls back to regular", contracts.Factor(contracts.RiskTypeIRCurve, "", "MXN", "3m", ""), 50},
		{"xccy basis", contracts.Factor(contracts.RiskTypeXCcyBasis, "", "USD", "", ""), 21},
		{"inflation", contracts.Factor(contracts.RiskTypeInflation, "", "USD", "", ""), 61},
		{"ir vega carries hvr", contracts.Factor(contracts.RiskTypeIRVol, "", "USD", "1y", ""), 0.23 * 0.5},
		{"inflation vega carries hvr", contracts.Factor(contracts.RiskTypeInflationVol, "", "USD", "1y", ""), 0.23 * 0.5},
		{"fx regular", contracts.Factor(contracts.RiskTypeFX, "", "EUR", "", ""), 7.4},
		{"fx high vol", contracts.Factor(contracts.RiskTypeFX, "", "TRY", "", ""), 14.7},
		{"fx vega", contracts.Factor(contracts.RiskTypeFXVol, "", "USDJPY", "1y", ""), 0.48},
		{"credit q bucket", contracts.Factor(contracts.RiskTypeCreditQ, "1", "ISSUER", "1y", ""), 75},
		{"credit q residual", contracts.Factor(contracts.RiskTypeCreditQ, "Residual", "ISSUER", "1y", ""), 312},
		{"credit vol", contracts.Factor(contracts.RiskTypeCreditVol, "1", "ISSUER", "1y", ""), 0.27},
		{"credit nonq bucket", contracts.Factor(contracts.RiskTypeCreditNonQ, "2", "ISSUER", "1y", ""), 1300},
		{"equity bucket", contracts.Factor(contracts.RiskTypeEquity, "2", "ACME", "", ""), 33},
		{"equity vega default", contracts.Factor(contracts.RiskTypeEquityVol, "1", "ACME", "1y", ""), 0.45},
		{"equity vega override", contracts.Factor(contracts.RiskTypeEquityVol, "2", "SPX", "1y", ""), 0.96},
		{"commodity bucket", contracts.Factor(contracts.RiskTypeCommodity, "1", "Coal", "", ""), 48},
		{"commodity vega", contracts.Factor(contracts.RiskTypeCommodityVol, "1", "Coal", "1y", ""), 0.55},
		{"base corr", contracts.Factor(contracts.RiskTypeBaseCorr, "", "CDX IG", "", ""), 0.019},
	}
	for _, tc := range tests {
		got, err := pr.Weight(tc.factor, "USD")
		if err != nil {
			t.Errorf("%s: Weight failed: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestWeightErrors(t *testing.T) {
	pr := mustProvider(t)

	if _, err := pr.Weight(contracts.Factor(contracts.RiskTypeIRCurve, "", "USD", "7y", ""), "USD"); err == nil {
		t.Error("expected error for unknown tenor")
	}
	if _, err := pr.Weight(contracts.Factor(contracts.RiskTypeCreditQ, "9", "ISSUER", "1y", ""), "USD"); err == nil {
		t.Error("expected error for unknown credit bucket")
	}
	if _, err := pr.Weight(contracts.Factor(contracts.RiskTypeNotional, "", "X", "", ""), "USD"); err == nil {
		t.Error("expected error for risk type without weights")
	}
}

func TestIRCorrelation(t *testing.T) {
	pr := mustProvider(t)

	curve := func(q, label1, label2 string) contracts.RiskFactor {
		return contracts.Factor(contracts.RiskTypeIRCurve, "", q, label1, label2)
	}

	// 같은 통화, 테너 행렬
	got, err := pr.Correlation(curve("USD", "3m", ""), curve("USD", "5y", ""), "USD")
	if err != nil || got != 0.40 {
		t.Errorf("tenor correlation: expected 0.40, got %v (err=%v)", got, err)
	}

	// 같은 통화, 서브커브만 비교
	got, _ = pr.Correlation(curve("USD", "", "OIS"), curve("USD", "", "Libor3m"), "USD")
	if got != 0.99 {
		t.Errorf("sub-curve correlation: expected 0.99, got %v", got)
	}
	got, _ = pr.Correlation(curve("USD", "", "OIS"), curve("USD", "", "OIS"), "USD")
	if got != 1.0 {
		t.Errorf("same sub-curve: expected 1.0, got %v", got)
	}

	// 통화가 다르면 cross currency
	got, _ = pr.Correlation(curve("USD", "", ""), curve("EUR", "", ""), "USD")
	if got != 0.3 {
		t.Errorf("cross currency: expected 0.3, got %v", got)
	}

	// 인플레이션과 베이시스
	infl := contracts.Factor(contracts.RiskTypeInflation, "", "USD", "", "")
	basis := contracts.Factor(contracts.RiskTypeXCcyBasis, "", "USD", "", "")
	if got, _ = pr.Correlation(curve("USD", "1y", ""), infl, "USD"); got != 0.24 {
		t.Errorf("inflation correlation: expected 0.24, got %v", got)
	}
	if got, _ = pr.Correlation(curve("USD", "1y", ""), basis, "USD"); got != 0.04 {
		t.Errorf("basis correlation: expected 0.04, got %v", got)
	}
	if got, _ = pr.Correlation(infl, basis, "USD"); got != 0.04 {
		t.Errorf("inflation vs basis: expected 0.04, got %v", got)
	}

	// 볼 리스크 타입도 같은 규칙
	vol := func(q, label1 string) contracts.RiskFactor {
		return contracts.Factor(contracts.RiskTypeIRVol, "", q, label1, "")
	}
	if got, _ = pr.Correlation(vol("USD", "3m"), vol("USD", "1y"), "USD"); got != 0.70 {
		t.Errorf("vol tenor correlation: expected 0.70, got %v", got)
	}
	inflVol := contracts.Factor(contracts.RiskTypeInflationVol, "", "USD", "", "")
	if got, _ = pr.Correlation(inflVol, vol("USD", "1y"), "USD"); got != 0.24 {
		t.Errorf("inflation vol vs ir vol: expected 0.24, got %v", got)
	}
	if got, _ = pr.Correlation(inflVol, inflVol, "USD"); got != 1.0 {
		t.Errorf("inflation vol pair: expected 1.0, got %v", got)
	}

	if _, err := pr.Correlation(curve("USD", "7y", ""), curve("USD", "1y", ""), "USD"); err == nil {
		t.Error("expected error for unknown tenor")
	}
}

func TestBucketedCorrelations(t *testing.T) {
	pr := mustProvider(t)

	fx := func(q string) contracts.RiskFactor { return contracts.Factor(contracts.RiskTypeFX, "", q, "", "") }
	if got, _ := pr.Correlation(fx("EUR"), fx("GBP"), "USD"); got != 0.5 {
		t.Errorf("fx correlation: expected 0.5, got %v", got)
	}
	if got, _ := pr.Correlation(fx("EUR"), fx("EUR"), "USD"); got != 1.0 {
		t.Errorf("fx same qualifier: expected 1.0, got %v", got)
	}

	cq := func(bucket, q string) contracts.RiskFactor {
		return contracts.Factor(contracts.RiskTypeCreditQ, bucket, q, "1y", "")
	}
	if got, _ := pr.Correlation(cq("1", "A"), cq("1", "A"), "USD"); got != 0.93 {
		t.Errorf("credit same qualifier: expected 0.93, got %v", got)
	}
	if got, _ := pr.Correlation(cq("1", "A"), cq("1", "B"), "USD"); got != 0.46 {
		t.Errorf("credit different qualifier: expected 0.46, got %v", got)
	}
	if got, _ := pr.Correlation(cq("Residual", "A"), cq("Residual", "B"), "USD"); got != 0.5 {
		t.Errorf("credit residual: expected 0.5, got %v", got)
	}
	if got, _ := pr.Correlation(cq("1", "A"), cq("2", "B"), "USD"); got != 0.42 {
		t.Errorf("credit cross bucket: expected 0.42, got %v", got)
	}

	eq := func(bucket, q string) contracts.RiskFactor {
		return contracts.Factor(contracts.RiskTypeEquity, bucket, q, "", "")
	}
	if got, _ := pr.Correlation(eq("1", "A"), eq("1", "B"), "USD"); got != 0.18 {
		t.Errorf("equity intra bucket: expected 0.18, got %v", got)
	}
	if got, _ := pr.Correlation(eq("1", "A"), eq("2", "B"), "USD"); got != 0.25 {
		t.Errorf("equity cross bucket: expected 0.25, got %v", got)
	}
	if got, _ := pr.Correlation(eq("Residual", "A"), eq("Residual", "B"), "USD"); got != 0.0 {
		t.Errorf("equity residual intra: expected 0.0, got %v", got)
	}
	if got, _ := pr.Correlation(eq("1", "A"), eq("1", "A"), "USD"); got != 1.0 {
		t.Errorf("equity same qualifier: expected 1.0, got %v", got)
	}

	co := func(bucket, q string) contracts.RiskFactor {
		return contracts.Factor(contracts.RiskTypeCommodity, bucket, q, "", "")
	}
	if got, _ := pr.Correlation(co("2", "A"), co("2", "B"), "USD"); got != 0.97 {
		t.Errorf("commodity intra bucket: expected 0.97, got %v", got)
	}
	if got, _ := pr.Correlation(co("1", "A"), co("2", "B"), "USD"); got != 0.33 {
		t.Errorf("commodity cross bucket: expected 0.33, got %v", got)
	}

	bc := contracts.Factor(contracts.RiskTypeBaseCorr, "", "CDX IG", "", "")
	if got, _ := pr.Correlation(bc, bc, "USD"); got != 0.10 {
		t.Errorf("base correlation: expected 0.10, got %v", got)
	}

	// 리스크 클래스가 섞이면 에러
	if _, err := pr.Correlation(eq("1", "A"), co("1", "B"), "USD"); err == nil {
		t.Error("expected error for mixed risk classes")
	}
}

func TestConcentrationThresholds(t *testing.T) {
	pr := mustProvider(t)

	tests := []struct {
		name   string
		factor contracts.RiskFactor
		want   float64
	}{
		{"ir delta group", contracts.Factor(contracts.RiskTypeIRCurve, "", "USD", "1y", ""), 300000000},
		{"ir delta default", contracts.Factor(contracts.RiskTypeIRCurve, "", "KRW", "1y", ""), 10000000},
		{"ir vega", contracts.Factor(contracts.RiskTypeIRVol, "", "USD", "1y", ""), 5000000},
		{"inflation uses ir delta", contracts.Factor(contracts.RiskTypeInflation, "", "USD", "", ""), 300000000},
		{"fx delta", contracts.Factor(contracts.RiskTypeFX, "", "EUR", "", ""), 1000000000},
		{"fx vega pair takes tighter", contracts.Factor(contracts.RiskTypeFXVol, "", "USDJPY", "1y", ""), 100000000},
		{"fx vega pair both grouped", contracts.Factor(contracts.RiskTypeFXVol, "", "USDEUR", "1y", ""), 2000000000},
		{"equity delta override", contracts.Factor(contracts.RiskTypeEquity, "1", "ACME", "", ""), 9000000},
		{"equity delta default", contracts.Factor(contracts.RiskTypeEquity, "2", "ACME", "", ""), 3000000},
		{"credit delta", contracts.Factor(contracts.RiskTypeCreditQ, "1", "ISSUER", "1y", ""), 1000000},
	}
	for _, tc := range tests {
		if got := pr.ConcentrationThreshold(tc.factor); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	// 임계값이 없는 리스크 타입은 +Inf
	if got := pr.ConcentrationThreshold(contracts.Factor(contracts.RiskTypeBaseCorr, "", "CDX IG", "", "")); !math.IsInf(got, 1) {
		t.Errorf("base corr threshold: expected +Inf, got %v", got)
	}
	if got := pr.ConcentrationThreshold(contracts.Factor(contracts.RiskTypeNotional, "", "X", "", "")); !math.IsInf(got, 1) {
		t.Errorf("notional threshold: expected +Inf, got %v", got)
	}
}

func TestCurvatureWeight(t *testing.T) {
	pr := mustProvider(t)

	tests := []struct {
		label string
		want  float64
	}{
		{"2w", 0.5},
		{"1m", 0.5 * 14.0 / 30.0},
		{"3m", 0.5 * 14.0 / 91.0},
		{"6m", 0.5 * 14.0 / 183.0},
		{"1y", 0.5 * 14.0 / 365.0},
		{"5y", 0.5 * 14.0 / 1825.0},
		{"30y", 0.5 * 14.0 / 10950.0},
	}
	for _, tc := range tests {
		got, err := pr.CurvatureWeight(contracts.RiskTypeIRVol, tc.label)
		if err != nil {
			t.Errorf("CurvatureWeight(%s) failed: %v", tc.label, err)
			continue
		}
		if math.Abs(got-tc.want) > 1e-15 {
			t.Errorf("CurvatureWeight(%s): expected %v, got %v", tc.label, tc.want, got)
		}
	}

	if _, err := pr.CurvatureWeight(contracts.RiskTypeIRVol, "soon"); err == nil {
		t.Error("expected error for unknown tenor")
	}
	if _, err := pr.CurvatureWeight(contracts.RiskTypeIRVol, ""); err == nil {
		t.Error("expected error for empty tenor")
	}
}

func TestSigma(t *testing.T) {
	pr := mustProvider(t)
	scale := math.Sqrt(365.0/14.0) / 2.3263478740408408

	got, err := pr.Sigma(contracts.Factor(contracts.RiskTypeEquityVol, "1", "ACME", "1y", ""), "USD")
	if err != nil {
		t.Fatalf("Sigma failed: %v", err)
	}
	if math.Abs(got-30*scale) > 1e-12 {
		t.Errorf("equity vol sigma: expected %v, got %v", 30*scale, got)
	}

	got, _ = pr.Sigma(contracts.Factor(contracts.RiskTypeCommodityVol, "2", "Coal", "1y", ""), "USD")
	if math.Abs(got-29*scale) > 1e-12 {
		t.Errorf("commodity vol sigma: expected %v, got %v", 29*scale, got)
	}

	// FX 볼은 페어 중 높은 쪽 리스크 웨이트
	got, _ = pr.Sigma(contracts.Factor(contracts.RiskTypeFXVol, "", "USDTRY", "1y", ""), "USD")
	if math.Abs(got-14.7*scale) > 1e-12 {
		t.Errorf("fx vol sigma: expected %v, got %v", 14.7*scale, got)
	}

	if _, err := pr.Sigma(contracts.Factor(contracts.RiskTypeFXVol, "", "USD", "1y", ""), "USD"); err == nil {
		t.Error("expected error for malformed fx vol qualifier")
	}

	// 나머지는 1.0
	if got, _ = pr.Sigma(contracts.Factor(contracts.RiskTypeIRVol, "", "USD", "1y", ""), "USD"); got != 1.0 {
		t.Errorf("ir vol sigma: expected 1.0, got %v", got)
	}
	if got, _ = pr.Sigma(contracts.Factor(contracts.RiskTypeCreditVol, "1", "ISSUER", "1y", ""), "USD"); got != 1.0 {
		t.Errorf("credit vol sigma: expected 1.0, got %v", got)
	}
}

func TestHistoricalVolatilityRatio(t *testing.T) {
	pr := mustProvider(t)

	// IR HVR은 Weight에 선반영되므로 여기서는 1.0
	if got := pr.HistoricalVolatilityRatio(contracts.RiskTypeIRVol); got != 1.0 {
		t.Errorf("ir hvr: expected 1.0, got %v", got)
	}
	if got := pr.HistoricalVolatilityRatio(contracts.RiskTypeEquityVol); got != 0.6 {
		t.Errorf("equity hvr: expected 0.6, got %v", got)
	}
	if got := pr.HistoricalVolatilityRatio(contracts.RiskTypeCommodityVol); got != 0.74 {
		t.Errorf("commodity hvr: expected 0.74, got %v", got)
	}
	if got := pr.HistoricalVolatilityRatio(contracts.RiskTypeCreditVol); got != 1.0 {
		t.Errorf("credit vol hvr: expected 1.0, got %v", got)
	}
	if got := pr.HistoricalVolatilityRatio(contracts.RiskTypeFX); got != 1.0 {
		t.Errorf("fx delta hvr: expected 1.0, got %v", got)
	}
}

func TestRiskClassCorrelation(t *testing.T) {
	pr := mustProvider(t)

	got, err := pr.RiskClassCorrelation(contracts.RiskClassInterestRate, contracts.RiskClassFX)
	if err != nil || got != 0.14 {
		t.Errorf("IR vs FX: expected 0.14, got %v (err=%v)", got, err)
	}
	got, _ = pr.RiskClassCorrelation(contracts.RiskClassEquity, contracts.RiskClassCreditQualifying)
	if got != 0.70 {
		t.Errorf("Equity vs CreditQ: expected 0.70, got %v", got)
	}
	got, _ = pr.RiskClassCorrelation(contracts.RiskClassCommodity, contracts.RiskClassCommodity)
	if got != 1.0 {
		t.Errorf("same class: expected 1.0, got %v", got)
	}
	if _, err := pr.RiskClassCorrelation(contracts.RiskClassAll, contracts.RiskClassFX); err == nil {
		t.Error("expected error for aggregate pseudo class")
	}
}

func TestCurvatureMarginScaling(t *testing.T) {
	pr := mustProvider(t)
	// hvr 0.5 → 스케일 4
	if got := pr.CurvatureMarginScaling(); math.Abs(got-4.0) > 1e-12 {
		t.Errorf("expected 4.0, got %v", got)
	}
}

func TestIsValidRiskType(t *testing.T) {
	pr := mustProvider(t)

	if !pr.IsValidRiskType(contracts.RiskTypeBaseCorr) {
		t.Error("base corr should be valid at version 2.6")
	}
	if !pr.IsValidRiskType(contracts.RiskTypeIRCurve) {
		t.Error("ir curve should be valid")
	}
	if pr.IsValidRiskType(contracts.RiskTypeEmpty) {
		t.Error("empty risk type should be invalid")
	}

	// 1.x 버전에서는 base corr 미지원
	old := *pr.Parameters()
	old.Version = "1.0"
	oldPr, err := NewProvider(&old)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if oldPr.IsValidRiskType(contracts.RiskTypeBaseCorr) {
		t.Error("base corr should be invalid before version 2.0")
	}
	if oldPr.VersionNumber() != 1.0 {
		t.Errorf("expected version number 1.0, got %v", oldPr.VersionNumber())
	}
}

func TestVersionNumber(t *testing.T) {
	pr := mustProvider(t)
	if pr.Version() != "2.6" {
		t.Errorf("expected version 2.6, got %s", pr.Version())
	}
	if pr.VersionNumber() != 2.6 {
		t.Errorf("expected version number 2.6, got %v", pr.VersionNumber())
	}
}
