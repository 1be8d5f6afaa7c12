package simm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
)

func setOf(records ...contracts.CrifRecord) *crif.Set {
	s := crif.NewSet()
	s.AddAll(records)
	return s
}

func TestMarginNoRecordsDoesNotApply(t *testing.T) {
	calc := testCalculator(t, Options{})

	bm, applies, err := calc.margin(crif.NewSet(), contracts.ProductClassEquity, contracts.RiskTypeEquity)
	require.NoError(t, err)
	assert.False(t, applies)
	assert.Zero(t, bm[contracts.BucketAll])
}

func TestMarginSingleEquityRecord(t *testing.T) {
	calc := testCalculator(t, Options{})
	set := setOf(record("CP1", "T1", contracts.ProductClassEquity, contracts.RiskTypeEquity, "ACME", "1", "", "", 1000))

	bm, applies, err := calc.margin(set, contracts.ProductClassEquity, contracts.RiskTypeEquity)
	require.NoError(t, err)
	require.True(t, applies)

	// 가중치 30, CR 1 → K = |30 × 1000|
	assert.InDelta(t, 30_000, bm["1"], 1e-9)
	assert.InDelta(t, 30_000, bm[contracts.BucketAll], 1e-9)
}

func TestMarginIntraBucketCorrelation(t *testing.T) {
	calc := testCalculator(t, Options{})
	set := setOf(
		record("CP1", "T1", contracts.ProductClassEquity, contracts.RiskTypeEquity, "ACME", "1", "", "", 1000),
		record("CP1", "T2", contracts.ProductClassEquity, contracts.RiskTypeEquity, "GLOBEX", "1", "", "", 2000),
	)

	bm, applies, err := calc.margin(set, contracts.ProductClassEquity, contracts.RiskTypeEquity)
	require.NoError(t, err)
	require.True(t, applies)

	// 서로 다른 종목은 ρ = 0.18
	ws1, ws2 := 30.0*1000, 30.0*2000
	want := math.Sqrt(ws1*ws1 + ws2*ws2 + 2*0.18*ws1*ws2)
	assert.InDelta(t, want, bm["1"], 1e-9)
	assert.InDelta(t, want, bm[contracts.BucketAll], 1e-9)
}

func TestMarginCrossBucketAggregation(t *testing.T) {
	calc := testCalculator(t, Options{})
	set := setOf(
		record("CP1", "T1", contracts.ProductClassEquity, contracts.RiskTypeEquity, "ACME", "1", "", "", 1000),
		record("CP1", "T2", contracts.ProductClassEquity, contracts.RiskTypeEquity, "SPX", "2", "", "", -500),
	)

	bm, applies, err := calc.margin(set, contracts.ProductClassEquity, contracts.RiskTypeEquity)
	require.NoError(t, err)
	require.True(t, applies)

	k1, k2 := 30.0*1000, math.Abs(33.0*-500)
	s1, s2 := 30.0*1000, 33.0*-500
	want := math.Sqrt(k1*k1 + k2*k2 + 2*0.25*s1*s2)
	assert.InDelta(t, k1, bm["1"], 1e-9)
	assert.InDelta(t, k2, bm["2"], 1e-9)
	assert.InDelta(t, want, bm[contracts.BucketAll], 1e-9)
}

// Residual 버킷은 상관 없이 위에 얹힌다
func TestMarginResidualAdditivity(t *testing.T) {
	calc := testCalculator(t, Options{})
	regular := record("CP1", "T1", contracts.ProductClassEquity, contracts.RiskTypeEquity, "ACME", "1", "", "", 1000)
	residual := record("CP1", "T2", contracts.ProductClassEquity, contracts.RiskTypeEquity, "UMBRELLA", contracts.BucketResidual, "", "", 100)

	base, _, err := calc.margin(setOf(regular), contracts.ProductClassEquity, contracts.RiskTypeEquity)
	require.NoError(t, err)
	both, _, err := calc.margin(setOf(regular, residual), contracts.ProductClassEquity, contracts.RiskTypeEquity)
	require.NoError(t, err)

	assert.InDelta(t, 50*100, both[contracts.BucketResidual], 1e-9)
	assert.InDelta(t, base[contracts.BucketAll]+50*100, both[contracts.BucketAll], 1e-9)
}

func TestMarginConcentrationRisk(t *testing.T) {
	calc := testCalculator(t, Options{})

	// 신용 델타 임계값 1,000,000을 4배 초과 → CR = 2
	set := setOf(record("CP1", "T1", contracts.ProductClassCredit, contracts.RiskTypeCreditQ, "ISSUER", "1", "1y", "", 4_000_000))

	bm, applies, err := calc.margin(set, contracts.ProductClassCredit, contracts.RiskTypeCreditQ)
	require.NoError(t, err)
	require.True(t, applies)
	assert.InDelta(t, 75.0*4_000_000*2, bm[contracts.BucketAll], 1e-6)
}

func TestMarginBelowThresholdNoConcentration(t *testing.T) {
	calc := testCalculator(t, Options{})
	set := setOf(record("CP1", "T1", contracts.ProductClassCredit, contracts.RiskTypeCreditQ, "ISSUER", "1", "1y", "", 250_000))

	bm, _, err := calc.margin(set, contracts.ProductClassCredit, contracts.RiskTypeCreditQ)
	require.NoError(t, err)
	assert.InDelta(t, 75.0*250_000, bm[contracts.BucketAll], 1e-9)
}

// 계산 통화 자신에 대한 FX 민감도는 마진에 들어가지 않는다
func TestMarginFXExcludesCalculationCurrency(t *testing.T) {
	calc := testCalculator(t, Options{})

	eur := record("CP1", "T1", contracts.ProductClassRatesFX, contracts.RiskTypeFX, "EUR", "", "", "", 10_000)
	usd := record("CP1", "T2", contracts.ProductClassRatesFX, contracts.RiskTypeFX, "USD", "", "", "", 99_000_000)

	withUSD, applies, err := calc.margin(setOf(eur, usd), contracts.ProductClassRatesFX, contracts.RiskTypeFX)
	require.NoError(t, err)
	require.True(t, applies)
	withoutUSD, _, err := calc.margin(setOf(eur), contracts.ProductClassRatesFX, contracts.RiskTypeFX)
	require.NoError(t, err)

	assert.Equal(t, withoutUSD[contracts.BucketAll], withUSD[contracts.BucketAll])
	assert.InDelta(t, 7.4*10_000, withUSD[contracts.BucketAll], 1e-9)

	// FX는 통화별 |순 가중 민감도|를 함께 보고하고, 계산 통화 키는 없다
	assert.InDelta(t, 7.4*10_000, withUSD["EUR"], 1e-9)
	_, hasUSD := withUSD["USD"]
	assert.False(t, hasUSD)
}

func TestMarginFXReportsAbsolutePerCurrency(t *testing.T) {
	calc := testCalculator(t, Options{})
	set := setOf(record("CP1", "T1", contracts.ProductClassRatesFX, contracts.RiskTypeFX, "GBP", "", "", "", -20_000))

	bm, _, err := calc.margin(set, contracts.ProductClassRatesFX, contracts.RiskTypeFX)
	require.NoError(t, err)
	assert.InDelta(t, 7.4*20_000, bm["GBP"], 1e-9)
	assert.InDelta(t, 7.4*20_000, bm[contracts.BucketAll], 1e-9)
}

func TestIRDeltaMarginSingleCurve(t *testing.T) {
	calc := testCalculator(t, Options{})
	set := setOf(
		irDeltaRecord("CP1", "T1", "USD", "3m", 1000),
		irDeltaRecord("CP1", "T2", "USD", "1y", 2000),
	)

	bm, applies, err := calc.irDeltaMargin(set, contracts.ProductClassRatesFX)
	require.NoError(t, err)
	require.True(t, applies)

	// 3m/1y 테너 상관 0.70
	ws1, ws2 := 50.0*1000, 60.0*2000
	want := math.Sqrt(ws1*ws1 + ws2*ws2 + 2*0.70*ws1*ws2)
	assert.InDelta(t, want, bm["USD"], 1e-9)
	assert.InDelta(t, want, bm[contracts.BucketAll], 1e-9)
}

func TestIRDeltaMarginSubCurveCorrelation(t *testing.T) {
	calc := testCalculator(t, Options{})
	libor := record("CP1", "T1", contracts.ProductClassRatesFX, contracts.RiskTypeIRCurve, "USD", "", "1y", "Libor3m", 1000)
	ois := record("CP1", "T2", contracts.ProductClassRatesFX, contracts.RiskTypeIRCurve, "USD", "", "1y", "OIS", 1000)

	bm, _, err := calc.irDeltaMargin(setOf(libor, ois), contracts.ProductClassRatesFX)
	require.NoError(t, err)

	// 같은 테너, 다른 서브커브: ρ = 0.99 × 1.0
	ws := 60.0 * 1000
	want := math.Sqrt(2*ws*ws + 2*0.99*ws*ws)
	assert.InDelta(t, want, bm[contracts.BucketAll], 1e-9)
}

func TestIRDeltaMarginCrossCurrency(t *testing.T) {
	calc := testCalculator(t, Options{})
	set := setOf(
		irDeltaRecord("CP1", "T1", "USD", "1y", 1000),
		irDeltaRecord("CP1", "T2", "EUR", "1y", 1000),
	)

	bm, _, err := calc.irDeltaMargin(set, contracts.ProductClassRatesFX)
	require.NoError(t, err)

	kUSD, kEUR := 60.0*1000, 60.0*1000
	want := math.Sqrt(kUSD*kUSD + kEUR*kEUR + 2*0.3*kUSD*kEUR)
	assert.InDelta(t, kUSD, bm["USD"], 1e-9)
	assert.InDelta(t, kEUR, bm["EUR"], 1e-9)
	assert.InDelta(t, want, bm[contracts.BucketAll], 1e-9)
}

func TestIRDeltaMarginInflationAndBasis(t *testing.T) {
	calc := testCalculator(t, Options{})
	curve := irDeltaRecord("CP1", "T1", "USD", "1y", 1000)
	inflation := record("CP1", "T2", contracts.ProductClassRatesFX, contracts.RiskTypeInflation, "USD", "", "", "", 500)
	basis := record("CP1", "T3", contracts.ProductClassRatesFX, contracts.RiskTypeXCcyBasis, "USD", "", "", "", 300)

	bm, _, err := calc.irDeltaMargin(setOf(curve, inflation, basis), contracts.ProductClassRatesFX)
	require.NoError(t, err)

	wsCurve := 60.0 * 1000
	wsInf := 61.0 * 500
	wsBasis := 21.0 * 300
	quad := wsCurve*wsCurve + wsInf*wsInf + wsBasis*wsBasis +
		2*0.24*wsCurve*wsInf + 2*0.04*wsCurve*wsBasis + 2*0.04*wsInf*wsBasis
	assert.InDelta(t, math.Sqrt(quad), bm[contracts.BucketAll], 1e-9)
}

// 통화당 XCcyBasis 레코드가 둘 남아 있으면 설정 오류다
func TestIRDeltaMarginRejectsDuplicateBasis(t *testing.T) {
	calc := testCalculator(t, Options{})
	b1 := record("CP1", "T1", contracts.ProductClassRatesFX, contracts.RiskTypeXCcyBasis, "USD", "", "", "", 300)
	b2 := record("CP1", "T2", contracts.ProductClassRatesFX, contracts.RiskTypeXCcyBasis, "USD", "", "1b", "", 200)

	// Label1이 달라 상계되지 않고 두 레코드로 남는다
	_, _, err := calc.irDeltaMargin(setOf(b1, b2), contracts.ProductClassRatesFX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Risk_XCcyBasis")
}

func TestIRDeltaMarginConcentration(t *testing.T) {
	calc := testCalculator(t, Options{})

	// EUR 기본 임계값 10,000,000의 4배 → CR = 2
	set := setOf(irDeltaRecord("CP1", "T1", "EUR", "1y", 40_000_000))

	bm, _, err := calc.irDeltaMargin(set, contracts.ProductClassRatesFX)
	require.NoError(t, err)
	assert.InDelta(t, 60.0*40_000_000*2, bm[contracts.BucketAll], 1e-3)
}

func TestIRVegaMarginCombinesInflationVol(t *testing.T) {
	calc := testCalculator(t, Options{})
	irVol := record("CP1", "T1", contracts.ProductClassRatesFX, contracts.RiskTypeIRVol, "USD", "", "1y", "", 1000)
	infVol := record("CP1", "T2", contracts.ProductClassRatesFX, contracts.RiskTypeInflationVol, "USD", "", "5y", "", 500)

	bm, applies, err := calc.irVegaMargin(setOf(irVol, infVol), contracts.ProductClassRatesFX)
	require.NoError(t, err)
	require.True(t, applies)

	// 가중치는 HVR 선반영 0.115, 인플레이션 볼 상관은 0.24
	w := 0.23 * 0.5
	ws1, ws2 := w*1000, w*500
	want := math.Sqrt(ws1*ws1 + ws2*ws2 + 2*0.24*ws1*ws2)
	assert.InDelta(t, want, bm[contracts.BucketAll], 1e-9)
}

func TestIRVegaMarginTenorCorrelation(t *testing.T) {
	calc := testCalculator(t, Options{})
	v1 := record("CP1", "T1", contracts.ProductClassRatesFX, contracts.RiskTypeIRVol, "USD", "", "3m", "", 1000)
	v2 := record("CP1", "T2", contracts.ProductClassRatesFX, contracts.RiskTypeIRVol, "USD", "", "5y", "", 1000)

	bm, _, err := calc.irVegaMargin(setOf(v1, v2), contracts.ProductClassRatesFX)
	require.NoError(t, err)

	w := 0.23 * 0.5
	ws := w * 1000
	// 3m/5y 테너 상관 0.40
	want := math.Sqrt(2*ws*ws + 2*0.40*ws*ws)
	assert.InDelta(t, want, bm[contracts.BucketAll], 1e-9)
}

func TestIRMarginsDoNotApplyWithoutRecords(t *testing.T) {
	calc := testCalculator(t, Options{})
	set := setOf(record("CP1", "T1", contracts.ProductClassEquity, contracts.RiskTypeEquity, "ACME", "1", "", "", 1000))

	for name, run := range map[string]func() (bucketMargins, bool, error){
		"delta": func() (bucketMargins, bool, error) {
			return calc.irDeltaMargin(set, contracts.ProductClassRatesFX)
		},
		"vega": func() (bucketMargins, bool, error) {
			return calc.irVegaMargin(set, contracts.ProductClassRatesFX)
		},
		"curvature": func() (bucketMargins, bool, error) {
			return calc.irCurvatureMargin(set, contracts.ProductClassRatesFX, contracts.SideCall)
		},
	} {
		bm, applies, err := run()
		require.NoError(t, err, name)
		assert.False(t, applies, name)
		assert.Zero(t, bm[contracts.BucketAll], name)
	}
}
