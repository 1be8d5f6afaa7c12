package simm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/atlas/internal/contracts"
)

func TestRollUpSingleLeafPropagation(t *testing.T) {
	res := NewResults("USD", "USD")
	res.Add(contracts.ProductClassRatesFX, contracts.RiskClassInterestRate, contracts.MarginTypeDelta, contracts.BucketAll, 100, true)

	require.NoError(t, rollUp(res, testParams(t)))

	// 단일 리프는 모든 집계 행에 그대로 전파된다
	assert.InDelta(t, 100, res.Get(contracts.ProductClassRatesFX, contracts.RiskClassInterestRate, contracts.MarginTypeAll, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 100, res.Get(contracts.ProductClassRatesFX, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 100, portfolioIM(res), 1e-12)
	assert.InDelta(t, 100, res.Get(contracts.ProductClassRatesFX, contracts.RiskClassAll, contracts.MarginTypeDelta, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 100, res.Get(contracts.ProductClassAll, contracts.RiskClassInterestRate, contracts.MarginTypeDelta, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 100, res.Get(contracts.ProductClassAll, contracts.RiskClassInterestRate, contracts.MarginTypeAll, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 100, res.Get(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeDelta, contracts.BucketAll), 1e-12)

	// 입력이 없는 조합에는 집계 행이 생기지 않는다
	assert.False(t, res.Has(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeVega, contracts.BucketAll))
	assert.False(t, res.Has(contracts.ProductClassCredit, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll))
	assert.False(t, res.Has(contracts.ProductClassAll, contracts.RiskClassFX, contracts.MarginTypeAll, contracts.BucketAll))
}

func TestRollUpCorrelatesRiskClasses(t *testing.T) {
	res := NewResults("USD", "USD")
	res.Add(contracts.ProductClassRatesFX, contracts.RiskClassInterestRate, contracts.MarginTypeDelta, contracts.BucketAll, 100, true)
	res.Add(contracts.ProductClassRatesFX, contracts.RiskClassFX, contracts.MarginTypeDelta, contracts.BucketAll, 200, true)

	require.NoError(t, rollUp(res, testParams(t)))

	// 상품클래스 합계는 리스크 클래스 상관(IR↔FX 0.14)으로 결합
	want := math.Sqrt(100*100 + 200*200 + 2*0.14*100*200)
	assert.InDelta(t, want, res.Get(contracts.ProductClassRatesFX, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll), 1e-9)
	assert.InDelta(t, want, res.Get(contracts.ProductClassRatesFX, contracts.RiskClassAll, contracts.MarginTypeDelta, contracts.BucketAll), 1e-9)
	assert.InDelta(t, want, portfolioIM(res), 1e-9)

	// 리스크클래스 × 마진타입 행은 상품클래스 단순 합
	assert.InDelta(t, 100, res.Get(contracts.ProductClassAll, contracts.RiskClassInterestRate, contracts.MarginTypeDelta, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 200, res.Get(contracts.ProductClassAll, contracts.RiskClassFX, contracts.MarginTypeDelta, contracts.BucketAll), 1e-12)
}

func TestRollUpSumsAcrossProductClasses(t *testing.T) {
	res := NewResults("USD", "USD")
	res.Add(contracts.ProductClassRatesFX, contracts.RiskClassInterestRate, contracts.MarginTypeDelta, contracts.BucketAll, 100, true)
	res.Add(contracts.ProductClassEquity, contracts.RiskClassInterestRate, contracts.MarginTypeDelta, contracts.BucketAll, 50, true)

	require.NoError(t, rollUp(res, testParams(t)))

	// 상품클래스 사이에는 상관 없이 단순 합산
	assert.InDelta(t, 150, portfolioIM(res), 1e-12)
	assert.InDelta(t, 150, res.Get(contracts.ProductClassAll, contracts.RiskClassInterestRate, contracts.MarginTypeDelta, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 150, res.Get(contracts.ProductClassAll, contracts.RiskClassInterestRate, contracts.MarginTypeAll, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 150, res.Get(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeDelta, contracts.BucketAll), 1e-12)

	assert.InDelta(t, 100, res.Get(contracts.ProductClassRatesFX, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 50, res.Get(contracts.ProductClassEquity, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll), 1e-12)
}

func TestRollUpMixedMarginTypes(t *testing.T) {
	res := NewResults("USD", "USD")
	res.Add(contracts.ProductClassCredit, contracts.RiskClassCreditQualifying, contracts.MarginTypeDelta, contracts.BucketAll, 100, true)
	res.Add(contracts.ProductClassCredit, contracts.RiskClassCreditQualifying, contracts.MarginTypeVega, contracts.BucketAll, 40, true)

	require.NoError(t, rollUp(res, testParams(t)))

	// 같은 리스크 클래스의 마진 타입은 단순 합
	assert.InDelta(t, 140, res.Get(contracts.ProductClassCredit, contracts.RiskClassCreditQualifying, contracts.MarginTypeAll, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 140, res.Get(contracts.ProductClassCredit, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 140, portfolioIM(res), 1e-12)

	// 마진타입별 행은 타입을 섞지 않는다
	assert.InDelta(t, 100, res.Get(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeDelta, contracts.BucketAll), 1e-12)
	assert.InDelta(t, 40, res.Get(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeVega, contracts.BucketAll), 1e-12)
}

func TestRollUpWritesPortfolioTotalUnconditionally(t *testing.T) {
	res := NewResults("USD", "USD")

	require.NoError(t, rollUp(res, testParams(t)))

	// 입력이 전혀 없어도 포트폴리오 합계 행만은 기록된다
	assert.True(t, res.Has(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll))
	assert.Equal(t, 0.0, portfolioIM(res))
	assert.Equal(t, 1, res.Len())
}

func TestRollUpIsIdempotent(t *testing.T) {
	params := testParams(t)
	res := NewResults("USD", "USD")
	res.Add(contracts.ProductClassRatesFX, contracts.RiskClassInterestRate, contracts.MarginTypeDelta, contracts.BucketAll, 100, true)
	res.Add(contracts.ProductClassRatesFX, contracts.RiskClassFX, contracts.MarginTypeVega, contracts.BucketAll, 30, true)
	res.Add(contracts.ProductClassEquity, contracts.RiskClassEquity, contracts.MarginTypeCurvature, contracts.BucketAll, 7, true)

	require.NoError(t, rollUp(res, params))
	first := res.Entries()

	// 집계 행은 덮어쓰기이므로 재실행해도 결과가 변하지 않는다
	require.NoError(t, rollUp(res, params))
	assert.Equal(t, first, res.Entries())
}

func TestCorrelatedAcrossRiskClassesEmpty(t *testing.T) {
	res := NewResults("USD", "USD")

	margin, has, err := correlatedAcrossRiskClasses(res, testParams(t), contracts.ProductClassRatesFX, contracts.MarginTypeDelta)
	require.NoError(t, err)
	assert.False(t, has)
	assert.Equal(t, 0.0, margin)
}
